package domain

import (
	"fmt"
	"strings"
)

// Bounds of the credential fields, matching the 802.11 SSID limit and the
// longest WPA passphrase/PSK form.
const (
	MaxSSIDLength     = 32
	MaxPasswordLength = 64
)

// Security is the stored authentication scheme of a network.
// The stored value is kept verbatim; JoinSecurity decides how it is used.
type Security string

const (
	SecurityWPA2     Security = "WPA2"
	SecurityWPA3SAE  Security = "WPA3_SAE"
	SecurityWildcard Security = "WILDCARD"
)

// JoinSecurity selects the security kind used when joining.
// Any stored value containing "WPA3_SAE" selects SAE, everything else lets
// the driver negotiate.
func (s Security) JoinSecurity() Security {
	if strings.Contains(string(s), string(SecurityWPA3SAE)) {
		return SecurityWPA3SAE
	}
	return SecurityWildcard
}

// NetworkCredentials identifies a network the board can join.
type NetworkCredentials struct {
	SSID     string   `json:"ssid"`
	Password string   `json:"password,omitempty"`
	Security Security `json:"security"`
}

// Known reports whether the credentials name a network.
func (c NetworkCredentials) Known() bool {
	return c.SSID != ""
}

// Validate checks the field bounds.
func (c NetworkCredentials) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("%w: empty ssid", ErrInvalidCredentials)
	}
	if len(c.SSID) > MaxSSIDLength {
		return fmt.Errorf("%w: ssid longer than %d bytes", ErrInvalidCredentials, MaxSSIDLength)
	}
	if len(c.Password) > MaxPasswordLength {
		return fmt.Errorf("%w: password longer than %d bytes", ErrInvalidCredentials, MaxPasswordLength)
	}
	return nil
}

// Redacted returns a copy safe to log or publish.
func (c NetworkCredentials) Redacted() NetworkCredentials {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// NetworkProfile is what the link adapter needs to join a network.
type NetworkProfile struct {
	Label    string
	SSID     string
	Password string
	Security Security
}

// NewNetworkProfile builds a join profile from stored credentials.
func NewNetworkProfile(label string, c NetworkCredentials) NetworkProfile {
	return NetworkProfile{
		Label:    label,
		SSID:     c.SSID,
		Password: c.Password,
		Security: c.Security.JoinSecurity(),
	}
}

// AccessPointConfig describes the provisioning access point.
type AccessPointConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"-"`
	Channel  int    `json:"channel"`
}

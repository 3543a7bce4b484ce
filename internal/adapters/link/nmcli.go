package link

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/pbkdf2"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
)

var _ ports.WirelessLink = (*NmcliLink)(nil)

// execCmd allows mocking exec.CommandContext in tests
var execCmd = exec.CommandContext

// interfaceAddrs allows mocking interface address lookup in tests
var interfaceAddrs = func(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// APConnectionName is the NetworkManager connection used for the hotspot.
const APConnectionName = "wprov-ap"

// NmcliLink drives a Linux radio through the NetworkManager CLI.
type NmcliLink struct {
	log       logr.Logger
	nmcliPath string
	iface     string
	apIface   string
}

// NewNmcliLink returns a driver for the client interface iface and the AP
// interface apIface (they may be the same radio).
func NewNmcliLink(log logr.Logger, iface, apIface string) *NmcliLink {
	if apIface == "" {
		apIface = iface
	}
	return &NmcliLink{
		log:       log.WithName("nmcli"),
		nmcliPath: "nmcli",
		iface:     iface,
		apIface:   apIface,
	}
}

// DerivePSK computes the WPA2 pre-shared key (IEEE 802.11i PBKDF2-SHA1,
// 4096 rounds, 256 bits) as the 64 hex characters NetworkManager accepts.
func DerivePSK(passphrase, ssid string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New)
	return hex.EncodeToString(key)
}

func (n *NmcliLink) run(ctx context.Context, op string, args ...string) (string, error) {
	n.log.V(1).Info("Running nmcli", "op", op, "args", redactArgs(args))
	out, err := execCmd(ctx, n.nmcliPath, args...).CombinedOutput()
	if err != nil {
		return string(out), classify(ctx, op, string(out), err)
	}
	return string(out), nil
}

// classify maps nmcli failures onto link error kinds.
func classify(ctx context.Context, op, out string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewLinkError(op, domain.LinkTimeout, ctx.Err())
	}
	msg := strings.TrimSpace(out)
	cause := err
	if msg != "" {
		cause = fmt.Errorf("%s: %w", msg, err)
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return domain.NewLinkError(op, domain.LinkTimeout, cause)
	case strings.Contains(lower, "secrets were required"),
		strings.Contains(lower, "no network with ssid"),
		strings.Contains(lower, "activation failed"):
		return domain.NewLinkError(op, domain.LinkRejected, cause)
	case strings.Contains(lower, "already"):
		return domain.NewLinkError(op, domain.LinkAlreadyActive, cause)
	default:
		return domain.NewLinkError(op, domain.LinkInternal, cause)
	}
}

// Start checks that NetworkManager is running and, when onStatus is set,
// follows the client interface state until ctx ends.
func (n *NmcliLink) Start(ctx context.Context, onStatus ports.LinkStatusFunc) error {
	out, err := n.run(ctx, "start", "-t", "-f", "RUNNING", "general")
	if err != nil {
		return err
	}
	if !strings.Contains(out, "running") {
		return domain.NewLinkError("start", domain.LinkInternal, fmt.Errorf("NetworkManager not running: %q", strings.TrimSpace(out)))
	}
	if onStatus == nil {
		return nil
	}

	cmd := execCmd(ctx, n.nmcliPath, "device", "monitor", n.iface)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.NewLinkError("start", domain.LinkInternal, err)
	}
	if err := cmd.Start(); err != nil {
		return domain.NewLinkError("start", domain.LinkInternal, err)
	}
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if up, ok := parseMonitorLine(n.iface, scanner.Text()); ok {
				onStatus(up)
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			n.log.Error(err, "Device monitor exited", "iface", n.iface)
		}
	}()
	return nil
}

// parseMonitorLine reads one "nmcli device monitor" line, e.g.
// "wlan0: connected" or "wlan0: disconnected".
func parseMonitorLine(iface, line string) (up bool, ok bool) {
	prefix := iface + ": "
	if !strings.HasPrefix(line, prefix) {
		return false, false
	}
	switch strings.TrimSpace(strings.TrimPrefix(line, prefix)) {
	case "connected":
		return true, true
	case "disconnected", "unavailable", "unmanaged":
		return false, true
	}
	return false, false
}

func (n *NmcliLink) Join(ctx context.Context, profile domain.NetworkProfile) error {
	args := []string{
		"connection", "add", "type", "wifi",
		"con-name", profile.Label,
		"ifname", n.iface,
		"ssid", profile.SSID,
	}
	args = append(args, securityArgs(profile)...)

	// Replace a stale profile left by a crashed run.
	_, _ = n.run(ctx, "join", "connection", "delete", profile.Label)

	if _, err := n.run(ctx, "join", args...); err != nil {
		return err
	}
	_, err := n.run(ctx, "join", "connection", "up", profile.Label)
	return err
}

func securityArgs(profile domain.NetworkProfile) []string {
	if profile.Password == "" {
		return nil
	}
	if profile.Security == domain.SecurityWPA3SAE {
		return []string{"wifi-sec.key-mgmt", "sae", "wifi-sec.psk", profile.Password}
	}
	return []string{"wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", DerivePSK(profile.Password, profile.SSID)}
}

// Leave disconnects the client interface. A device that already dropped
// its association is not an error.
func (n *NmcliLink) Leave(ctx context.Context) error {
	out, err := n.run(ctx, "leave", "device", "disconnect", n.iface)
	if err != nil && strings.Contains(out, "not active") {
		return nil
	}
	return err
}

func (n *NmcliLink) RemoveProfile(ctx context.Context, label string) error {
	_, err := n.run(ctx, "remove_profile", "connection", "delete", label)
	return err
}

func (n *NmcliLink) StartAP(ctx context.Context, ap domain.AccessPointConfig) error {
	args := []string{
		"device", "wifi", "hotspot",
		"ifname", n.apIface,
		"con-name", APConnectionName,
		"ssid", ap.SSID,
	}
	if ap.Channel > 0 {
		band := "bg"
		if ap.Channel > 14 {
			band = "a"
		}
		args = append(args, "band", band, "channel", strconv.Itoa(ap.Channel))
	}
	if ap.Password != "" {
		args = append(args, "password", ap.Password)
	}
	_, err := n.run(ctx, "start_ap", args...)
	return err
}

func (n *NmcliLink) StopAP(ctx context.Context) error {
	if _, err := n.run(ctx, "stop_ap", "connection", "down", APConnectionName); err != nil {
		return err
	}
	_, err := n.run(ctx, "stop_ap", "connection", "delete", APConnectionName)
	return err
}

// IP returns the first IPv4 address of the selected interface.
func (n *NmcliLink) IP(ctx context.Context, which domain.Interface) (string, error) {
	name := n.iface
	if which == domain.InterfaceAP {
		name = n.apIface
	}
	addrs, err := interfaceAddrs(name)
	if err != nil {
		return "", domain.NewLinkError("ip", domain.LinkInternal, err)
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return NoAddress, nil
}

// redactArgs hides the value following a secret flag.
func redactArgs(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		switch out[i] {
		case "wifi-sec.psk", "password":
			out[i+1] = "********"
		}
	}
	return out
}

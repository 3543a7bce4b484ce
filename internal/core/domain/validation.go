package domain

import (
	"net"
	"strings"
)

// maxIfaceName is IFNAMSIZ minus the terminating NUL.
const maxIfaceName = 15

// IsValidInterface reports whether iface is safe to pass to nmcli: 1 to 15
// bytes of letters, digits, '-' or '_'.
func IsValidInterface(iface string) bool {
	if iface == "" || len(iface) > maxIfaceName {
		return false
	}
	for _, r := range iface {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// NormalizeMAC returns a 48-bit MAC in lower-case colon form.
func NormalizeMAC(mac string) (string, bool) {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return strings.ToLower(hw.String()), true
}

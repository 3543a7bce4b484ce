package ie

import (
	"bytes"
	"errors"
)

// 802.11 element IDs used when reading advertisements.
const (
	TagSSID           = 0
	TagDSParameterSet = 3
	TagRSN            = 48
	TagVendorSpecific = 221
)

// HiddenSSID is shown for networks that blank their SSID.
const HiddenSSID = "<HIDDEN>"

var (
	ErrMalformedIE = errors.New("malformed information element")
	ErrIENotFound  = errors.New("information element not found")
)

// IterateIEs calls fn for each (id, body) element of data until fn returns
// false. Elements use one byte each for id and length; the walk ends at the
// first element overrunning data.
func IterateIEs(data []byte, fn func(id int, body []byte) bool) {
	for len(data) >= 2 {
		id, n := int(data[0]), int(data[1])
		if 2+n > len(data) {
			return
		}
		if !fn(id, data[2:2+n]) {
			return
		}
		data = data[2+n:]
	}
}

// FindIE returns the body of the first element with id, or nil.
func FindIE(data []byte, id int) []byte {
	var found []byte
	IterateIEs(data, func(eid int, body []byte) bool {
		if eid == id {
			found = body
			return false
		}
		return true
	})
	return found
}

// ParseSSID returns the advertised SSID, or HiddenSSID when it is missing,
// empty or all zero bytes.
func ParseSSID(data []byte) string {
	val := FindIE(data, TagSSID)
	if len(bytes.Trim(val, "\x00")) == 0 {
		return HiddenSSID
	}
	return safeString(val)
}

// ParseChannel reads the DS Parameter Set channel.
func ParseChannel(data []byte) (int, error) {
	if val := FindIE(data, TagDSParameterSet); len(val) >= 1 {
		return int(val[0]), nil
	}
	return 0, ErrIENotFound
}

// VendorElements returns the bodies of all vendor specific elements.
func VendorElements(data []byte) [][]byte {
	var out [][]byte
	IterateIEs(data, func(id int, body []byte) bool {
		if id == TagVendorSpecific {
			out = append(out, body)
		}
		return true
	})
	return out
}

// ScanWPS runs the WPS check over every vendor element of one frame.
func ScanWPS(data []byte) WPSObservation {
	obs := NewWPSObservation()
	for _, body := range VendorElements(data) {
		if len(body) < wpsHeaderLen {
			continue
		}
		var oui [3]byte
		copy(oui[:], body[:3])
		obs.Observe(oui, body[3], body)
	}
	return obs
}

// FindWPSInfo decodes the attributes of the first WPS element in data.
func FindWPSInfo(data []byte) *WPSInfo {
	for _, body := range VendorElements(data) {
		if info := ParseWPSElement(body); info != nil {
			return info
		}
	}
	return nil
}

package ie

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// WPS vendor element signature (Wi-Fi Alliance / Microsoft OUI, type 4).
var (
	WPSOUI          = [3]byte{0x00, 0x50, 0xF2}
	WPSOUIType byte = 0x04
)

// WPS attribute types.
const (
	AttrDevicePasswordID = 0x1012
	AttrDeviceName       = 0x1011
	AttrManufacturer     = 0x1021
	AttrModelName        = 0x1023
	AttrWPSState         = 0x1044
	AttrVersion          = 0x104A
	AttrAPSetupLocked    = 0x1057
)

// NoDevicePasswordID is returned when no Device Password ID was found.
const NoDevicePasswordID uint16 = 0xFFFF

// Well-known Device Password IDs.
const (
	PasswordIDDefaultPIN    uint16 = 0x0000
	PasswordIDUserSpecified uint16 = 0x0001
	PasswordIDMachineSpec   uint16 = 0x0002
	PasswordIDRekey         uint16 = 0x0003
	PasswordIDPushButton    uint16 = 0x0004
	PasswordIDRegistrarSpec uint16 = 0x0005
	PasswordIDNFC           uint16 = 0x0007
)

// wpsHeaderLen covers OUI and OUI type at the start of the element body.
const wpsHeaderLen = 4

// IsWPSSignature reports whether oui/ouiType identify a WPS element.
func IsWPSSignature(oui [3]byte, ouiType byte) bool {
	return oui == WPSOUI && ouiType == WPSOUIType
}

// CheckForWPSIE inspects one vendor specific element body
// (OUI[3] | OUI type[1] | WPS attributes).
//
// It returns isWPS when oui/ouiType carry the WPS signature, and the Device
// Password ID when the attribute stream contains one before any malformed
// record. Otherwise the ID is NoDevicePasswordID.
func CheckForWPSIE(oui [3]byte, ouiType byte, element []byte) (bool, uint16) {
	if len(element) < wpsHeaderLen || !IsWPSSignature(oui, ouiType) {
		return false, NoDevicePasswordID
	}

	val, ok := FindTLV(element, wpsHeaderLen, AttrDevicePasswordID)
	if !ok || len(val) < 2 {
		return true, NoDevicePasswordID
	}
	return true, binary.BigEndian.Uint16(val)
}

// CheckVendorElement splits the signature off a vendor element body and
// runs CheckForWPSIE on it.
func CheckVendorElement(element []byte) (bool, uint16) {
	if len(element) < wpsHeaderLen {
		return false, NoDevicePasswordID
	}
	var oui [3]byte
	copy(oui[:], element[:3])
	return CheckForWPSIE(oui, element[3], element)
}

// WPSObservation accumulates CheckForWPSIE results over the vendor elements
// of one frame. Once a WPS element was seen, later non-WPS elements leave the
// result untouched.
type WPSObservation struct {
	Present          bool
	DevicePasswordID uint16
}

// NewWPSObservation returns an observation with nothing seen yet.
func NewWPSObservation() WPSObservation {
	return WPSObservation{DevicePasswordID: NoDevicePasswordID}
}

// Observe folds one element into the observation.
func (o *WPSObservation) Observe(oui [3]byte, ouiType byte, element []byte) {
	isWPS, id := CheckForWPSIE(oui, ouiType, element)
	if isWPS {
		o.Present = true
		o.DevicePasswordID = id
		return
	}
	if !o.Present {
		o.DevicePasswordID = NoDevicePasswordID
	}
}

// PasswordIDName names a Device Password ID.
func PasswordIDName(id uint16) string {
	switch id {
	case PasswordIDDefaultPIN:
		return "PIN"
	case PasswordIDUserSpecified:
		return "User-specified"
	case PasswordIDMachineSpec:
		return "Machine-specified"
	case PasswordIDRekey:
		return "Rekey"
	case PasswordIDPushButton:
		return "PBC"
	case PasswordIDRegistrarSpec:
		return "Registrar-specified"
	case PasswordIDNFC:
		return "NFC"
	case NoDevicePasswordID:
		return "none"
	default:
		return fmt.Sprintf("0x%04x", id)
	}
}

// WPSInfo contains details extracted from WPS IEs
type WPSInfo struct {
	Manufacturer     string
	Model            string
	DeviceName       string
	State            string // "Unconfigured" | "Configured"
	Version          string // "1.0" | "2.0"
	Locked           bool
	DevicePasswordID uint16
	ConfigMethods    []string
	Malformed        bool
}

// ParseWPSAttributes parses the attributes within a WPS Data Element (after OUI/Type headers).
func ParseWPSAttributes(data []byte) *WPSInfo {
	info := &WPSInfo{DevicePasswordID: NoDevicePasswordID}

	ok := IterateTLVs(data, 0, func(rec TLV) bool {
		val := rec.Value
		switch rec.Type {
		case AttrManufacturer:
			info.Manufacturer = safeString(val)
		case AttrModelName:
			info.Model = safeString(val)
		case AttrDeviceName:
			info.DeviceName = safeString(val)
		case AttrWPSState:
			if len(val) > 0 {
				switch val[0] {
				case 0x01:
					info.State = "Unconfigured"
				case 0x02:
					info.State = "Configured"
				}
			}
		case AttrVersion:
			if len(val) > 0 {
				if val[0] == 0x10 {
					info.Version = "1.0"
				} else if val[0] >= 0x20 {
					info.Version = "2.0"
				}
			}
		case AttrAPSetupLocked:
			if len(val) > 0 && val[0] == 0x01 {
				info.Locked = true
			}
		case AttrDevicePasswordID:
			if len(val) >= 2 && info.DevicePasswordID == NoDevicePasswordID {
				info.DevicePasswordID = binary.BigEndian.Uint16(val)
				switch info.DevicePasswordID {
				case PasswordIDDefaultPIN:
					info.ConfigMethods = append(info.ConfigMethods, "PIN")
				case PasswordIDPushButton:
					info.ConfigMethods = append(info.ConfigMethods, "PBC")
				}
			}
		}
		return true
	})
	info.Malformed = !ok

	return info
}

// ParseWPSElement parses a full vendor element body, or returns nil when it
// is not a WPS element.
func ParseWPSElement(element []byte) *WPSInfo {
	if len(element) < wpsHeaderLen || !bytes.Equal(element[:3], WPSOUI[:]) || element[3] != WPSOUIType {
		return nil
	}
	return ParseWPSAttributes(element[wpsHeaderLen:])
}

// safeString converts bytes to string, dropping invalid UTF-8 and trailing NULs.
func safeString(data []byte) string {
	data = bytes.TrimRight(data, "\x00")
	if !utf8.Valid(data) {
		return ""
	}
	return string(data)
}

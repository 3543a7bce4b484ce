package ie

import (
	"bytes"
	"testing"
)

func TestParseWPSAttributes(t *testing.T) {
	data := []byte{
		0x10, 0x21, 0x00, 0x04, 'A', 'C', 'M', 'E', // Manufacturer
		0x10, 0x23, 0x00, 0x03, 'B', 'o', 't', // Model
	}

	info := ParseWPSAttributes(data)

	if info.Manufacturer != "ACME" {
		t.Errorf("Manufacturer = %q, want ACME", info.Manufacturer)
	}
	if info.Model != "Bot" {
		t.Errorf("Model = %q, want Bot", info.Model)
	}
}

func TestParseWPSAttributes_ModelOnly(t *testing.T) {
	data := []byte{
		0x10, 0x23, 0x00, 0x03, 'B', 'o', 't',
	}

	info := ParseWPSAttributes(data)

	if info.Model != "Bot" {
		t.Errorf("Model = %q, want Bot", info.Model)
	}
}

func TestParseWPSAttributes_Empty(t *testing.T) {
	data := []byte{}
	info := ParseWPSAttributes(data)

	if info.Model != "" || info.Manufacturer != "" {
		t.Errorf("Expected empty info, got %+v", info)
	}
}

func TestParseWPSAttributes_VersionAndState(t *testing.T) {
	data := []byte{
		0x10, 0x44, 0x00, 0x01, 0x02, // State: Configured
		0x10, 0x4A, 0x00, 0x01, 0x20, // Version: 2.0
	}

	info := ParseWPSAttributes(data)

	if info.State != "Configured" {
		t.Errorf("State = %q, want Configured", info.State)
	}
	if info.Version != "2.0" {
		t.Errorf("Version = %q, want 2.0", info.Version)
	}
}

func wpsElement(tlvs ...byte) []byte {
	return append([]byte{0x00, 0x50, 0xF2, 0x04}, tlvs...)
}

func TestCheckForWPSIE_DevicePasswordID(t *testing.T) {
	element := wpsElement(0x10, 0x12, 0x00, 0x02, 0x00, 0x04)

	isWPS, id := CheckForWPSIE(WPSOUI, WPSOUIType, element)
	if !isWPS {
		t.Fatal("expected WPS element")
	}
	if id != 4 {
		t.Errorf("device password id = %d, want 4", id)
	}
}

func TestCheckForWPSIE_SkipsOtherAttributes(t *testing.T) {
	element := wpsElement(
		0x10, 0x4A, 0x00, 0x01, 0x10, // Version
		0x10, 0x44, 0x00, 0x01, 0x01, // State
		0x10, 0x12, 0x00, 0x02, 0x00, 0x00, // Device Password ID: PIN
	)

	isWPS, id := CheckForWPSIE(WPSOUI, WPSOUIType, element)
	if !isWPS || id != PasswordIDDefaultPIN {
		t.Errorf("got (%v, 0x%04x), want (true, 0x0000)", isWPS, id)
	}
}

func TestCheckForWPSIE_SignatureMismatch(t *testing.T) {
	element := wpsElement(0x10, 0x12, 0x00, 0x02, 0x00, 0x04)

	tests := []struct {
		name    string
		oui     [3]byte
		ouiType byte
	}{
		{"wrong oui", [3]byte{0x00, 0x0F, 0xAC}, 0x04},
		{"wrong type", WPSOUI, 0x01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isWPS, id := CheckForWPSIE(tt.oui, tt.ouiType, element)
			if isWPS || id != NoDevicePasswordID {
				t.Errorf("got (%v, 0x%04x), want (false, 0xffff)", isWPS, id)
			}
		})
	}
}

func TestCheckForWPSIE_LengthOverrun(t *testing.T) {
	// Declared length 0x0100 runs far past the element.
	element := wpsElement(0x10, 0x12, 0x01, 0x00, 0x00, 0x04)

	_, id := CheckForWPSIE(WPSOUI, WPSOUIType, element)
	if id != NoDevicePasswordID {
		t.Errorf("device password id = 0x%04x, want sentinel", id)
	}
}

func TestCheckForWPSIE_OverrunAfterTag(t *testing.T) {
	element := wpsElement(
		0x10, 0x12, 0x00, 0x02, 0x00, 0x04,
		0x10, 0x21, 0xFF, 0xFF, 'A',
	)

	isWPS, id := CheckForWPSIE(WPSOUI, WPSOUIType, element)
	if !isWPS || id != PasswordIDPushButton {
		t.Errorf("got (%v, 0x%04x), want (true, 0x0004)", isWPS, id)
	}
}

func TestCheckForWPSIE_ShortValue(t *testing.T) {
	element := wpsElement(0x10, 0x12, 0x00, 0x01, 0x04)

	isWPS, id := CheckForWPSIE(WPSOUI, WPSOUIType, element)
	if !isWPS || id != NoDevicePasswordID {
		t.Errorf("got (%v, 0x%04x), want (true, 0xffff)", isWPS, id)
	}
}

func TestCheckForWPSIE_TooShort(t *testing.T) {
	isWPS, id := CheckForWPSIE(WPSOUI, WPSOUIType, []byte{0x00, 0x50})
	if isWPS || id != NoDevicePasswordID {
		t.Errorf("got (%v, 0x%04x), want (false, 0xffff)", isWPS, id)
	}
}

func TestCheckForWPSIE_DoesNotMutate(t *testing.T) {
	element := wpsElement(0x10, 0x12, 0x00, 0x02, 0x00, 0x04)
	orig := append([]byte(nil), element...)

	CheckForWPSIE(WPSOUI, WPSOUIType, element)

	if !bytes.Equal(element, orig) {
		t.Errorf("element mutated: % x", element)
	}
}

func TestWPSObservation_KeepsFirstMatch(t *testing.T) {
	obs := NewWPSObservation()
	obs.Observe([3]byte{0x00, 0x0F, 0xAC}, 0x01, []byte{0x00, 0x0F, 0xAC, 0x01})
	if obs.Present || obs.DevicePasswordID != NoDevicePasswordID {
		t.Fatalf("unexpected observation %+v", obs)
	}

	obs.Observe(WPSOUI, WPSOUIType, wpsElement(0x10, 0x12, 0x00, 0x02, 0x00, 0x04))
	obs.Observe([3]byte{0x00, 0x10, 0x18}, 0x02, []byte{0x00, 0x10, 0x18, 0x02})

	if !obs.Present || obs.DevicePasswordID != PasswordIDPushButton {
		t.Errorf("observation = %+v, want PBC", obs)
	}
}

func TestParseWPSAttributes_DevicePasswordID(t *testing.T) {
	info := ParseWPSAttributes([]byte{0x10, 0x12, 0x00, 0x02, 0x00, 0x04})

	if info.DevicePasswordID != PasswordIDPushButton {
		t.Errorf("DevicePasswordID = 0x%04x, want 0x0004", info.DevicePasswordID)
	}
	if len(info.ConfigMethods) != 1 || info.ConfigMethods[0] != "PBC" {
		t.Errorf("ConfigMethods = %v, want [PBC]", info.ConfigMethods)
	}
}

func TestParseWPSAttributes_Malformed(t *testing.T) {
	info := ParseWPSAttributes([]byte{0x10, 0x23, 0x00, 0x09, 'B', 'o', 't'})

	if !info.Malformed {
		t.Error("expected Malformed")
	}
	if info.Model != "" {
		t.Errorf("Model = %q, want empty", info.Model)
	}
}

func TestPasswordIDName(t *testing.T) {
	tests := map[uint16]string{
		0x0000: "PIN",
		0x0004: "PBC",
		0xFFFF: "none",
		0x1234: "0x1234",
	}
	for id, want := range tests {
		if got := PasswordIDName(id); got != want {
			t.Errorf("PasswordIDName(0x%04x) = %q, want %q", id, got, want)
		}
	}
}

package parser

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wprov/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

var (
	rsnPSK = []byte{48, 20, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x04, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x04, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x02, 0x00, 0x00}
	rsnSAE = []byte{48, 20, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x04, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x04, 0x01, 0x00, 0x00, 0x0F, 0xAC, 0x08, 0x00, 0x00}
)

func wpsVendorIE(passwordID uint16) []byte {
	body := []byte{
		0x00, 0x50, 0xF2, 0x04,
		0x10, 0x4A, 0x00, 0x01, 0x10,
		0x10, 0x12, 0x00, 0x02, byte(passwordID >> 8), byte(passwordID),
		0x10, 0x21, 0x00, 0x04, 'A', 'C', 'M', 'E',
	}
	return append([]byte{ie.TagVendorSpecific, byte(len(body))}, body...)
}

// buildFrame returns raw 802.11 bytes (with a dummy FCS) for a management frame.
func buildFrame(t *testing.T, typ layers.Dot11Type, bssid, ssid string, channel int, extra ...[]byte) []byte {
	t.Helper()
	mac, err := net.ParseMAC(bssid)
	require.NoError(t, err)

	dot11 := &layers.Dot11{
		Type:     typ,
		Address1: layers.EthernetBroadcast,
		Address2: mac,
		Address3: mac,
	}

	payload := make([]byte, 12)
	payload = append(payload, 0, byte(len(ssid)))
	payload = append(payload, ssid...)
	payload = append(payload, 3, 1, byte(channel))
	for _, e := range extra {
		payload = append(payload, e...)
	}
	payload = append(payload, 0xDE, 0xAD, 0xBE, 0xEF)

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, dot11, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestHandleFrame_BeaconWithWPS(t *testing.T) {
	data := buildFrame(t, layers.Dot11TypeMgmtBeacon, "00:11:22:33:44:55", "HomeNet", 6, rsnPSK, wpsVendorIE(ie.PasswordIDPushButton))
	packet := gopacket.NewPacket(data, layers.LayerTypeDot11, gopacket.Default)

	ap := HandleFrame(packet)
	require.NotNil(t, ap)

	assert.Equal(t, "00:11:22:33:44:55", ap.BSSID)
	assert.Equal(t, "HomeNet", ap.SSID)
	assert.Equal(t, 6, ap.Channel)
	assert.Equal(t, domain.SecurityWPA2, ap.Security)
	assert.True(t, ap.WPS)
	assert.Equal(t, ie.PasswordIDPushButton, ap.DevicePasswordID)
	assert.Equal(t, "PBC", ap.PasswordMethod())
	require.NotNil(t, ap.WPSInfo)
	assert.Equal(t, "ACME", ap.WPSInfo.Manufacturer)
}

func TestHandleFrame_NoWPS(t *testing.T) {
	data := buildFrame(t, layers.Dot11TypeMgmtProbeResp, "00:11:22:33:44:66", "Office", 11, rsnSAE)
	packet := gopacket.NewPacket(data, layers.LayerTypeDot11, gopacket.Default)

	ap := HandleFrame(packet)
	require.NotNil(t, ap)

	assert.False(t, ap.WPS)
	assert.Equal(t, ie.NoDevicePasswordID, ap.DevicePasswordID)
	assert.Equal(t, domain.SecurityWPA3SAE, ap.Security)
	assert.Nil(t, ap.WPSInfo)
}

func TestHandleFrame_IgnoresOtherFrames(t *testing.T) {
	data := buildFrame(t, layers.Dot11TypeMgmtProbeReq, "00:11:22:33:44:77", "Any", 1)
	packet := gopacket.NewPacket(data, layers.LayerTypeDot11, gopacket.Default)

	assert.Nil(t, HandleFrame(packet))
}

func TestScanReader_AggregatesPerBSSID(t *testing.T) {
	var pcap bytes.Buffer
	w := pcapgo.NewWriter(&pcap)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE802_11))

	frames := [][]byte{
		buildFrame(t, layers.Dot11TypeMgmtBeacon, "00:11:22:33:44:55", "HomeNet", 6, rsnPSK),
		buildFrame(t, layers.Dot11TypeMgmtBeacon, "00:11:22:33:44:55", "HomeNet", 6, rsnPSK, wpsVendorIE(ie.PasswordIDDefaultPIN)),
		buildFrame(t, layers.Dot11TypeMgmtBeacon, "00:11:22:33:44:55", "HomeNet", 6, rsnPSK),
		buildFrame(t, layers.Dot11TypeMgmtBeacon, "aa:bb:cc:dd:ee:ff", "Guest", 1),
	}
	for _, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(f), Length: len(f)}
		require.NoError(t, w.WritePacket(ci, f))
	}

	aps, err := ScanReader(&pcap)
	require.NoError(t, err)
	require.Len(t, aps, 2)

	home := aps[0]
	assert.Equal(t, "00:11:22:33:44:55", home.BSSID)
	assert.Equal(t, 3, home.Frames)
	assert.True(t, home.WPS, "WPS seen in any frame sticks")
	assert.Equal(t, ie.PasswordIDDefaultPIN, home.DevicePasswordID)

	guest := aps[1]
	assert.Equal(t, "Guest", guest.SSID)
	assert.Equal(t, domain.SecurityWildcard, guest.Security)
	assert.False(t, guest.WPS)
}

func TestScanReader_BadHeader(t *testing.T) {
	_, err := ScanReader(bytes.NewReader([]byte("not a pcap")))
	assert.Error(t, err)
}

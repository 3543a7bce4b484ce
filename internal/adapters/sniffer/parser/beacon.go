package parser

import (
	"errors"
	"io"
	"os"
	"sort"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/lcalzada-xor/wprov/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

// AccessPoint summarizes what beacons and probe responses advertise.
type AccessPoint struct {
	BSSID            string          `json:"bssid"`
	SSID             string          `json:"ssid"`
	Channel          int             `json:"channel,omitempty"`
	Security         domain.Security `json:"security"`
	WPS              bool            `json:"wps"`
	DevicePasswordID uint16          `json:"device_password_id"`
	WPSInfo          *ie.WPSInfo     `json:"wps_info,omitempty"`
	Frames           int             `json:"frames"`
}

// PasswordMethod names the advertised Device Password ID.
func (ap AccessPoint) PasswordMethod() string {
	return ie.PasswordIDName(ap.DevicePasswordID)
}

// HandleFrame decodes a beacon or probe response. It returns nil for every
// other frame type.
func HandleFrame(packet gopacket.Packet) (ap *AccessPoint) {
	defer func() {
		if r := recover(); r != nil {
			// gopacket decoders can panic on hostile frames; the frame is dropped.
			ap = nil
		}
	}()

	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return nil
	}
	dot11, ok := dot11Layer.(*layers.Dot11)
	if !ok {
		return nil
	}

	var ieData []byte
	switch dot11.Type {
	case layers.Dot11TypeMgmtBeacon:
		if beacon := packet.Layer(layers.LayerTypeDot11MgmtBeacon); beacon != nil {
			ieData = beacon.LayerPayload()
		}
	case layers.Dot11TypeMgmtProbeResp:
		if resp := packet.Layer(layers.LayerTypeDot11MgmtProbeResp); resp != nil {
			ieData = resp.LayerPayload()
		}
	default:
		return nil
	}

	return parseAdvertisement(dot11.Address3.String(), ieData)
}

func parseAdvertisement(bssid string, ieData []byte) *AccessPoint {
	ap := &AccessPoint{
		BSSID:    bssid,
		SSID:     ie.ParseSSID(ieData),
		Security: securityFromIEs(ieData),
		Frames:   1,
	}
	if ch, err := ie.ParseChannel(ieData); err == nil {
		ap.Channel = ch
	}

	obs := ie.ScanWPS(ieData)
	ap.WPS = obs.Present
	ap.DevicePasswordID = obs.DevicePasswordID
	if obs.Present {
		ap.WPSInfo = ie.FindWPSInfo(ieData)
		telemetry.WPSElements.WithLabelValues(ie.PasswordIDName(obs.DevicePasswordID)).Inc()
	}
	return ap
}

// securityFromIEs maps the RSN AKM suites onto the stored security names.
func securityFromIEs(ieData []byte) domain.Security {
	raw := ie.FindIE(ieData, ie.TagRSN)
	if raw == nil {
		return domain.SecurityWildcard
	}
	rsn, err := ie.ParseRSN(raw)
	if err != nil {
		return domain.SecurityWildcard
	}
	return rsn.Security()
}

// Scanner aggregates advertisements per BSSID.
type Scanner struct {
	aps map[string]*AccessPoint
}

// NewScanner returns an empty Scanner.
func NewScanner() *Scanner {
	return &Scanner{aps: make(map[string]*AccessPoint)}
}

// Add folds one packet into the scan.
func (s *Scanner) Add(packet gopacket.Packet) {
	ap := HandleFrame(packet)
	if ap == nil {
		return
	}
	prev, ok := s.aps[ap.BSSID]
	if !ok {
		s.aps[ap.BSSID] = ap
		return
	}
	prev.Frames++
	if prev.SSID == ie.HiddenSSID {
		prev.SSID = ap.SSID
	}
	if ap.WPS {
		prev.WPS = true
		prev.DevicePasswordID = ap.DevicePasswordID
		prev.WPSInfo = ap.WPSInfo
	}
	if ap.Channel != 0 {
		prev.Channel = ap.Channel
	}
}

// Results returns the access points sorted by BSSID.
func (s *Scanner) Results() []AccessPoint {
	out := make([]AccessPoint, 0, len(s.aps))
	for _, ap := range s.aps {
		out = append(out, *ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BSSID < out[j].BSSID })
	return out
}

// ScanReader reads a pcap stream (802.11 or radiotap link type) to the end.
func ScanReader(r io.Reader) ([]AccessPoint, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}

	s := NewScanner()
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return s.Results(), err
		}
		s.Add(packet)
	}
	return s.Results(), nil
}

// ScanFile opens a pcap file and scans it.
func ScanFile(path string) ([]AccessPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanReader(f)
}

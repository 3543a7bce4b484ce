package ie

import (
	"encoding/binary"
	"fmt"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// AKM suite selectors under the IEEE 00-0F-AC OUI.
const (
	AKM8021X  = 1
	AKMPSK    = 2
	AKMFTPSK  = 4
	AKMPSK256 = 6
	AKMSAE    = 8
	AKMFTSAE  = 9
	AKMOWE    = 18
)

// RSN is the part of the RSN element that decides how a network is joined.
type RSN struct {
	Version     uint16
	GroupCipher uint8
	Pairwise    []uint8
	AKMs        []uint8
}

// ParseRSN decodes the body of element 48. Suite lists cut short by the
// element end are kept as far as they go.
func ParseRSN(data []byte) (*RSN, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: RSN element of %d bytes", ErrMalformedIE, len(data))
	}
	rsn := &RSN{Version: binary.LittleEndian.Uint16(data)}
	rest := data[2:]

	if len(rest) < 4 {
		return rsn, nil
	}
	rsn.GroupCipher = rest[3]
	rest = rest[4:]

	rsn.Pairwise, rest = suiteList(rest)
	rsn.AKMs, _ = suiteList(rest)
	return rsn, nil
}

// suiteList reads a little-endian count followed by 4-byte suite selectors
// and returns the selector types with the remaining bytes.
func suiteList(data []byte) ([]uint8, []byte) {
	if len(data) < 2 {
		return nil, nil
	}
	count := int(binary.LittleEndian.Uint16(data))
	data = data[2:]

	var out []uint8
	for i := 0; i < count && len(data) >= 4; i++ {
		out = append(out, data[3])
		data = data[4:]
	}
	return out, data
}

// Security maps the advertised AKMs onto the stored security names. SAE wins
// over PSK on transition-mode networks.
func (r *RSN) Security() domain.Security {
	psk := false
	for _, akm := range r.AKMs {
		switch akm {
		case AKMSAE, AKMFTSAE:
			return domain.SecurityWPA3SAE
		case AKMPSK, AKMFTPSK, AKMPSK256:
			psk = true
		}
	}
	if psk {
		return domain.SecurityWPA2
	}
	return domain.SecurityWildcard
}

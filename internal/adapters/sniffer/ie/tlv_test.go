package ie

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLVWalker_Sequence(t *testing.T) {
	buf := []byte{
		0x10, 0x4A, 0x00, 0x01, 0x10,
		0x10, 0x12, 0x00, 0x02, 0x00, 0x04,
		0x00, 0x00, 0x00, 0x00, // empty value
	}

	w := NewTLVWalker(buf, 0)

	rec, ok := w.Next()
	require.True(t, ok)
	assert.Equal(t, uint16(0x104A), rec.Type)
	assert.Equal(t, []byte{0x10}, rec.Value)

	rec, ok = w.Next()
	require.True(t, ok)
	assert.Equal(t, uint16(0x1012), rec.Type)
	assert.Equal(t, []byte{0x00, 0x04}, rec.Value)

	rec, ok = w.Next()
	require.True(t, ok)
	assert.Equal(t, uint16(0), rec.Type)
	assert.Empty(t, rec.Value)

	_, ok = w.Next()
	assert.False(t, ok)
	assert.False(t, w.Malformed())

	// Not restartable.
	_, ok = w.Next()
	assert.False(t, ok)
}

func TestTLVWalker_StartOffset(t *testing.T) {
	buf := []byte{0xAA, 0xBB, 0x00, 0x01, 0x00, 0x01, 0x7F}

	val, ok := FindTLV(buf, 2, 0x0001)
	require.True(t, ok)
	assert.Equal(t, []byte{0x7F}, val)
}

func TestTLVWalker_TruncatedHeader(t *testing.T) {
	w := NewTLVWalker([]byte{0x10, 0x12, 0x00}, 0)

	_, ok := w.Next()
	assert.False(t, ok)
	assert.False(t, w.Malformed(), "a short tail is not a length overrun")
}

func TestTLVWalker_Overrun(t *testing.T) {
	w := NewTLVWalker([]byte{0x10, 0x12, 0x00, 0x05, 0x01, 0x02}, 0)

	_, ok := w.Next()
	assert.False(t, ok)
	assert.True(t, w.Malformed())
}

func TestTLVWalker_BadOffset(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x00, 0x00}

	_, ok := NewTLVWalker(buf, 10).Next()
	assert.False(t, ok)

	w := NewTLVWalker(buf, -1)
	_, ok = w.Next()
	assert.False(t, ok)
	assert.True(t, w.Malformed())
}

func TestIterateTLVs_EarlyStop(t *testing.T) {
	buf := []byte{
		0x00, 0x01, 0x00, 0x00,
		0x00, 0x02, 0x00, 0x00,
		0x00, 0x03, 0xFF, 0xFF,
	}

	var seen []uint16
	ok := IterateTLVs(buf, 0, func(rec TLV) bool {
		seen = append(seen, rec.Type)
		return rec.Type != 0x0002
	})

	assert.True(t, ok, "stopping early never reaches the malformed record")
	assert.Equal(t, []uint16{0x0001, 0x0002}, seen)
}

// Any buffer: every yielded value lies inside the buffer and records tile it
// from the start offset.
func TestTLVWalker_NeverLeavesBuffer(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		buf := make([]byte, rng.Intn(64))
		rng.Read(buf)
		// Bias some lengths toward plausible values.
		if len(buf) >= 4 && rng.Intn(2) == 0 {
			buf[2] = 0
			buf[3] = byte(rng.Intn(len(buf)))
		}
		offset := 0
		if len(buf) > 0 {
			offset = rng.Intn(len(buf) + 1)
		}

		w := NewTLVWalker(buf, offset)
		expected := offset
		for {
			rec, ok := w.Next()
			if !ok {
				break
			}
			valStart := expected + tlvHeaderLen
			valEnd := valStart + len(rec.Value)
			require.LessOrEqual(t, valEnd, len(buf))
			if len(rec.Value) > 0 {
				require.Same(t, &buf[valStart], &rec.Value[0])
			}
			expected = valEnd
		}
		// The walk stops on a short header or an overrunning length.
		rest := len(buf) - expected
		if w.Malformed() {
			require.GreaterOrEqual(t, rest, tlvHeaderLen)
			length := int(buf[expected+2])<<8 | int(buf[expected+3])
			require.Greater(t, expected+tlvHeaderLen+length, len(buf))
		} else {
			require.Less(t, rest, tlvHeaderLen)
		}
	}
}

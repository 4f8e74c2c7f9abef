package media

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// auHBRPayload builds a minimal RFC 3640 AAC-hbr RTP payload carrying
// the given access units, one AU-header (2 bytes, size<<3) per AU.
func auHBRPayload(aus ...[]byte) []byte {
	headers := make([]byte, 0, 2*len(aus))
	data := make([]byte, 0)
	for _, au := range aus {
		var h [2]byte
		binary.BigEndian.PutUint16(h[:], uint16(len(au))<<3)
		headers = append(headers, h[:]...)
		data = append(data, au...)
	}
	out := make([]byte, 2, 2+len(headers)+len(data))
	binary.BigEndian.PutUint16(out, uint16(len(headers))*8)
	out = append(out, headers...)
	out = append(out, data...)
	return out
}

func TestAACDepacketizerSingleAU(t *testing.T) {
	d := NewAACDepacketizer()
	var got []byte
	var ts uint32
	d.OnFrame = func(au []byte, timestamp uint32) {
		got = au
		ts = timestamp
	}

	payload := auHBRPayload([]byte("aac-frame"))
	require.NoError(t, d.Feed(marshalRTP(t, 1, 5000, true, payload)))

	require.Equal(t, []byte("aac-frame"), got)
	require.Equal(t, uint32(5000), ts)
	require.Equal(t, uint64(1), d.FramesEmitted())
}

func TestAACDepacketizerMultipleAUsPerPacket(t *testing.T) {
	d := NewAACDepacketizer()
	var got [][]byte
	d.OnFrame = func(au []byte, timestamp uint32) {
		got = append(got, append([]byte(nil), au...))
	}

	payload := auHBRPayload([]byte("one"), []byte("two"), []byte("three"))
	require.NoError(t, d.Feed(marshalRTP(t, 1, 0, true, payload)))

	require.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, got)
}

func TestAACDepacketizerRejectsTruncatedHeaderSection(t *testing.T) {
	d := NewAACDepacketizer()
	// Declares a 16-bit (2-byte) AU-header section but supplies none.
	payload := []byte{0x00, 0x10}
	require.Error(t, d.Feed(marshalRTP(t, 1, 0, true, payload)))
}

func TestAACDepacketizerRejectsPacketTooShort(t *testing.T) {
	d := NewAACDepacketizer()
	require.Error(t, d.Feed(marshalRTP(t, 1, 0, true, []byte{0x00})))
}

package media

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/pion/rtp"

	"github.com/chenbd/go-wfd/pkg/wfderr"
)

// AACClockRate is the RTP clock rate used by AAC-over-RTP (RFC 3640).
const AACClockRate = 48000

// AACDepacketizer parses RFC 3640 AU-header-sectioned RTP packets
// carried over a WFD interleaved-data channel into individual access
// units. A WFD session multiplexes audio and video over the same TCP
// connection, so — unlike a dedicated RTP socket — a truncated read at
// the rtsp.Decoder layer can hand this depacketizer a short packet;
// Feed reports that distinctly from a genuinely malformed AU-header
// section so a caller can tell the two apart in logs.
type AACDepacketizer struct {
	logger *slog.Logger

	framesEmitted uint64

	// OnFrame is called once per access unit recovered from a packet,
	// tagged with the RTP timestamp of the packet it came from (for
	// Pacer consumers; every AU in a packet shares that timestamp).
	OnFrame func(accessUnit []byte, timestamp uint32)
}

// AACOption configures an AACDepacketizer at construction time.
type AACOption func(*AACDepacketizer)

// WithAACLogger attaches a structured logger for malformed-packet tracing.
func WithAACLogger(l *slog.Logger) AACOption {
	return func(d *AACDepacketizer) { d.logger = l }
}

// NewAACDepacketizer constructs an AACDepacketizer.
func NewAACDepacketizer(opts ...AACOption) *AACDepacketizer {
	d := &AACDepacketizer{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Feed parses raw as one RTP packet and emits every access unit it carries.
func (d *AACDepacketizer) Feed(raw []byte) error {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(raw); err != nil {
		return fmt.Errorf("media: unmarshal RTP packet: %w", err)
	}

	headers, data, err := splitAUSections(pkt.Payload)
	if err != nil {
		return err
	}

	emitted := 0
	offset := 0
	for len(headers) >= 2 {
		auSize := int(binary.BigEndian.Uint16(headers[:2]) >> 3)
		headers = headers[2:]

		if offset+auSize > len(data) {
			return fmt.Errorf("media: AAC AU size exceeds payload: %w", wfderr.ErrProtocolMalformed)
		}
		frame := data[offset : offset+auSize]
		offset += auSize

		if len(frame) == 0 {
			continue
		}
		if d.OnFrame != nil {
			d.OnFrame(frame, pkt.Timestamp)
		}
		emitted++
	}

	d.framesEmitted += uint64(emitted)
	if emitted == 0 {
		d.logger.Debug("media: AAC packet carried no access units", "payload_bytes", len(pkt.Payload))
	}
	return nil
}

// splitAUSections separates an RFC 3640 AAC-hbr payload into its
// AU-header section and AU-data section.
func splitAUSections(payload []byte) (headers, data []byte, err error) {
	if len(payload) < 2 {
		return nil, nil, fmt.Errorf("media: AAC packet too short: %w", wfderr.ErrProtocolMalformed)
	}
	auHeadersLengthBits := binary.BigEndian.Uint16(payload[:2])
	auHeadersLengthBytes := int((auHeadersLengthBits + 7) / 8)
	if len(payload) < 2+auHeadersLengthBytes {
		return nil, nil, fmt.Errorf("media: AAC AU-header section truncated: %w", wfderr.ErrProtocolMalformed)
	}
	return payload[2 : 2+auHeadersLengthBytes], payload[2+auHeadersLengthBytes:], nil
}

// FramesEmitted returns the number of access units produced so far.
func (d *AACDepacketizer) FramesEmitted() uint64 { return d.framesEmitted }

// Package media depacketizes RTP-over-interleaved-TCP payloads carried
// inside rtsp.DataFrame events and paces the resulting access units for
// downstream consumption.
package media

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/pion/rtp"

	"github.com/chenbd/go-wfd/pkg/wfderr"
)

// H.264 NAL unit types relevant to depacketization.
const (
	NALUTypePFrame = 1
	NALUTypeIFrame = 5
	NALUTypeSEI    = 6
	NALUTypeSPS    = 7
	NALUTypePPS    = 8
	NALUTypeAUD    = 9
	NALUTypeSTAPA  = 24
	NALUTypeFUA    = 28
)

// H264Depacketizer reassembles FU-A/STAP-A/single NAL unit RTP packets
// delivered over a WFD interleaved-data channel into AVC-formatted
// access units (4-byte length prefix per NALU). It tracks the RTP
// sequence number across Feed calls so a dropped interleaved frame — a
// channel desync or a truncated TCP read — surfaces as a logged
// discontinuity instead of a silently malformed access unit, and caches
// the most recent SPS/PPS to prepend ahead of every IDR frame.
type H264Depacketizer struct {
	logger *slog.Logger

	buffer []byte
	sps    []byte
	pps    []byte

	haveSeq    bool
	lastSeq    uint16
	gapsSeen   uint64
	fuInFlight bool

	// OnFrame is called with a complete access unit when the RTP
	// marker bit closes it, tagged with the RTP timestamp of the
	// packet that closed it (for Pacer consumers).
	OnFrame func(accessUnit []byte, keyframe bool, timestamp uint32)
}

// NewH264Depacketizer constructs a depacketizer with an empty SPS/PPS cache.
func NewH264Depacketizer(opts ...H264Option) *H264Depacketizer {
	d := &H264Depacketizer{
		logger: slog.Default(),
		buffer: make([]byte, 0, 1<<20),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// H264Option configures an H264Depacketizer at construction time.
type H264Option func(*H264Depacketizer)

// WithH264Logger attaches a structured logger for discontinuity tracing.
func WithH264Logger(l *slog.Logger) H264Option {
	return func(d *H264Depacketizer) { d.logger = l }
}

// Feed parses raw as one RTP packet and advances depacketization state.
func (d *H264Depacketizer) Feed(raw []byte) error {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(raw); err != nil {
		return fmt.Errorf("media: unmarshal RTP packet: %w", err)
	}
	d.trackSequence(pkt.SequenceNumber)
	if len(pkt.Payload) == 0 {
		return nil
	}

	naluType := pkt.Payload[0] & 0x1F
	switch naluType {
	case NALUTypeFUA:
		return d.feedFUA(pkt)
	case NALUTypeSTAPA:
		return d.feedSTAPA(pkt)
	default:
		d.fuInFlight = false
		return d.emitNALU(pkt.Payload, naluType, pkt.Marker, pkt.Timestamp)
	}
}

// trackSequence counts and logs a gap in the RTP sequence number and,
// if an FU-A fragment is in flight, discards it, since a dropped
// interleaved-data frame mid-NALU leaves the fragment buffer holding a
// NALU that will never complete.
func (d *H264Depacketizer) trackSequence(seq uint16) {
	if !d.haveSeq {
		d.haveSeq = true
		d.lastSeq = seq
		return
	}
	if want := d.lastSeq + 1; seq != want {
		d.gapsSeen++
		d.logger.Warn("media: RTP sequence gap", "want", want, "got", seq, "fu_in_flight", d.fuInFlight)
		if d.fuInFlight {
			d.buffer = d.buffer[:0]
			d.fuInFlight = false
		}
	}
	d.lastSeq = seq
}

func (d *H264Depacketizer) feedFUA(pkt *rtp.Packet) error {
	if len(pkt.Payload) < 2 {
		return fmt.Errorf("media: FU-A packet too short: %w", wfderr.ErrProtocolMalformed)
	}

	fuIndicator := pkt.Payload[0]
	fuHeader := pkt.Payload[1]
	fragment := pkt.Payload[2:]

	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1F

	if start {
		d.buffer = d.buffer[:0]
		d.buffer = append(d.buffer, (fuIndicator&0xE0)|naluType)
		d.fuInFlight = true
	}
	if !d.fuInFlight {
		// Mid-fragment start dropped by a prior sequence gap; wait for
		// the next start-of-fragment rather than emit a truncated NALU.
		return nil
	}
	d.buffer = append(d.buffer, fragment...)

	if end {
		d.fuInFlight = false
		return d.emitNALU(d.buffer, naluType, pkt.Marker, pkt.Timestamp)
	}
	return nil
}

func (d *H264Depacketizer) feedSTAPA(pkt *rtp.Packet) error {
	d.fuInFlight = false
	payload := pkt.Payload[1:]
	nalus := make([]byte, 0, len(payload)*2)

	for len(payload) > 2 {
		size := binary.BigEndian.Uint16(payload[:2])
		payload = payload[2:]
		if len(payload) < int(size) {
			return fmt.Errorf("media: STAP-A NALU size exceeds payload: %w", wfderr.ErrProtocolMalformed)
		}
		nalu := payload[:size]
		payload = payload[size:]

		nalus = appendAVC(nalus, nalu)
		d.cacheParameterSet(nalu)
	}

	if len(nalus) > 0 && d.OnFrame != nil {
		d.OnFrame(nalus, false, pkt.Timestamp)
	}
	return nil
}

func (d *H264Depacketizer) emitNALU(nalu []byte, naluType uint8, marker bool, timestamp uint32) error {
	d.cacheParameterSet(nalu)

	isKeyframe := naluType == NALUTypeIFrame
	var frame []byte
	if isKeyframe && len(d.sps) > 0 && len(d.pps) > 0 {
		frame = make([]byte, 0, len(d.sps)+len(d.pps)+len(nalu)+12)
		frame = appendAVC(frame, d.sps)
		frame = appendAVC(frame, d.pps)
		frame = appendAVC(frame, nalu)
	} else {
		frame = appendAVC(make([]byte, 0, len(nalu)+4), nalu)
	}

	if marker && d.OnFrame != nil {
		d.OnFrame(frame, isKeyframe, timestamp)
	}
	return nil
}

func (d *H264Depacketizer) cacheParameterSet(nalu []byte) {
	if len(nalu) == 0 {
		return
	}
	switch nalu[0] & 0x1F {
	case NALUTypeSPS:
		d.sps = append([]byte(nil), nalu...)
	case NALUTypePPS:
		d.pps = append([]byte(nil), nalu...)
	}
}

// SPS returns the most recently cached sequence parameter set, if any.
func (d *H264Depacketizer) SPS() []byte { return d.sps }

// PPS returns the most recently cached picture parameter set, if any.
func (d *H264Depacketizer) PPS() []byte { return d.pps }

// SequenceGaps returns the number of RTP sequence discontinuities observed so far.
func (d *H264Depacketizer) SequenceGaps() uint64 { return d.gapsSeen }

func appendAVC(dst, nalu []byte) []byte {
	length := uint32(len(nalu))
	dst = append(dst, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
	return append(dst, nalu...)
}

// Package rtsp implements a streaming RTSP/1.0 message decoder with
// the Wi-Fi-Display interleaved-data extension, plus the line
// tokenizer its header parsers share.
package rtsp

import (
	"fmt"
	"log/slog"

	"github.com/chenbd/go-wfd/pkg/ring"
	"github.com/chenbd/go-wfd/pkg/wfderr"
)

type state int

const (
	stateNew state = iota
	stateHeader
	stateHeaderQuote
	stateHeaderNewline
	stateBody
	stateDataHead
	stateDataBody
)

// EventKind discriminates the two shapes a Decoder can emit. There is
// no error event: a fatal decode error is returned from Feed instead.
type EventKind int

const (
	EventMessage EventKind = iota
	EventData
)

// Event is handed to the caller-supplied EventHandler. Message and
// Data point into decoder-owned storage that is only valid for the
// duration of the handler call: the decoder clears its internal
// message object (and the Data payload's backing array is never
// reused, but Go's GC retains it only as long as the caller keeps a
// reference) as soon as the handler returns, per spec.md's
// swap-and-clear reuse contract. Copy out anything you need to keep.
type Event struct {
	Kind    EventKind
	Message *Message
	Data    *DataFrame
}

// EventHandler receives decoded events. A non-nil return value marks
// the decoder permanently dead, exactly as if Feed had hit a fatal
// parse error — this mirrors the original C decoder, where the
// caller's callback return code is propagated out of decoder_submit()
// and can abort an in-progress feed (a behavior spec.md's distillation
// does not mention but original_source/src/rtsp_decoder.c relies on).
type EventHandler func(Event) error

// Decoder is a byte-wise RTSP/1.0 streaming decoder. The zero value is
// not usable; construct with NewDecoder.
type Decoder struct {
	buf    ring.Buffer
	buflen int
	state  state

	lastByte      byte
	remainingBody int

	dataChannel byte
	dataSize    uint16

	quoted bool
	dead   bool

	msg       Message
	idLineSet bool

	onEvent EventHandler
	logger  *slog.Logger
}

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithEventHandler sets the callback invoked for every decoded Message/Data event.
func WithEventHandler(h EventHandler) Option {
	return func(d *Decoder) { d.onEvent = h }
}

// WithLogger attaches a structured logger for debug-level tracing of parse decisions.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// NewDecoder constructs a Decoder ready to accept bytes via Feed.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Reset clears the ring buffer, any in-progress message, and the dead
// latch, returning the decoder to its freshly-constructed state.
func (d *Decoder) Reset() {
	d.buf.Clear()
	d.buflen = 0
	d.state = stateNew
	d.lastByte = 0
	d.remainingBody = 0
	d.dataChannel = 0
	d.dataSize = 0
	d.quoted = false
	d.dead = false
	d.msg.reset()
	d.idLineSet = false
}

// Feed appends b to the internal ring buffer and walks it one byte at
// a time, emitting Message/Data events through the configured
// EventHandler as they complete. Feeding the empty slice to a live
// decoder is a no-op that succeeds. Once the decoder has hit a fatal error it is
// "dead": every subsequent Feed call fails until Reset.
func (d *Decoder) Feed(b []byte) error {
	if d.dead {
		return fmt.Errorf("rtsp: decoder is dead: %w", wfderr.ErrInvalidArgument)
	}
	if len(b) == 0 {
		return nil
	}

	d.buflen = d.buf.Len()
	d.buf.Push(b)

	for _, ch := range b {
		if err := d.dispatch(ch); err != nil {
			d.dead = true
			return err
		}
		d.lastByte = ch
	}

	if d.buflen != d.buf.Len() {
		d.dead = true
		return fmt.Errorf("rtsp: ring length %d != buflen %d: %w", d.buf.Len(), d.buflen, wfderr.ErrInternal)
	}
	return nil
}

func (d *Decoder) dispatch(ch byte) error {
	switch d.state {
	case stateNew:
		return d.feedNew(ch)
	case stateHeader:
		return d.feedHeader(ch)
	case stateHeaderQuote:
		return d.feedHeaderQuote(ch)
	case stateHeaderNewline:
		return d.feedHeaderNewline(ch)
	case stateBody:
		return d.feedBody(ch)
	case stateDataHead:
		return d.feedDataHead(ch)
	case stateDataBody:
		return d.feedDataBody(ch)
	default:
		return fmt.Errorf("rtsp: unreachable state %d: %w", d.state, wfderr.ErrInternal)
	}
}

func (d *Decoder) feedNew(ch byte) error {
	switch ch {
	case '\r', '\n', '\t', ' ':
		d.buflen++
	case '$':
		d.state = stateDataHead
		d.dataChannel = 0
		d.dataSize = 0
		d.buf.Drop(d.buflen + 1)
		d.buflen = 0
	default:
		d.state = stateHeader
		d.remainingBody = 0
		d.buf.Drop(d.buflen)
		d.buflen = 1
	}
	return nil
}

func (d *Decoder) feedHeader(ch byte) error {
	switch ch {
	case '\r':
		if d.lastByte == '\r' || d.lastByte == '\n' {
			d.state = stateHeaderNewline
			if err := d.finishHeaderLine(); err != nil {
				return err
			}
			d.buf.Drop(d.buflen + 1)
			d.buflen = 0
			if d.remainingBody == 0 {
				if err := d.submitMessage(); err != nil {
					return err
				}
			}
		} else {
			d.buflen++
		}
	case '\n':
		if d.lastByte == '\n' {
			if err := d.finishHeaderLine(); err != nil {
				return err
			}
			d.buf.Drop(d.buflen + 1)
			d.buflen = 0
			if d.remainingBody != 0 {
				d.state = stateBody
			} else {
				d.state = stateNew
				if err := d.submitMessage(); err != nil {
					return err
				}
			}
		} else {
			d.buflen++
		}
	case '\t', ' ':
		d.buflen++
	default:
		if d.lastByte == '\r' || d.lastByte == '\n' {
			if err := d.finishHeaderLine(); err != nil {
				return err
			}
			d.buf.Drop(d.buflen)
			d.buflen = 0
		}
		d.buflen++
		if ch == '"' {
			d.state = stateHeaderQuote
			d.quoted = false
		}
	}
	return nil
}

func (d *Decoder) feedHeaderQuote(ch byte) error {
	if d.lastByte == '\\' && !d.quoted {
		d.buflen++
		d.quoted = true
	} else {
		d.quoted = false
		d.buflen++
		if ch == '"' {
			d.state = stateHeader
		}
	}
	return nil
}

func (d *Decoder) feedHeaderNewline(ch byte) error {
	if ch == '\n' {
		d.buf.Drop(d.buflen + 1)
		d.buflen = 0
		if d.remainingBody != 0 {
			d.state = stateBody
		} else {
			d.state = stateNew
		}
		return nil
	}
	d.buf.Drop(d.buflen)
	d.buflen = 0
	d.state = stateBody
	return d.feedBody(ch)
}

func (d *Decoder) feedBody(ch byte) error {
	if d.remainingBody == 0 {
		d.state = stateNew
		return d.feedNew(ch)
	}

	d.buflen++
	d.remainingBody--

	if d.remainingBody == 0 {
		d.msg.Entity = d.buf.Peek(d.buflen)
		d.msg.HasEntity = true
		err := d.submitMessage()
		d.state = stateNew
		d.buf.Drop(d.buflen)
		d.buflen = 0
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) feedDataHead(ch byte) error {
	d.buflen++
	if d.buflen >= 3 {
		head := d.buf.Peek(3)
		d.buf.Drop(d.buflen)
		d.buflen = 0
		d.dataChannel = head[0]
		d.dataSize = uint16(head[1])<<8 | uint16(head[2])
		d.state = stateDataBody
	}
	return nil
}

func (d *Decoder) feedDataBody(ch byte) error {
	d.buflen++
	if d.buflen >= int(d.dataSize) {
		value := d.buf.Peek(int(d.dataSize))
		err := d.emitData(value)
		d.state = stateNew
		d.buf.Drop(d.buflen)
		d.buflen = 0
		if err != nil {
			return err
		}
	}
	return nil
}

// finishHeaderLine copies the accumulated buflen bytes out of the
// ring, sanitizes them, and routes them to the id-line parser (if no
// id-line has been seen yet for the in-progress message) or the
// header-line parser.
func (d *Decoder) finishHeaderLine() error {
	raw := d.buf.Peek(d.buflen)
	line := string(sanitizeLine(raw))

	if !d.idLineSet {
		parseIDLine(&d.msg, line)
		d.idLineSet = true
		if d.logger != nil {
			d.logger.Debug("rtsp: id-line parsed", "kind", d.msg.Kind, "line", line)
		}
		return nil
	}

	if err := decodeHeaderLine(&d.msg, line); err != nil {
		if d.logger != nil {
			d.logger.Debug("rtsp: fatal header-line error", "line", line, "err", err)
		}
		return err
	}
	d.remainingBody = d.msg.Headers[HeaderContentLength].ContentLength
	return nil
}

func (d *Decoder) submitMessage() error {
	err := d.callEvent(Event{Kind: EventMessage, Message: &d.msg})
	d.msg.reset()
	d.idLineSet = false
	return err
}

func (d *Decoder) emitData(value []byte) error {
	frame := DataFrame{Channel: d.dataChannel, Value: value}
	return d.callEvent(Event{Kind: EventData, Data: &frame})
}

func (d *Decoder) callEvent(ev Event) error {
	if d.onEvent == nil {
		return nil
	}
	return d.onEvent(ev)
}

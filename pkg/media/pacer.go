package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// catchupSpeedMultiplier is the playback speedup used to drain a
	// backlog without visibly jumping forward.
	catchupSpeedMultiplier = 1.1
	// catchupThreshold is the queue depth that triggers catch-up mode.
	catchupThreshold = 5
	// maxFrameDelay bounds how long a single frame can be held back,
	// guarding against runaway delays from a corrupt timestamp.
	maxFrameDelay = 200 * time.Millisecond
)

// PacedFrame is one access unit queued for output, keyed by its RTP
// timestamp rather than wall-clock arrival time.
type PacedFrame struct {
	Timestamp  uint32
	Payload    []byte
	Keyframe   bool
	ReceivedAt time.Time
}

// Pacer smooths a stream of timestamped frames using a leaky-bucket
// algorithm: frames enqueued in a TCP-paced burst are released on the
// timeline implied by their RTP timestamps, not their arrival times.
// Frames are emitted in the order they were enqueued; they are not
// reordered by timestamp.
// It is generic over the stream's clock rate and output sink so it can
// drive video or audio, a file, or a test sink.
type Pacer struct {
	logger    *slog.Logger
	clockRate uint32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frames chan PacedFrame

	writeMu sync.RWMutex
	write   func(payload []byte, timestamp uint32) error

	firstFrame bool
	lastTS     uint32
	lastSentAt time.Time

	statsMu        sync.RWMutex
	framesSent     uint64
	burstsAbsorbed uint64
	catchupEvents  uint64
}

// NewPacer constructs a Pacer for a stream running at clockRate Hz.
func NewPacer(ctx context.Context, clockRate uint32, logger *slog.Logger) *Pacer {
	ctx, cancel := context.WithCancel(ctx)
	return &Pacer{
		logger:     logger.With("component", "pacer"),
		clockRate:  clockRate,
		ctx:        ctx,
		cancel:     cancel,
		frames:     make(chan PacedFrame, 16),
		firstFrame: true,
	}
}

// SetWriter configures the output sink. Call before Start.
func (p *Pacer) SetWriter(write func(payload []byte, timestamp uint32) error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.write = write
}

// Start begins the pacing goroutine.
func (p *Pacer) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop()
	}()
}

// Stop halts the pacing goroutine and waits for it to exit.
func (p *Pacer) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Enqueue submits a frame for paced output, blocking if the internal
// buffer is full (providing backpressure to the reader feeding Enqueue).
func (p *Pacer) Enqueue(f PacedFrame) error {
	select {
	case p.frames <- f:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		p.statsMu.Lock()
		p.burstsAbsorbed++
		p.statsMu.Unlock()
		p.logger.Warn("pacer: queue full, applying backpressure", "queue_depth", len(p.frames))
		select {
		case p.frames <- f:
			return nil
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
}

func (p *Pacer) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case f := <-p.frames:
			if err := p.paceOne(f); err != nil {
				p.logger.Error("pacer: failed to emit frame", "timestamp", f.Timestamp, "error", err)
			}
		}
	}
}

func (p *Pacer) paceOne(f PacedFrame) error {
	if p.firstFrame {
		p.firstFrame = false
		p.lastTS = f.Timestamp
		p.lastSentAt = time.Now()
		return p.emit(f)
	}

	delay := p.delayFor(f.Timestamp)
	if len(p.frames) >= catchupThreshold {
		delay = time.Duration(float64(delay) / catchupSpeedMultiplier)
		p.statsMu.Lock()
		p.catchupEvents++
		p.statsMu.Unlock()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}

	p.lastTS = f.Timestamp
	p.lastSentAt = time.Now()
	return p.emit(f)
}

func (p *Pacer) delayFor(ts uint32) time.Duration {
	deltaTicks := int64(ts) - int64(p.lastTS)
	if deltaTicks < 0 {
		return 0
	}
	want := time.Duration(deltaTicks) * time.Second / time.Duration(p.clockRate)
	elapsed := time.Since(p.lastSentAt)
	delay := want - elapsed
	if delay < 0 {
		return 0
	}
	if delay > maxFrameDelay {
		return maxFrameDelay
	}
	return delay
}

func (p *Pacer) emit(f PacedFrame) error {
	p.writeMu.RLock()
	write := p.write
	p.writeMu.RUnlock()
	if write == nil {
		return fmt.Errorf("media: pacer has no writer configured")
	}
	if err := write(f.Payload, f.Timestamp); err != nil {
		return err
	}
	p.statsMu.Lock()
	p.framesSent++
	p.statsMu.Unlock()
	return nil
}

// Stats reports pacer counters for /metrics consumers.
type Stats struct {
	FramesSent     uint64
	BurstsAbsorbed uint64
	CatchupEvents  uint64
}

// GetStats returns a snapshot of the pacer's counters.
func (p *Pacer) GetStats() Stats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return Stats{FramesSent: p.framesSent, BurstsAbsorbed: p.burstsAbsorbed, CatchupEvents: p.catchupEvents}
}

// Package wfdmetrics exposes a Prometheus collector for the RTSP
// decoder and supplicant control-channel client, registered as a
// custom prometheus.Collector rather than via the global default
// registry so a library embedder can run multiple instances side by
// side.
package wfdmetrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestOutcome classifies how a supplicant request completed.
type RequestOutcome string

const (
	OutcomeOK                RequestOutcome = "ok"
	OutcomeTimeout            RequestOutcome = "timeout"
	OutcomePipeClosed         RequestOutcome = "pipe_closed"
	OutcomeProtocolMalformed  RequestOutcome = "protocol_malformed"
)

// Collector aggregates counters for one wfd session: decoder activity,
// supplicant request outcomes, and events received per type.
type Collector struct {
	messagesDesc   *prometheus.Desc
	dataFramesDesc *prometheus.Desc
	decodeErrDesc  *prometheus.Desc
	requestsDesc   *prometheus.Desc
	eventsDesc     *prometheus.Desc

	messages   uint64
	dataFrames uint64
	decodeErrs uint64

	mu       sync.Mutex
	requests map[RequestOutcome]uint64
	events   map[string]uint64
}

// NewCollector constructs a Collector. constLabels are attached to
// every metric it exports (e.g. an instance or ctrl_path label).
func NewCollector(constLabels prometheus.Labels) *Collector {
	return &Collector{
		messagesDesc: prometheus.NewDesc("wfd_rtsp_messages_total",
			"Total RTSP messages emitted by the decoder.", nil, constLabels),
		dataFramesDesc: prometheus.NewDesc("wfd_rtsp_data_frames_total",
			"Total interleaved data frames emitted by the decoder.", nil, constLabels),
		decodeErrDesc: prometheus.NewDesc("wfd_rtsp_decode_errors_total",
			"Total fatal decode errors (the decoder dies on each one).", nil, constLabels),
		requestsDesc: prometheus.NewDesc("wfd_wpactrl_requests_total",
			"Total supplicant control requests sent, by outcome.", []string{"outcome"}, constLabels),
		eventsDesc: prometheus.NewDesc("wfd_wpactrl_events_total",
			"Total supplicant events received, by event type.", []string{"event"}, constLabels),
		requests: make(map[RequestOutcome]uint64),
		events:   make(map[string]uint64),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesDesc
	ch <- c.dataFramesDesc
	ch <- c.decodeErrDesc
	ch <- c.requestsDesc
	ch <- c.eventsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.messagesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.messages)))
	ch <- prometheus.MustNewConstMetric(c.dataFramesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.dataFrames)))
	ch <- prometheus.MustNewConstMetric(c.decodeErrDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.decodeErrs)))

	c.mu.Lock()
	defer c.mu.Unlock()
	for outcome, n := range c.requests {
		ch <- prometheus.MustNewConstMetric(c.requestsDesc, prometheus.CounterValue, float64(n), string(outcome))
	}
	for event, n := range c.events {
		ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, float64(n), event)
	}
}

// IncMessage records one decoded RTSP message.
func (c *Collector) IncMessage() { atomic.AddUint64(&c.messages, 1) }

// IncDataFrame records one decoded interleaved data frame.
func (c *Collector) IncDataFrame() { atomic.AddUint64(&c.dataFrames, 1) }

// IncDecodeError records one fatal decode error.
func (c *Collector) IncDecodeError() { atomic.AddUint64(&c.decodeErrs, 1) }

// IncRequest records one completed supplicant request.
func (c *Collector) IncRequest(outcome RequestOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[outcome]++
}

// IncEvent records one received supplicant event, keyed by its name.
func (c *Collector) IncEvent(eventName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[eventName]++
}

package rtsp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// capturedEvent is a deep-enough snapshot of an Event taken inside the
// handler, since the decoder reuses and zeroes its Message storage the
// instant the handler returns.
type capturedEvent struct {
	kind EventKind
	msg  Message
	data DataFrame
}

func feedAllSplits(t *testing.T, input []byte, want []capturedEvent) {
	t.Helper()

	splits := [][]int{
		{len(input)}, // single Feed call
	}
	for i := 1; i < len(input); i++ {
		splits = append(splits, []int{i, len(input) - i})
	}
	if len(input) > 2 {
		splits = append(splits, ones(len(input)))
	}

	for _, split := range splits {
		var got []capturedEvent
		d := NewDecoder(WithEventHandler(func(ev Event) error {
			ce := capturedEvent{kind: ev.Kind}
			if ev.Message != nil {
				ce.msg = *ev.Message
			}
			if ev.Data != nil {
				ce.data = DataFrame{Channel: ev.Data.Channel, Value: append([]byte(nil), ev.Data.Value...)}
			}
			got = append(got, ce)
			return nil
		}))

		off := 0
		for _, n := range split {
			require.NoError(t, d.Feed(input[off:off+n]))
			off += n
		}

		require.Len(t, got, len(want))
		for i := range want {
			require.Equal(t, want[i].kind, got[i].kind, "split %v event %d", split, i)
			if want[i].kind == EventMessage {
				require.Equal(t, want[i].msg.Kind, got[i].msg.Kind)
				require.Equal(t, want[i].msg.Method, got[i].msg.Method)
				require.Equal(t, want[i].msg.MethodCode, got[i].msg.MethodCode)
				require.Equal(t, want[i].msg.URI, got[i].msg.URI)
				require.Equal(t, want[i].msg.VersionMajor, got[i].msg.VersionMajor)
				require.Equal(t, want[i].msg.VersionMinor, got[i].msg.VersionMinor)
				require.Equal(t, want[i].msg.StatusCode, got[i].msg.StatusCode)
				require.Equal(t, want[i].msg.ReasonPhrase, got[i].msg.ReasonPhrase)
				require.Equal(t, want[i].msg.IDLine, got[i].msg.IDLine)
				require.Equal(t, want[i].msg.HasEntity, got[i].msg.HasEntity)
				require.Equal(t, string(want[i].msg.Entity), string(got[i].msg.Entity))
				for h := range want[i].msg.Headers {
					require.Equal(t, want[i].msg.Headers[h].Lines, got[i].msg.Headers[h].Lines, "header bucket %d", h)
					require.Equal(t, want[i].msg.Headers[h].ContentLength, got[i].msg.Headers[h].ContentLength)
					require.Equal(t, want[i].msg.Headers[h].CSeq, got[i].msg.Headers[h].CSeq)
				}
			} else {
				require.Equal(t, want[i].data, got[i].data)
			}
		}
	}
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestScenario1Request(t *testing.T) {
	input := []byte("OPTIONS * RTSP/1.0\n\r\n")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindRequest
	want.msg.Method = "OPTIONS"
	want.msg.MethodCode = MethodOptions
	want.msg.URI = "*"
	want.msg.VersionMajor = 1
	want.msg.VersionMinor = 0
	want.msg.IDLine = "OPTIONS * RTSP/1.0"
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestScenario2Response(t *testing.T) {
	input := []byte("RTSP/1.0 200 OK Something\n\n")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindResponse
	want.msg.VersionMajor = 1
	want.msg.VersionMinor = 0
	want.msg.StatusCode = 200
	want.msg.ReasonPhrase = "OK Something"
	want.msg.IDLine = "RTSP/1.0 200 OK Something"
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestScenario3InterleavedData(t *testing.T) {
	input := []byte("$\x01\x00\x06RAWSTH")
	want := capturedEvent{kind: EventData}
	want.data = DataFrame{Channel: 1, Value: []byte("RAWSTH")}
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestScenario4UnknownHeaders(t *testing.T) {
	input := []byte("OPTIONS * RTSP/2.1\nsome-header:value\nsome-other-header:buhu\n\n")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindRequest
	want.msg.Method = "OPTIONS"
	want.msg.MethodCode = MethodOptions
	want.msg.URI = "*"
	want.msg.VersionMajor = 2
	want.msg.VersionMinor = 1
	want.msg.IDLine = "OPTIONS * RTSP/2.1"
	want.msg.Headers[HeaderUnknown].Lines = []string{"some-header:value", "some-other-header:buhu"}
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestScenario5ContentLengthEntity(t *testing.T) {
	input := []byte("STH\r\ncontent-length:5\r\n\r\n12345")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindUnknown
	want.msg.IDLine = "STH"
	want.msg.Headers[HeaderContentLength].Lines = []string{"content-length:5"}
	want.msg.Headers[HeaderContentLength].ContentLength = 5
	want.msg.Entity = []byte("12345")
	want.msg.HasEntity = true
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestLeadingWhitespaceSkipped(t *testing.T) {
	input := []byte("   \r\nOPTIONS * RTSP/1.0\n\r\n")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindRequest
	want.msg.Method = "OPTIONS"
	want.msg.MethodCode = MethodOptions
	want.msg.URI = "*"
	want.msg.VersionMajor = 1
	want.msg.VersionMinor = 0
	want.msg.IDLine = "OPTIONS * RTSP/1.0"
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestIDLineTerminatorVariants(t *testing.T) {
	for _, term := range []string{"\n\r", "\r\n", "\r\r", "\n\n"} {
		input := []byte("OPTIONS * RTSP/1.0" + term + "\r\n")
		want := capturedEvent{kind: EventMessage}
		want.msg.Kind = KindRequest
		want.msg.Method = "OPTIONS"
		want.msg.MethodCode = MethodOptions
		want.msg.URI = "*"
		want.msg.VersionMajor = 1
		want.msg.VersionMinor = 0
		want.msg.IDLine = "OPTIONS * RTSP/1.0"
		feedAllSplits(t, input, []capturedEvent{want})
	}
}

func TestInterleavedDataAfterPriorMessage(t *testing.T) {
	input := []byte("OPTIONS * RTSP/1.0\n\r\n$\x02\x00\x03abc")
	want1 := capturedEvent{kind: EventMessage}
	want1.msg.Kind = KindRequest
	want1.msg.Method = "OPTIONS"
	want1.msg.MethodCode = MethodOptions
	want1.msg.URI = "*"
	want1.msg.VersionMajor = 1
	want1.msg.VersionMinor = 0
	want1.msg.IDLine = "OPTIONS * RTSP/1.0"

	want2 := capturedEvent{kind: EventData}
	want2.data = DataFrame{Channel: 2, Value: []byte("abc")}

	feedAllSplits(t, input, []capturedEvent{want1, want2})
}

func TestHeaderContinuationLine(t *testing.T) {
	input := []byte("OPTIONS * RTSP/1.0\r\nTransport:RTP\r\n avp\r\n\r\n")
	want := capturedEvent{kind: EventMessage}
	want.msg.Kind = KindRequest
	want.msg.Method = "OPTIONS"
	want.msg.MethodCode = MethodOptions
	want.msg.URI = "*"
	want.msg.VersionMajor = 1
	want.msg.VersionMinor = 0
	want.msg.IDLine = "OPTIONS * RTSP/1.0"
	want.msg.Headers[HeaderTransport].Lines = []string{"Transport:RTP avp"}
	feedAllSplits(t, input, []capturedEvent{want})
}

func TestContentLengthTrailingNonDigitIsFatal(t *testing.T) {
	input := []byte("OPTIONS * RTSP/1.0\r\nContent-Length:5x\r\n\r\n")
	d := NewDecoder()
	err := d.Feed(input)
	require.Error(t, err)

	err2 := d.Feed([]byte("anything"))
	require.Error(t, err2)
}

func TestQuotedHeaderRegionWithEscapedQuoteDoesNotClose(t *testing.T) {
	input := []byte(`OPTIONS * RTSP/1.0` + "\r\n" + `X-Quoted:"a\"b"` + "\r\n\r\n")
	var got []capturedEvent
	d := NewDecoder(WithEventHandler(func(ev Event) error {
		ce := capturedEvent{kind: ev.Kind}
		if ev.Message != nil {
			ce.msg = *ev.Message
		}
		got = append(got, ce)
		return nil
	}))
	require.NoError(t, d.Feed(input))
	require.Len(t, got, 1)
	require.Equal(t, []string{`X-Quoted:"a\"b"`}, got[0].msg.Headers[HeaderUnknown].Lines)
}

func TestMessageReuseZeroedAfterCallback(t *testing.T) {
	var sawZero bool
	var count int
	d := NewDecoder(WithEventHandler(func(ev Event) error {
		count++
		return nil
	}))
	require.NoError(t, d.Feed([]byte("OPTIONS * RTSP/1.0\n\r\n")))
	require.Equal(t, 1, count)
	// After the handler returns, the decoder's internal message must be
	// back to the zero value — feeding a second, different message must
	// not retain anything from the first.
	require.Equal(t, Message{}, d.msg)
	sawZero = true
	require.True(t, sawZero)
}

func TestEventHandlerErrorKillsDecoder(t *testing.T) {
	boom := errors.New("boom")
	d := NewDecoder(WithEventHandler(func(ev Event) error { return boom }))
	err := d.Feed([]byte("OPTIONS * RTSP/1.0\n\r\n"))
	require.ErrorIs(t, err, boom)

	err2 := d.Feed([]byte("OPTIONS * RTSP/1.0\n\r\n"))
	require.Error(t, err2)
}

func TestResponseTrailingTextAsymmetry(t *testing.T) {
	// Request: any trailing text after the version is rejected outright.
	input := []byte("OPTIONS * RTSP/1.0 garbage\n\r\n")
	var got []capturedEvent
	d := NewDecoder(WithEventHandler(func(ev Event) error {
		ce := capturedEvent{kind: ev.Kind}
		if ev.Message != nil {
			ce.msg = *ev.Message
		}
		got = append(got, ce)
		return nil
	}))
	require.NoError(t, d.Feed(input))
	require.Len(t, got, 1)
	require.Equal(t, KindUnknown, got[0].msg.Kind)
}

func TestResetClearsDeadState(t *testing.T) {
	d := NewDecoder()
	require.Error(t, d.Feed([]byte("OPTIONS * RTSP/1.0\r\nContent-Length:bad\r\n\r\n")))
	d.Reset()
	require.NoError(t, d.Feed([]byte("OPTIONS * RTSP/1.0\n\r\n")))
}

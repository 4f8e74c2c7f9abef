package rtsp

import (
	"fmt"
	"strconv"

	"github.com/chenbd/go-wfd/pkg/wfderr"
)

// decodeHeaderLine tokenizes one sanitized header line and files it
// into msg's bucket array. It requires at least two tokens with the
// second being a literal ":"; anything else (including an unrecognized
// header name) lands in HeaderUnknown. Content-Length failures are
// fatal per spec.md §4.5/§7; CSeq failures are not.
func decodeHeaderLine(msg *Message, line string) error {
	tokens := Tokenize([]byte(line))
	if len(tokens) < 2 || tokens[1] != ":" {
		appendUnknown(msg, line)
		return nil
	}

	kind := HeaderFromName(tokens[0])
	value := ""
	if len(tokens) >= 3 {
		value = tokens[2]
	}

	switch kind {
	case HeaderContentLength:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("rtsp: parse Content-Length %q: %w", value, wfderr.ErrProtocolMalformed)
		}
		b := &msg.Headers[HeaderContentLength]
		b.Lines = append(b.Lines, line)
		b.ContentLength = int(n)
		return nil
	case HeaderCSeq:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			appendUnknown(msg, line)
			return nil
		}
		b := &msg.Headers[HeaderCSeq]
		b.Lines = append(b.Lines, line)
		b.CSeq = n
		return nil
	default:
		b := &msg.Headers[kind]
		b.Lines = append(b.Lines, line)
		return nil
	}
}

func appendUnknown(msg *Message, line string) {
	b := &msg.Headers[HeaderUnknown]
	b.Lines = append(b.Lines, line)
}

package rtsp

import (
	"strconv"
	"strings"
)

// parseIDLine dispatches the first header line of a message to the
// request or response parser based on a case-insensitive "RTSP/"
// prefix, and fills in msg accordingly. Per spec.md §9's load-bearing
// open question, the two parsers are NOT symmetric: a request with any
// trailing text after the version is rejected outright (Kind stays
// Unknown), while a response keeps everything after the status code,
// verbatim, as the reason phrase.
func parseIDLine(msg *Message, line string) {
	msg.IDLine = line

	if len(line) >= 5 && strings.EqualFold(line[:5], "RTSP/") {
		parseResponseLine(msg, line)
		return
	}
	parseRequestLine(msg, line)
}

// parseRequestLine parses "<cmd> <url> RTSP/<major>.<minor>" with
// nothing permitted after the minor version.
func parseRequestLine(msg *Message, line string) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 <= 0 {
		msg.Kind = KindUnknown
		return
	}
	cmd := line[:sp1]

	rest := line[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 <= 0 {
		msg.Kind = KindUnknown
		return
	}
	uri := rest[:sp2]

	tail := rest[sp2+1:]
	if len(tail) < 5 || !strings.EqualFold(tail[:5], "RTSP/") {
		msg.Kind = KindUnknown
		return
	}
	tail = tail[5:]

	major, rem, ok := takeUint(tail)
	if !ok || len(rem) == 0 || rem[0] != '.' {
		msg.Kind = KindUnknown
		return
	}
	minor, rem2, ok := takeUint(rem[1:])
	if !ok || len(rem2) != 0 {
		msg.Kind = KindUnknown
		return
	}

	msg.Kind = KindRequest
	msg.Method = cmd
	msg.MethodCode = MethodFromName(cmd)
	msg.URI = uri
	msg.VersionMajor = major
	msg.VersionMinor = minor
}

// parseResponseLine parses "RTSP/<major>.<minor> <code> <phrase..>"
// where the reason phrase is optional and, if present, may contain
// arbitrary trailing text (kept verbatim).
func parseResponseLine(msg *Message, line string) {
	rest := line[5:]

	major, rem, ok := takeUint(rest)
	if !ok || len(rem) == 0 || rem[0] != '.' {
		msg.Kind = KindUnknown
		return
	}
	minor, rem2, ok := takeUint(rem[1:])
	if !ok || len(rem2) == 0 || rem2[0] != ' ' {
		msg.Kind = KindUnknown
		return
	}

	code, rem3, ok := takeUint(rem2[1:])
	if !ok {
		msg.Kind = KindUnknown
		return
	}
	if len(rem3) > 0 && rem3[0] != ' ' {
		msg.Kind = KindUnknown
		return
	}
	phrase := ""
	if len(rem3) > 0 {
		phrase = rem3[1:]
	}

	msg.Kind = KindResponse
	msg.VersionMajor = major
	msg.VersionMinor = minor
	msg.StatusCode = int(code)
	msg.ReasonPhrase = phrase
}

// takeUint consumes a run of ASCII decimal digits from the front of s,
// returning the parsed value, the remainder, and whether at least one
// digit was consumed.
func takeUint(s string) (uint, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	v, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, s, false
	}
	return uint(v), s[i:], true
}

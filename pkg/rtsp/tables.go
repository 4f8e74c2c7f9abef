package rtsp

import "strings"

// Method identifies an RTSP request method.
type Method int

const (
	MethodUnknown Method = iota
	MethodAnnounce
	MethodDescribe
	MethodGetParameter
	MethodOptions
	MethodPause
	MethodPlay
	MethodRecord
	MethodRedirect
	MethodSetup
	MethodSetParameter
	MethodTeardown
	methodCount
)

var methodNames = [methodCount]string{
	MethodAnnounce:      "ANNOUNCE",
	MethodDescribe:      "DESCRIBE",
	MethodGetParameter:  "GET_PARAMETER",
	MethodOptions:       "OPTIONS",
	MethodPause:         "PAUSE",
	MethodPlay:          "PLAY",
	MethodRecord:        "RECORD",
	MethodRedirect:      "REDIRECT",
	MethodSetup:         "SETUP",
	MethodSetParameter:  "SET_PARAMETER",
	MethodTeardown:      "TEARDOWN",
}

// MethodName returns the wire name for a method code, or "" if code is out of range.
func MethodName(m Method) string {
	if m < 0 || int(m) >= len(methodNames) {
		return ""
	}
	return methodNames[m]
}

// MethodFromName resolves a wire method token case-insensitively.
// MethodUnknown is returned for anything not in the table.
func MethodFromName(name string) Method {
	for m, n := range methodNames {
		if n != "" && strings.EqualFold(n, name) {
			return Method(m)
		}
	}
	return MethodUnknown
}

// Header identifies a known RTSP header kind; it also indexes the
// per-kind bucket array carried by Message.
type Header int

const (
	HeaderUnknown Header = iota
	HeaderAccept
	HeaderAcceptEncoding
	HeaderAcceptLanguage
	HeaderAllow
	HeaderAuthorization
	HeaderBandwidth
	HeaderBlocksize
	HeaderCacheControl
	HeaderConference
	HeaderConnection
	HeaderContentBase
	HeaderContentEncoding
	HeaderContentLanguage
	HeaderContentLength
	HeaderContentLocation
	HeaderContentType
	HeaderCSeq
	HeaderDate
	HeaderExpires
	HeaderFrom
	HeaderHost
	HeaderIfMatch
	HeaderIfModifiedSince
	HeaderLastModified
	HeaderLocation
	HeaderProxyAuthenticate
	HeaderProxyRequire
	HeaderPublic
	HeaderRange
	HeaderReferer
	HeaderRetryAfter
	HeaderRequire
	HeaderRTPInfo
	HeaderScale
	HeaderSpeed
	HeaderServer
	HeaderSession
	HeaderTimestamp
	HeaderTransport
	HeaderUnsupported
	HeaderUserAgent
	HeaderVary
	HeaderVia
	HeaderWWWAuthenticate
	headerCount
)

var headerNames = [headerCount]string{
	HeaderAccept:            "Accept",
	HeaderAcceptEncoding:    "Accept-Encoding",
	HeaderAcceptLanguage:    "Accept-Language",
	HeaderAllow:             "Allow",
	HeaderAuthorization:     "Authorization",
	HeaderBandwidth:         "Bandwidth",
	HeaderBlocksize:         "Blocksize",
	HeaderCacheControl:      "Cache-Control",
	HeaderConference:        "Conference",
	HeaderConnection:        "Connection",
	HeaderContentBase:       "Content-Base",
	HeaderContentEncoding:   "Content-Encoding",
	HeaderContentLanguage:   "Content-Language",
	HeaderContentLength:     "Content-Length",
	HeaderContentLocation:   "Content-Location",
	HeaderContentType:       "Content-Type",
	HeaderCSeq:              "CSeq",
	HeaderDate:              "Date",
	HeaderExpires:           "Expires",
	HeaderFrom:              "From",
	HeaderHost:              "Host",
	HeaderIfMatch:           "If-Match",
	HeaderIfModifiedSince:   "If-Modified-Since",
	HeaderLastModified:      "Last-Modified",
	HeaderLocation:          "Location",
	HeaderProxyAuthenticate: "Proxy-Authenticate",
	HeaderProxyRequire:      "Proxy-Require",
	HeaderPublic:            "Public",
	HeaderRange:             "Range",
	HeaderReferer:           "Referer",
	HeaderRetryAfter:        "Retry-After",
	HeaderRequire:           "Require",
	HeaderRTPInfo:           "RTP-Info",
	HeaderScale:             "Scale",
	HeaderSpeed:             "Speed",
	HeaderServer:            "Server",
	HeaderSession:           "Session",
	HeaderTimestamp:         "Timestamp",
	HeaderTransport:         "Transport",
	HeaderUnsupported:       "Unsupported",
	HeaderUserAgent:         "User-Agent",
	HeaderVary:              "Vary",
	HeaderVia:               "Via",
	HeaderWWWAuthenticate:   "WWW-Authenticate",
}

// HeaderName returns the wire name for a header code, or "" if unknown/out of range.
func HeaderName(h Header) string {
	if h < 0 || int(h) >= len(headerNames) {
		return ""
	}
	return headerNames[h]
}

// HeaderFromName resolves a header token case-insensitively, matching
// the whole token. HeaderUnknown is returned for anything not in the table.
func HeaderFromName(name string) Header {
	for h, n := range headerNames {
		if n != "" && strings.EqualFold(n, name) {
			return Header(h)
		}
	}
	return HeaderUnknown
}

// statusDescriptions supplements the decoder proper: this library never
// composes RTSP responses, but callers building one (e.g. a test sink
// that replies to a Miracast source) need the canonical reason phrases.
var statusDescriptions = map[int]string{
	100: "Continue",
	200: "OK",
	201: "Created",
	250: "Low on Storage Space",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Moved Temporarily",
	303: "See Other",
	304: "Not Modified",
	305: "Use Proxy",
	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	414: "Request URI Too Large",
	415: "Unsupported Media Type",
	451: "Parameter Not Understood",
	452: "Conference Not Found",
	453: "Not Enough Bandwidth",
	454: "Session Not Found",
	455: "Method Not Valid In This State",
	456: "Header Field Not Valid For Resource",
	457: "Invalid Range",
	458: "Parameter Is Read-Only",
	459: "Aggregate Operation Not Allowed",
	460: "Only Aggregate Operation Allowed",
	461: "Unsupported Transport",
	462: "Destination Unreachable",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "RTSP Version Not Supported",
	551: "Option Not Supported",
}

// StatusIsValid reports whether code falls within the RTSP status-code range.
func StatusIsValid(code int) bool {
	return code >= 100 && code < 600
}

// StatusBase rounds a status code down to its hundred-block (e.g. 404 -> 400).
func StatusBase(code int) int {
	switch {
	case code >= 100 && code < 200:
		return 100
	case code >= 200 && code < 300:
		return 200
	case code >= 300 && code < 400:
		return 300
	case code >= 400 && code < 500:
		return 400
	case code >= 500 && code < 600:
		return 500
	default:
		return 600
	}
}

// StatusText returns the canonical reason phrase for a status code, or "" if unknown.
func StatusText(code int) string {
	return statusDescriptions[code]
}

package rtsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeLineCollapsesWhitespace(t *testing.T) {
	got := sanitizeLine([]byte("a  b\t\tc\r\nd   "))
	require.Equal(t, "a b c d", string(got))
}

func TestSanitizeLineDropsUnquotedNUL(t *testing.T) {
	got := sanitizeLine([]byte("a\x00b"))
	require.Equal(t, "ab", string(got))
}

func TestSanitizeLinePreservesQuotedRegion(t *testing.T) {
	got := sanitizeLine([]byte(`a "b  c" d`))
	require.Equal(t, `a "b  c" d`, string(got))
}

func TestSanitizeLineEscapedQuoteDoesNotClose(t *testing.T) {
	got := sanitizeLine([]byte(`"a\"b"`))
	require.Equal(t, `"a\"b"`, string(got))
}

// An escaped NUL inside a quoted region must become the two literal
// bytes \0, not a doubled backslash.
func TestSanitizeLineEscapedNULInQuote(t *testing.T) {
	got := sanitizeLine([]byte("\"a\\\x00b\""))
	require.Equal(t, `"a\0b"`, string(got))
}

func TestSanitizeLineDropsNULInsideQuote(t *testing.T) {
	got := sanitizeLine([]byte("\"a\x00b\""))
	require.Equal(t, `"ab"`, string(got))
}

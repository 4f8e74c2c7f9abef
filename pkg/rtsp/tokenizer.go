package rtsp

// Tokenize splits a single RTSP line into its constituent tokens. It
// mirrors the C tokenizer this decoder is modeled on: outside a quoted
// region, whitespace closes the current token; any of the RTSP
// separators `()[]{}<>@,;:\/?=` closes the current token and is then
// emitted as its own single-character token; control bytes and
// embedded NUL are discarded but also close the current token. Inside
// a double-quoted region, `\` starts a recognized escape sequence and
// an unescaped `"` closes the quoted token (always emitted, even if
// empty).
//
// Unlike the C original this never fails: Go slices grow without a
// caller-supplied bound, so there is no allocation-failure case to
// surface.
func Tokenize(line []byte) []string {
	var tokens []string
	var cur []byte
	quoted := false
	escaped := false
	var prevNonzero, lastNonzero bool

	emit := func() {
		tokens = append(tokens, string(cur))
		cur = cur[:0]
	}

	for _, c := range line {
		prevNonzero = lastNonzero
		lastNonzero = false

		if quoted {
			if escaped {
				lastNonzero = true
				switch c {
				case '\\':
					cur = append(cur, '\\')
				case '"':
					cur = append(cur, '"')
				case 'n':
					cur = append(cur, '\n')
				case 'r':
					cur = append(cur, '\r')
				case 't':
					cur = append(cur, '\t')
				case 'a':
					cur = append(cur, '\a')
				case 'f':
					cur = append(cur, '\f')
				case 'v':
					cur = append(cur, '\v')
				case 'b':
					cur = append(cur, '\b')
				case 'e':
					cur = append(cur, 0x1b)
				case 0:
					cur = append(cur, '\\', '0')
				default:
					cur = append(cur, '\\', c)
				}
				escaped = false
				continue
			}

			switch {
			case c == '"':
				emit()
				quoted = false
			case c == '\\':
				escaped = true
				lastNonzero = prevNonzero
			case c == 0:
				lastNonzero = prevNonzero
			default:
				cur = append(cur, c)
				lastNonzero = true
			}
			continue
		}

		switch {
		case c == '"':
			if prevNonzero {
				emit()
			}
			quoted = true
		case isSpace(c):
			if prevNonzero {
				emit()
			}
		case isSeparator(c):
			if prevNonzero {
				emit()
			}
			cur = append(cur, c)
			emit()
		case c <= 0x1f || c == 0x7f:
			if prevNonzero {
				emit()
			}
		default:
			cur = append(cur, c)
			lastNonzero = true
		}
	}

	if lastNonzero || quoted {
		if escaped {
			cur = append(cur, '\\')
		}
		emit()
	}

	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSeparator(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '<', '>', '@', ',', ';', ':', '\\', '/', '?', '=':
		return true
	}
	return false
}

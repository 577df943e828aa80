package logging

import (
	"io"
	"net"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
)

// colorLineWriter colors slog text lines: the line in its level color,
// quoted strings green, IP addresses cyan and numbers yellow.
// Lines without a level= token pass through untouched.
type colorLineWriter struct {
	dst io.Writer
}

// Write renders one handler line.
// Params: p one slog text record, optionally newline-terminated.
// Returns: len(p) on success or destination write error.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	line := string(p)
	base := levelColor(line)
	if base == "" {
		if _, err := io.WriteString(w.dst, line); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	body, newline := strings.CutSuffix(line, "\n")
	var builder strings.Builder
	builder.Grow(len(line) + 64)
	builder.WriteString(base)

	for idx := 0; idx < len(body); {
		if body[idx] == ' ' {
			builder.WriteByte(' ')
			idx++
			continue
		}
		end := tokenEnd(body, idx)
		writeToken(&builder, body[idx:end], base)
		idx = end
	}

	builder.WriteString(ansiReset)
	if newline {
		builder.WriteByte('\n')
	}
	if _, err := io.WriteString(w.dst, builder.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelColor picks the base color from the level= token.
func levelColor(line string) string {
	var value string
	for _, token := range strings.Fields(line) {
		if rest, ok := strings.CutPrefix(token, "level="); ok {
			value = rest
			break
		}
	}

	switch {
	case strings.HasPrefix(value, "DEBUG"):
		return ansiGray
	case strings.HasPrefix(value, "INFO"):
		return ansiBlue
	case strings.HasPrefix(value, "WARN"):
		return ansiYellow
	case strings.HasPrefix(value, "ERROR"):
		return ansiRed
	case strings.HasPrefix(value, "PANIC"):
		return ansiMagenta
	default:
		return ""
	}
}

// tokenEnd returns the index after the token starting at start; quoted spaces do not split.
func tokenEnd(body string, start int) int {
	inQuote := false
	for idx := start; idx < len(body); idx++ {
		switch body[idx] {
		case '\\':
			if inQuote {
				idx++
			}
		case '"':
			inQuote = !inQuote
		case ' ':
			if !inQuote {
				return idx
			}
		}
	}
	return len(body)
}

func writeToken(builder *strings.Builder, token, base string) {
	key, value, hasValue := strings.Cut(token, "=")
	if !hasValue || key == "level" || key == "time" {
		builder.WriteString(token)
		return
	}

	builder.WriteString(key)
	builder.WriteByte('=')

	color := valueColor(value)
	if color == "" {
		builder.WriteString(value)
		return
	}
	builder.WriteString(color)
	builder.WriteString(value)
	builder.WriteString(ansiReset)
	builder.WriteString(base)
}

func valueColor(value string) string {
	switch {
	case strings.HasPrefix(value, `"`):
		return ansiGreen
	case isIPToken(value):
		return ansiCyan
	case isNumberToken(value):
		return ansiYellow
	default:
		return ""
	}
}

func isIPToken(value string) bool {
	if net.ParseIP(value) != nil {
		return true
	}
	host, _, err := net.SplitHostPort(value)
	return err == nil && net.ParseIP(host) != nil
}

func isNumberToken(value string) bool {
	digits := strings.TrimPrefix(value, "-")
	if digits == "" {
		return false
	}
	dot := false
	for idx := 0; idx < len(digits); idx++ {
		switch c := digits[idx]; {
		case c >= '0' && c <= '9':
		case c == '.' && !dot && idx > 0:
			dot = true
		default:
			return false
		}
	}
	return digits[len(digits)-1] != '.'
}

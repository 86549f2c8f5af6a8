// Package writer serializes a uhs tree back to the 88a or 9x file format.
package writer

import (
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/starford/uhskit/internal/markup"
)

var (
	// ErrInvalidShape means the tree cannot be expressed in the target format.
	ErrInvalidShape = errors.New("writer: tree shape not supported by format")

	// ErrUnresolvedLink means a link names an ID that no written hunk has.
	ErrUnresolvedLink = errors.New("writer: unresolved link target")
)

const crlf = "\r\n"

type options struct {
	logger *slog.Logger
}

// Option configures a write.
type Option func(*options)

// WithLogger sets where skipped nodes are reported.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// encodeText converts UTF-8 text to Latin-1 bytes, replacing what Latin-1
// cannot hold.
func encodeText(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			out, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).String(s)
			if err != nil {
				return s
			}
			return out
		}
	}
	return s
}

// oneLine flattens a title or 88a entry onto a single line.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, markup.BreakToken, " ")
	s = strings.ReplaceAll(s, "\r", "")
	return encodeText(strings.ReplaceAll(s, "\n", " "))
}

// bodyLines splits node text back into the file lines it came from.
func bodyLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, markup.BreakToken) {
		for _, l := range strings.Split(part, "\n") {
			out = append(out, encodeText(strings.TrimSuffix(l, "\r")))
		}
	}
	return out
}

func joinLines(lines []string) []byte {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(crlf)
	}
	return []byte(b.String())
}

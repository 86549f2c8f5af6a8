// Package parser reads UHS hint files, both the legacy 88a layout and the
// hunk-based 9x family, into a uhs node tree.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/starford/uhskit/internal/checksum"
	"github.com/starford/uhskit/internal/uhs"
)

var (
	// ErrNotUHS means the file does not start with the "UHS" magic line.
	ErrNotUHS = errors.New("parser: not a UHS file")

	// ErrStructure means a line count or pointer could not be parsed, so the
	// rest of the file cannot be located.
	ErrStructure = errors.New("parser: malformed structure")
)

const (
	magic = "UHS"

	// Sentinel ends the 88a compatibility stub at the top of 9x files.
	Sentinel = "** END OF 88A FORMAT **"

	eof = 0x1A
)

// Format families.
const (
	Format88a = "88a"
	Format9x  = "9x"
)

// CRCStatus reports the outcome of the trailing checksum check.
type CRCStatus int

const (
	CRCAbsent CRCStatus = iota
	CRCValid
	CRCMismatch
)

func (s CRCStatus) String() string {
	switch s {
	case CRCValid:
		return "valid"
	case CRCMismatch:
		return "mismatch"
	default:
		return "absent"
	}
}

// Result holds the output of parsing a hint file.
type Result struct {
	Root    *uhs.RootNode
	Format  string
	Version string
	CRC     CRCStatus
}

type options struct {
	logger *slog.Logger
	legacy bool
	path   string
}

// Option configures a parse.
type Option func(*options)

// WithLogger sets where recoverable problems are reported.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLegacyStub makes 9x files parse as their 88a compatibility stub only,
// the way a reader that predates 9x would see them.
func WithLegacyStub() Option {
	return func(o *options) { o.legacy = true }
}

// ParseFile reads and parses the file at path. Binary payloads reference the
// file on disk instead of being held in memory.
func ParseFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return parse(data, append(opts, func(o *options) { o.path = path })...)
}

// Parse parses a whole file held in memory.
func Parse(data []byte, opts ...Option) (*Result, error) {
	return parse(data, opts...)
}

func parse(data []byte, opts ...Option) (*Result, error) {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	log := o.logger.With("component", "parser")

	src := split(data)
	if len(src.lines) == 0 || src.lines[0] != magic {
		log.Error("missing magic", "line", 1, "error", ErrNotUHS)
		return nil, ErrNotUHS
	}

	stub := -1
	for i, l := range src.lines {
		if l == Sentinel {
			stub = i
			break
		}
	}

	if stub < 0 {
		root, err := parse88a(src.lines, log)
		if err != nil {
			log.Error("parse failed", "error", err)
			return nil, err
		}
		return &Result{Root: root, Format: Format88a, Version: Format88a}, nil
	}

	res := &Result{Format: Format9x, CRC: CRCValid}
	if !checksum.Valid(data) {
		stored, _ := checksum.Stored(data)
		log.Error("checksum mismatch",
			"stored", stored, "computed", checksum.Corrected(checksum.CRC16(data)))
		res.CRC = CRCMismatch
	}

	if o.legacy {
		root, err := parse88a(src.lines[:stub], log)
		if err != nil {
			log.Error("parse failed", "error", err)
			return nil, err
		}
		root.SetLegacy(true)
		res.Root = root
		res.Version = Format88a
		return res, nil
	}

	p := &parser9x{
		lines:    trimTrailingEmpty(src.lines[stub+1:]),
		bin:      src.binary,
		binStart: src.binaryStart,
		path:     o.path,
		log:      log,
	}
	root, err := p.parse()
	if err != nil {
		log.Error("parse failed", "error", err)
		return nil, err
	}
	res.Root = root
	res.Version = versionOf(root)
	return res, nil
}

// source is a file split into its text lines and trailing binary hunk.
type source struct {
	lines       []string
	binary      []byte
	binaryStart int64
}

// split cuts data into lines until a 0x1A byte starts a line. Everything
// after that byte is the binary hunk; its first byte sits at binaryStart.
func split(data []byte) source {
	var src source
	pos := 0
	for pos < len(data) {
		if data[pos] == eof {
			src.binaryStart = int64(pos + 1)
			src.binary = data[pos+1:]
			return src
		}
		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 {
			src.lines = append(src.lines, strings.TrimSuffix(string(data[pos:]), "\r"))
			break
		}
		src.lines = append(src.lines, strings.TrimSuffix(string(data[pos:pos+end]), "\r"))
		pos += end + 1
	}
	src.binaryStart = int64(len(data))
	return src
}

func trimTrailingEmpty(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// decodeText turns a Latin-1 line into UTF-8. Pure ASCII is returned as is.
func decodeText(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			out, err := charmap.ISO8859_1.NewDecoder().String(s)
			if err != nil {
				return s
			}
			return out
		}
	}
	return s
}

func versionOf(root *uhs.RootNode) string {
	for _, c := range root.Children() {
		if c.Type() == "Version" {
			return c.Text()
		}
	}
	return ""
}

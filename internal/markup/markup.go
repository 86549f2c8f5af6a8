// Package markup turns the escape sequences embedded in UHS node text into
// styled fragments.
package markup

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/uhskit/internal/uhs"
)

// BreakToken is what the parser puts where a multi-line body had a line break.
const BreakToken = "^break^"

// blankLine marks an explicitly empty line inside a body.
const blankLine = BreakToken + " " + BreakToken

// Decorator is the 9x markup scanner. Variants differ in the default break
// replacement and in which toggles they recognize.
type Decorator struct {
	name       string
	breakWith  string
	body       bool
	hyperlinks bool
}

// Name identifies the variant in snapshots and API output.
func (d *Decorator) Name() string { return d.name }

var (
	Title    = &Decorator{name: "title", breakWith: " "}
	Hint     = &Decorator{name: "hint", breakWith: "\n", body: true}
	NestHint = &Decorator{name: "nesthint", breakWith: "\n", body: true, hyperlinks: true}
	Comment  = &Decorator{name: "comment", breakWith: "\n", body: true, hyperlinks: true}
	Credit   = &Decorator{name: "credit", breakWith: "\n", body: true}
	Text     = &Decorator{name: "text", breakWith: "\n", body: true}
)

// Decorate scans raw once, left to right.
func (d *Decorator) Decorate(raw string) []uhs.Fragment {
	var (
		out   []uhs.Fragment
		buf   strings.Builder
		attrs []string
	)
	brk := d.breakWith
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, uhs.NewFragment(buf.String(), attrs...))
			buf.Reset()
		}
	}
	toggle := func(attr string, on bool) {
		flush()
		i := slices.Index(attrs, attr)
		switch {
		case on && i < 0:
			attrs = append(attrs, attr)
		case !on && i >= 0:
			attrs = slices.Delete(attrs, i, i+1)
		}
	}

	for i := 0; i < len(raw); {
		rest := raw[i:]
		switch {
		case strings.HasPrefix(rest, "##"):
			buf.WriteByte('#')
			i += 2
		case strings.HasPrefix(rest, "#a+"):
			if s, ok := accent(rest); ok {
				buf.WriteString(s)
				i += len("#a+xx#a-")
				continue
			}
			buf.WriteByte('#')
			i++
		case strings.HasPrefix(rest, "#w+"), strings.HasPrefix(rest, "#w."):
			brk = " "
			i += 3
		case strings.HasPrefix(rest, "#w-"):
			brk = "\n"
			i += 3
		case d.body && strings.HasPrefix(rest, blankLine):
			buf.WriteString("\n\n")
			i += len(blankLine)
		case strings.HasPrefix(rest, BreakToken):
			buf.WriteString(brk)
			i += len(BreakToken)
		case strings.HasPrefix(rest, "#p-"):
			toggle(uhs.AttrMonospaced, true)
			i += 3
		case strings.HasPrefix(rest, "#p+"):
			toggle(uhs.AttrMonospaced, false)
			i += 3
		case d.hyperlinks && strings.HasPrefix(rest, "#h+"):
			toggle(uhs.AttrHyperlink, true)
			i += 3
		case d.hyperlinks && strings.HasPrefix(rest, "#h-"):
			toggle(uhs.AttrHyperlink, false)
			i += 3
		default:
			buf.WriteByte(raw[i])
			i++
		}
	}
	flush()
	return out
}

// combining maps accent marks to Unicode combining characters.
var combining = map[byte]string{
	':':  "\u0308",
	'\'': "\u0301",
	'`':  "\u0300",
	'^':  "\u0302",
	'~':  "\u0303",
}

// accent decodes "#a+XY#a-" at the start of s.
func accent(s string) (string, bool) {
	if len(s) < 8 || s[5:8] != "#a-" {
		return "", false
	}
	pair := s[3:5]
	switch pair {
	case "ae":
		return "\u00e6", true
	case "TM":
		return "\u2122", true
	}
	mark, ok := combining[pair[1]]
	if !ok || pair[0] >= 0x80 {
		return "", false
	}
	return norm.NFC.String(pair[:1] + mark), true
}

// identity shows text verbatim; 88a files have no markup.
type identity struct{}

// Identity is the 88a decorator.
var Identity uhs.Decorator = identity{}

func (identity) Decorate(raw string) []uhs.Fragment {
	if raw == "" {
		return nil
	}
	return []uhs.Fragment{uhs.NewFragment(raw)}
}

// creditWrap is the width under which an 88a credit line keeps its break.
const creditWrap = 20

type credit88a struct{}

// Credit88a reproduces how old readers laid out 88a credits: a break
// survives only after a short line and otherwise becomes a space.
var Credit88a uhs.Decorator = credit88a{}

func (credit88a) Decorate(raw string) []uhs.Fragment {
	if raw == "" {
		return nil
	}
	var b strings.Builder
	visual := 0
	for _, r := range raw {
		if r != '\n' {
			b.WriteRune(r)
			visual++
			continue
		}
		if visual < creditWrap {
			b.WriteByte('\n')
			visual = 0
		} else {
			b.WriteByte(' ')
			visual++
		}
	}
	return []uhs.Fragment{uhs.NewFragment(b.String())}
}

// ByName returns the decorator with the given variant name, used when a tree
// is rebuilt from a snapshot.
func ByName(name string) uhs.Decorator {
	switch name {
	case "identity":
		return Identity
	case "credit88a":
		return Credit88a
	}
	for _, d := range []*Decorator{Title, Hint, NestHint, Comment, Credit, Text} {
		if d.name == name {
			return d
		}
	}
	return nil
}

// NameOf is the inverse of ByName. It returns "" for nil or foreign decorators.
func NameOf(d uhs.Decorator) string {
	switch v := d.(type) {
	case *Decorator:
		return v.name
	case identity:
		return "identity"
	case credit88a:
		return "credit88a"
	}
	return ""
}

// Plain flattens fragments back into a string.
func Plain(frags []uhs.Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.Text())
	}
	return b.String()
}

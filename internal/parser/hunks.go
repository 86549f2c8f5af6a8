package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/uhskit/internal/cipher"
	"github.com/starford/uhskit/internal/markup"
	"github.com/starford/uhskit/internal/uhs"
)

// parser9x builds a tree from the lines after the 88a stub. Line numbers
// are 1-based from the first line after the sentinel.
type parser9x struct {
	lines    []string
	bin      []byte
	binStart int64
	path     string
	key      []byte
	root     *uhs.RootNode
	log      *slog.Logger

	incentives []string
}

// hunk is a parsed header. The span covers lines [line, end).
type hunk struct {
	line  int
	count int
	kind  string
	end   int
}

func (h hunk) title() int { return h.line + 1 }
func (h hunk) body() int  { return h.line + 2 }

func (p *parser9x) line(n int) string {
	if n < 1 || n > len(p.lines) {
		return ""
	}
	return p.lines[n-1]
}

func (p *parser9x) parse() (*uhs.RootNode, error) {
	p.root = uhs.NewRootNode()
	if len(p.lines) < 2 {
		return nil, fmt.Errorf("%w: no hunks after the 88a stub", ErrStructure)
	}
	master := p.line(2)
	p.key = cipher.DeriveKey(master)
	p.root.SetText(decodeText(master))
	p.root.SetDecorator(markup.Title)

	for cur := 1; cur <= len(p.lines); {
		n, next, err := p.parseHunk(cur)
		if err != nil {
			return nil, err
		}
		_ = p.root.AddChild(n)
		cur = next
	}

	for _, list := range p.incentives {
		ApplyRestrictions(p.root, list, p.log)
	}
	return p.root, nil
}

// header reads the "<count> <type>" line at n. A count that is not a
// positive integer leaves no safe way to find the next hunk.
func (p *parser9x) header(n int) (hunk, error) {
	fields := strings.Fields(p.line(n))
	if len(fields) == 0 {
		return hunk{}, fmt.Errorf("%w: line %d: empty hunk header", ErrStructure, n)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 1 {
		return hunk{}, fmt.Errorf("%w: line %d: bad hunk length %q", ErrStructure, n, fields[0])
	}
	h := hunk{line: n, count: count, end: n + count}
	if len(fields) > 1 {
		h.kind = fields[1]
	}
	if h.end > len(p.lines)+1 {
		p.log.Error("hunk overruns file", "line", n, "type", h.kind, "declared", count)
		h.end = len(p.lines) + 1
	}
	return h, nil
}

// parseHunk parses the hunk at line n and registers its ID. The caller
// resumes at the returned line, which is always the end of the declared
// span.
func (p *parser9x) parseHunk(n int) (*uhs.Node, int, error) {
	h, err := p.header(n)
	if err != nil {
		return nil, 0, err
	}

	var (
		node     *uhs.Node
		consumed int
	)
	switch h.kind {
	case "subject":
		node, consumed, err = p.subject(h)
	case "hint":
		node, consumed = p.hint(h)
	case "nesthint":
		node, consumed, err = p.nestHint(h)
	case "comment":
		node, consumed = p.plain(h, "Comment", markup.Comment)
	case "credit":
		node, consumed = p.plain(h, "Credit", markup.Credit)
	case "text":
		node, consumed = p.text(h)
	case "link":
		node, consumed = p.link(h)
	case "hyperpng", "gifa":
		node, consumed, err = p.hotSpot(h)
	case "sound":
		node, consumed = p.sound(h)
	case "blank":
		node, consumed = p.blank(h)
	case "version":
		node, consumed = p.plain(h, "Version", nil)
	case "info":
		node, consumed = p.plain(h, "Info", nil)
	case "incentive":
		node, consumed = p.incentive(h)
	default:
		p.log.Info("unknown hunk type", "line", n, "type", h.kind)
		node = uhs.NewNode("Unknown")
		node.SetText(h.kind)
		consumed = h.end
	}
	if err != nil {
		return nil, 0, err
	}
	if consumed != h.end {
		p.log.Error("hunk content does not match its declared length",
			"line", n, "type", h.kind, "declared", h.count, "consumed", consumed-n)
	}
	p.root.Register(node, n)
	return node, h.end, nil
}

func (p *parser9x) titled(h hunk, typ string) *uhs.Node {
	n := uhs.NewNode(typ)
	n.SetText(decodeText(p.line(h.title())))
	n.SetDecorator(markup.Title)
	return n
}

// subject holds any number of nested hunks.
func (p *parser9x) subject(h hunk) (*uhs.Node, int, error) {
	n := p.titled(h, "Subject")
	_ = n.SetChildren([]*uhs.Node{})
	cur := h.body()
	for cur < h.end {
		child, next, err := p.parseHunk(cur)
		if err != nil {
			return nil, 0, err
		}
		_ = n.AddChild(child)
		cur = next
	}
	return n, cur, nil
}

// hint holds simple-cipher lines; "-" separates successive hints.
func (p *parser9x) hint(h hunk) (*uhs.Node, int) {
	n := p.titled(h, "Hint")
	_ = n.SetChildren([]*uhs.Node{})
	var buf []string
	flush := func() {
		if len(buf) == 0 {
			return
		}
		c := uhs.NewNode("HintData")
		c.SetText(strings.Join(buf, markup.BreakToken))
		c.SetDecorator(markup.Hint)
		_ = n.AddChild(c)
		buf = buf[:0]
	}
	for cur := h.body(); cur < h.end; cur++ {
		l := p.line(cur)
		if l == "-" {
			flush()
			continue
		}
		buf = append(buf, decodeText(cipher.SimpleDecrypt(l)))
	}
	flush()
	return n, h.end
}

// nestHint holds nest-cipher text and embedded hunks. "-" starts the next
// reveal group and "=" is followed by a hunk header. Everything after the
// first element of a group is revealed with it.
func (p *parser9x) nestHint(h hunk) (*uhs.Node, int, error) {
	n := uhs.NewBatchNode("NestHint")
	n.SetText(decodeText(p.line(h.title())))
	n.SetDecorator(markup.Title)
	_ = n.SetChildren([]*uhs.Node{})

	var buf []string
	inGroup := false
	add := func(c *uhs.Node) {
		_ = n.AddBatchChild(c, inGroup)
		inGroup = true
	}
	flush := func() {
		if len(buf) == 0 {
			return
		}
		c := uhs.NewNode("NestHintData")
		c.SetText(strings.Join(buf, markup.BreakToken))
		c.SetDecorator(markup.NestHint)
		add(c)
		buf = buf[:0]
	}

	cur := h.body()
	for cur < h.end {
		switch l := p.line(cur); l {
		case "-":
			flush()
			inGroup = false
			cur++
		case "=":
			flush()
			child, next, err := p.parseHunk(cur + 1)
			if err != nil {
				return nil, 0, err
			}
			add(child)
			cur = next
		default:
			buf = append(buf, decodeText(cipher.NestDecrypt(l, p.key)))
			cur++
		}
	}
	flush()
	return n, cur, nil
}

// plain covers comment, credit, version and info hunks: a title and plain
// lines that become one data child.
func (p *parser9x) plain(h hunk, typ string, d uhs.Decorator) (*uhs.Node, int) {
	n := p.titled(h, typ)
	var body []string
	for cur := h.body(); cur < h.end; cur++ {
		body = append(body, decodeText(p.line(cur)))
	}
	sep := markup.BreakToken
	if d == nil {
		sep = "\n"
	}
	c := uhs.NewNode(typ + "Data")
	c.SetText(strings.Join(body, sep))
	c.SetDecorator(d)
	_ = n.AddChild(c)
	return n, h.end
}

// text reads encrypted lines out of the binary hunk.
func (p *parser9x) text(h hunk) (*uhs.Node, int) {
	n := p.titled(h, "Text")
	ref, _, ok := p.region(h.body(), "text")
	data := uhs.NewNode("TextData")
	data.SetDecorator(markup.Text)
	if ok {
		raw, err := uhs.ReadAll(ref)
		if err != nil {
			p.log.Error("cannot read text content", "line", h.line, "error", err)
		} else {
			var out []string
			for _, l := range strings.Split(strings.TrimRight(string(raw), "\r\n"), "\n") {
				out = append(out, decodeText(cipher.TextDecrypt(strings.TrimSuffix(l, "\r"), p.key)))
			}
			data.SetText(strings.Join(out, markup.BreakToken))
		}
	}
	_ = n.AddChild(data)
	return n, h.body() + 1
}

// link points at the line number of another hunk.
func (p *parser9x) link(h hunk) (*uhs.Node, int) {
	n := p.titled(h, "Link")
	target, err := strconv.Atoi(strings.TrimSpace(p.line(h.body())))
	if err != nil {
		p.log.Error("bad link target", "line", h.body(), "error", err)
		return n, h.body() + 1
	}
	_ = n.SetLinkTarget(target)
	return n, h.body() + 1
}

func (p *parser9x) sound(h hunk) (*uhs.Node, int) {
	n := p.titled(h, "Sound")
	if ref, _, ok := p.region(h.body(), "sound"); ok {
		n.SetBinary(ref, uhs.ContentAudio)
	}
	return n, h.body() + 1
}

func (p *parser9x) blank(h hunk) (*uhs.Node, int) {
	n := uhs.NewNode("Blank")
	if t := p.line(h.title()); t != "-" {
		n.SetText(decodeText(t))
	}
	return n, h.end
}

// incentive lists restricted IDs. They are applied once the whole tree is
// registered, because they may name hunks further down.
func (p *parser9x) incentive(h hunk) (*uhs.Node, int) {
	n := p.titled(h, "Incentive")
	var parts []string
	for cur := h.body(); cur < h.end; cur++ {
		parts = append(parts, cipher.NestDecrypt(p.line(cur), p.key))
	}
	list := strings.Join(parts, " ")
	p.incentives = append(p.incentives, list)
	c := uhs.NewNode("IncentiveData")
	c.SetText(list)
	_ = n.AddChild(c)
	return n, h.end
}

// region reads a "000000 offset length ..." line and returns the addressed
// slice of the binary hunk along with the fields after the length.
func (p *parser9x) region(n int, what string) (uhs.BinaryRef, []string, bool) {
	fields := strings.Fields(p.line(n))
	if len(fields) < 3 {
		p.log.Error("bad binary address", "line", n, "type", what)
		return nil, nil, false
	}
	off, err1 := strconv.ParseInt(fields[1], 10, 64)
	size, err2 := strconv.ParseInt(fields[2], 10, 64)
	if err1 != nil || err2 != nil || size < 0 {
		p.log.Error("bad binary address", "line", n, "type", what)
		return nil, nil, false
	}
	idx := off - p.binStart
	if idx < 0 || idx+size > int64(len(p.bin)) {
		p.log.Error("binary address outside hunk", "line", n, "type", what,
			"offset", off, "length", size)
		return nil, nil, false
	}
	if p.path != "" {
		return uhs.FileRegion{Path: p.path, Offset: off, Size: size}, fields[3:], true
	}
	return uhs.Bytes(p.bin[idx : idx+size : idx+size]), fields[3:], true
}

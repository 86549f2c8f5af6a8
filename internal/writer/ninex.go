package writer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/uhskit/internal/checksum"
	"github.com/starford/uhskit/internal/cipher"
	"github.com/starford/uhskit/internal/uhs"
)

const (
	sentinel = "** END OF 88A FORMAT **"
	eof      = 0x1A

	// minWidth is the digit count of binary offsets and lengths.
	minWidth = 6

	// convertedVersion is written when the source tree has no 9x version.
	convertedVersion = "96a"
)

// Write9x serializes root in the hunk-based format. Line numbers and the
// binary layout are fixed first; the text is then emitted at the smallest
// field width that holds every offset and length.
func Write9x(root *uhs.RootNode, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	log := o.logger.With("component", "writer")

	top := topLevel(root)
	key := cipher.DeriveKey(oneLine(top[0].Text()))

	lay, err := plan(root, top, key, log)
	if err != nil {
		return nil, err
	}

	stub, err := legacyStub(root.Text())
	if err != nil {
		return nil, err
	}
	prefix := append(stub, joinLines([]string{sentinel})...)

	for width := minWidth; ; width++ {
		draft := emit(root, top, key, lay, width, 0)
		binStart := int64(len(prefix)+len(joinLines(draft))) + 1
		if !lay.fits(binStart, width) {
			continue
		}
		lines := emit(root, top, key, lay, width, binStart)
		var buf bytes.Buffer
		buf.Write(prefix)
		buf.Write(joinLines(lines))
		buf.WriteByte(eof)
		buf.Write(lay.bin)
		buf.Write([]byte{0, 0})
		out := buf.Bytes()
		checksum.Seal(out)
		return out, nil
	}
}

// topLevel returns the hunks written at line 1 and after. Trees that do not
// start with a master subject, such as converted 88a files, get one.
func topLevel(root *uhs.RootNode) []*uhs.Node {
	var (
		master *uhs.Node
		tail   []*uhs.Node
	)
	children := root.Children()
	if len(children) > 0 && children[0].Type() == "Subject" && children[0].Text() == root.Text() {
		master = children[0]
		for _, c := range children[1:] {
			if c.Type() != "Incentive" {
				tail = append(tail, c)
			}
		}
	} else {
		master = uhs.NewNode("Subject")
		master.SetText(root.Text())
		_ = master.SetChildren([]*uhs.Node{})
		for _, c := range children {
			switch {
			case c.Type() == "Version" && c.Text() == "88a":
			case c.Type() == "Version", c.Type() == "Info":
				tail = append(tail, c)
			case c.Type() == "Incentive":
			default:
				_ = master.AddChild(c)
			}
		}
	}
	if !hasType(tail, "Version") {
		v := uhs.NewNode("Version")
		v.SetText(convertedVersion)
		_ = v.AddChild(uhs.NewNode("VersionData"))
		tail = append(tail, v)
	}
	top := append([]*uhs.Node{master}, tail...)
	if restricted(root) {
		inc := uhs.NewNode("Incentive")
		inc.SetText("-")
		top = append(top, inc)
	}
	return top
}

func hasType(nodes []*uhs.Node, typ string) bool {
	for _, n := range nodes {
		if n.Type() == typ {
			return true
		}
	}
	return false
}

func restricted(root *uhs.RootNode) bool {
	found := false
	uhs.Walk(&root.Node, func(n *uhs.Node, _ int) bool {
		if n.Restriction() != uhs.RestrictNone {
			found = true
		}
		return !found
	})
	return found
}

// legacyStub is the 88a file old readers see in place of the real content.
func legacyStub(title string) ([]byte, error) {
	stub := uhs.NewRootNode()
	stub.SetText(title)
	subject := uhs.NewNode("Subject")
	subject.SetText("Important Message!")
	question := uhs.NewNode("Question")
	question.SetText("Ignore this!")
	hint := uhs.NewNode("Hint")
	hint.SetText("The information in this file is in a newer format that this reader cannot show.")
	_ = question.AddChild(hint)
	_ = subject.AddChild(question)
	credit := uhs.NewNode("Credit")
	data := uhs.NewNode("CreditData")
	data.SetText("Written by uhskit.")
	_ = credit.AddChild(data)
	_ = stub.AddChild(subject)
	_ = stub.AddChild(credit)
	return Write88a(stub)
}

// layout is what phase one learns: the ID line of every written hunk and
// where each payload sits in the binary hunk.
type layout struct {
	lines map[*uhs.Node]int
	blobs map[*uhs.Node]blob
	bin   []byte
	links []*uhs.Node
}

type blob struct {
	index, size int64
}

func (l *layout) fits(binStart int64, width int) bool {
	limit := int64(1)
	for i := 0; i < width; i++ {
		limit *= 10
	}
	for _, b := range l.blobs {
		if binStart+b.index >= limit || b.size >= limit {
			return false
		}
	}
	return true
}

// plan runs the emitter once to record lines and payloads, then checks
// that every link lands on a written hunk.
func plan(root *uhs.RootNode, top []*uhs.Node, key []byte, log *slog.Logger) (*layout, error) {
	rec := &layout{lines: make(map[*uhs.Node]int), blobs: make(map[*uhs.Node]blob)}
	e := &emitter{root: root, key: key, width: minWidth, rec: rec, log: log}
	for _, n := range top {
		if err := e.hunk(n, 0); err != nil {
			return nil, err
		}
	}
	for _, l := range rec.links {
		if _, ok := rec.resolve(root, l.LinkTarget()); !ok {
			return nil, fmt.Errorf("%w: %q points at %d", ErrUnresolvedLink, l.Text(), l.LinkTarget())
		}
	}
	return rec, nil
}

func (l *layout) resolve(root *uhs.RootNode, id int) (int, bool) {
	n := root.NodeByLinkID(id)
	if n == nil {
		return 0, false
	}
	line, ok := l.lines[n]
	return line, ok
}

// emit produces the hunk lines for a fixed layout and field width.
func emit(root *uhs.RootNode, top []*uhs.Node, key []byte, lay *layout, width int, binStart int64) []string {
	e := &emitter{root: root, key: key, width: width, lay: lay, binStart: binStart}
	for _, n := range top {
		// Every error source was exercised by plan.
		_ = e.hunk(n, 0)
	}
	return e.out
}

// emitter writes hunks. With rec set it records the layout; otherwise it
// reads lay.
type emitter struct {
	root     *uhs.RootNode
	key      []byte
	width    int
	binStart int64
	out      []string

	rec *layout
	lay *layout
	log *slog.Logger
}

// kind picks the hunk type for n, or "" when n cannot be written.
func (e *emitter) kind(n *uhs.Node) string {
	if n.IsLink() {
		return "link"
	}
	switch n.Type() {
	case "Subject":
		return "subject"
	case "Hint", "Question":
		return "hint"
	case "NestHint":
		return "nesthint"
	case "Comment":
		return "comment"
	case "Credit":
		return "credit"
	case "Text":
		return "text"
	case "HotSpot":
		if isGIF(n.Binary()) {
			return "gifa"
		}
		return "hyperpng"
	case "Sound":
		return "sound"
	case "Blank":
		return "blank"
	case "Version":
		return "version"
	case "Info":
		return "info"
	case "Incentive":
		return "incentive"
	}
	if n.IsGroup() {
		return "subject"
	}
	return ""
}

func isGIF(ref uhs.BinaryRef) bool {
	if ref == nil {
		return false
	}
	rc, err := ref.Open()
	if err != nil {
		return false
	}
	defer rc.Close()
	magic := make([]byte, 4)
	if _, err := io.ReadFull(rc, magic); err != nil {
		return false
	}
	return string(magic) == "GIF8"
}

// hunk writes n. shift moves the recorded ID line, which hotspot zones use
// to put nested hunk IDs on the zone line.
func (e *emitter) hunk(n *uhs.Node, shift int) error {
	kind := e.kind(n)
	if kind == "" {
		if e.rec != nil {
			e.log.Info("skipping node with no hunk form", "type", n.Type(), "text", n.Text())
		}
		return nil
	}
	start := len(e.out)
	if e.rec != nil {
		e.rec.lines[n] = start + 1 + shift
	}
	e.out = append(e.out, "", oneLine(n.Text()))

	var err error
	switch kind {
	case "subject":
		for _, c := range n.Children() {
			if err = e.hunk(c, 0); err != nil {
				return err
			}
		}
	case "hint":
		for i, c := range n.Children() {
			if i > 0 {
				e.out = append(e.out, "-")
			}
			lines := bodyLines(c.Text())
			if len(lines) == 0 {
				// An empty hint keeps one blank line so it reads back.
				lines = []string{""}
			}
			for _, l := range lines {
				e.out = append(e.out, cipher.SimpleEncrypt(l))
			}
		}
	case "nesthint":
		err = e.nestHint(n)
	case "comment", "credit", "version", "info":
		if n.ChildCount() > 0 {
			e.out = append(e.out, bodyLines(n.Child(0).Text())...)
		}
	case "text":
		err = e.text(n)
	case "link":
		e.out = append(e.out, strconv.Itoa(e.linkLine(n)))
	case "hyperpng", "gifa":
		err = e.hotSpot(n)
	case "sound":
		var addr string
		addr, err = e.binary(n, n.Binary())
		e.out = append(e.out, addr)
	case "blank":
		if n.Text() == "" {
			e.out[len(e.out)-1] = "-"
		}
	case "incentive":
		e.out = append(e.out, cipher.NestEncrypt(e.incentiveList(), e.key))
	}
	if err != nil {
		return err
	}
	e.out[start] = fmt.Sprintf("%d %s", len(e.out)-start, kind)
	return nil
}

func (e *emitter) nestHint(n *uhs.Node) error {
	for i, c := range n.Children() {
		if i > 0 && !n.Addon(i) {
			e.out = append(e.out, "-")
		}
		if c.Type() == "NestHintData" || (e.kind(c) == "" && isText(c)) {
			for _, l := range bodyLines(c.Text()) {
				e.out = append(e.out, cipher.NestEncrypt(l, e.key))
			}
			continue
		}
		e.out = append(e.out, "=")
		if err := e.hunk(c, 0); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) text(n *uhs.Node) error {
	var body string
	if n.ChildCount() > 0 {
		body = n.Child(0).Text()
	}
	var enc []string
	for _, l := range bodyLines(body) {
		enc = append(enc, cipher.TextEncrypt(l, e.key))
	}
	addr, err := e.binary(n, uhs.Bytes(strings.Join(enc, crlf)))
	e.out = append(e.out, addr)
	return err
}

func (e *emitter) hotSpot(n *uhs.Node) error {
	addr, err := e.binary(n, n.Binary())
	if err != nil {
		return err
	}
	e.out = append(e.out, addr)
	for i, c := range n.Children() {
		spot, _ := n.Spot(i)
		overlay := c.Type() == "Overlay"
		if !overlay && e.kind(c) == "" {
			if e.rec != nil {
				e.log.Info("skipping hotspot zone with no hunk form", "type", c.Type())
			}
			continue
		}
		e.out = append(e.out, fmt.Sprintf("%d %d %d %d",
			spot.ZoneX+1, spot.ZoneY+1, spot.ZoneX+spot.ZoneW+1, spot.ZoneY+spot.ZoneH+1))
		if !overlay {
			if err := e.hunk(c, -1); err != nil {
				return err
			}
			continue
		}
		addr, err := e.binary(c, c.Binary())
		if err != nil {
			return err
		}
		e.out = append(e.out, "3 overlay", oneLine(c.Text()),
			fmt.Sprintf("%s %d %d", addr, spot.X+1, spot.Y+1))
	}
	return nil
}

// binary returns the "000000 offset length" field for the payload owned by
// n, recording the payload during planning.
func (e *emitter) binary(n *uhs.Node, ref uhs.BinaryRef) (string, error) {
	var b blob
	if e.rec != nil {
		var data []byte
		if ref != nil {
			var err error
			if data, err = uhs.ReadAll(ref); err != nil {
				return "", fmt.Errorf("writer: read payload of %s %q: %w", n.Type(), n.Text(), err)
			}
		}
		b = blob{index: int64(len(e.rec.bin)), size: int64(len(data))}
		e.rec.bin = append(e.rec.bin, data...)
		e.rec.blobs[n] = b
	} else {
		b = e.lay.blobs[n]
	}
	return fmt.Sprintf("%0*d %0*d %0*d", e.width, 0, e.width, e.binStart+b.index, e.width, b.size), nil
}

func (e *emitter) linkLine(n *uhs.Node) int {
	if e.rec != nil {
		e.rec.links = append(e.rec.links, n)
		return 0
	}
	line, _ := e.lay.resolve(e.root, n.LinkTarget())
	return line
}

// incentiveList renders every restricted hunk as "<line><flag>".
func (e *emitter) incentiveList() string {
	if e.rec != nil {
		return ""
	}
	var toks []string
	uhs.Walk(&e.root.Node, func(n *uhs.Node, _ int) bool {
		line, ok := e.lay.lines[n]
		if !ok {
			return true
		}
		switch n.Restriction() {
		case uhs.RestrictNag:
			toks = append(toks, strconv.Itoa(line)+"Z")
		case uhs.RestrictRegOnly:
			toks = append(toks, strconv.Itoa(line)+"A")
		}
		return true
	})
	return strings.Join(toks, " ")
}

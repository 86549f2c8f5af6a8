// Package render draws hint trees for the terminal with lipgloss styles.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/uhskit/internal/markup"
	"github.com/starford/uhskit/internal/uhs"
)

// Theme holds the styles used for each part of a tree. Colors are ANSI
// 256-color codes.
type Theme struct {
	Title    lipgloss.Style
	Group    lipgloss.Style
	Question lipgloss.Style
	Text     lipgloss.Style
	Link     lipgloss.Style
	Binary   lipgloss.Style
	Faint    lipgloss.Style
	Mono     lipgloss.Style
	Hyper    lipgloss.Style
}

// DefaultTheme suits dark terminals.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Group:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
	Question: lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
	Text:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	Link:     lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	Binary:   lipgloss.NewStyle().Foreground(lipgloss.Color("180")),
	Faint:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	Mono:     lipgloss.NewStyle().Foreground(lipgloss.Color("151")),
	Hyper:    lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("81")),
}

// Options controls what Tree shows.
type Options struct {
	// RevealAll shows every hint instead of only the revealed ones.
	RevealAll bool
	// Theme defaults to DefaultTheme when zero.
	Theme *Theme
}

const indent = "  "

// progressive reports whether n hands out its children one at a time.
// Every other group lists all of them.
func progressive(n *uhs.Node) bool {
	switch n.Type() {
	case "Question", "Hint", "NestHint":
		return true
	}
	return false
}

// Tree writes the tree below root, one node per line block.
func Tree(w io.Writer, root *uhs.RootNode, opts Options) error {
	theme := opts.Theme
	if theme == nil {
		theme = &DefaultTheme
	}
	r := &renderer{theme: theme, revealAll: opts.RevealAll}
	r.line(0, theme.Title.Render(markup.Plain(root.Fragments())))
	r.children(&root.Node, 1)
	_, err := io.WriteString(w, r.b.String())
	return err
}

type renderer struct {
	theme     *Theme
	revealAll bool
	b         strings.Builder
}

func (r *renderer) line(depth int, s string) {
	pad := strings.Repeat(indent, depth)
	for l := range strings.SplitSeq(s, "\n") {
		r.b.WriteString(pad)
		r.b.WriteString(l)
		r.b.WriteByte('\n')
	}
}

func (r *renderer) children(n *uhs.Node, depth int) {
	shown := n.ChildCount()
	if progressive(n) && !r.revealAll {
		shown = max(n.CurrentReveal(), 0)
	}
	for i := 0; i < shown; i++ {
		r.node(n.Child(i), n, i, depth)
	}
	if hidden := n.ChildCount() - shown; hidden > 0 {
		r.line(depth, r.theme.Faint.Render(fmt.Sprintf("(%d more hidden)", hidden)))
	}
}

func (r *renderer) node(n, parent *uhs.Node, i, depth int) {
	t := r.theme
	switch {
	case n.IsLink():
		r.line(depth, t.Link.Render(fmt.Sprintf("-> %s [%d]", markup.Plain(n.Fragments()), n.LinkTarget())))
	case n.Binary() != nil:
		label := fmt.Sprintf("[%s, %d bytes]", n.ContentKind(), n.Binary().Length())
		if spot, ok := parent.Spot(i); ok && spot.ZoneW > 0 {
			label += fmt.Sprintf(" at %d,%d", spot.ZoneX, spot.ZoneY)
		}
		r.line(depth, t.Binary.Render(label)+" "+Fragments(n.Fragments(), t))
		r.children(n, depth+1)
	case n.IsGroup():
		title := markup.Plain(n.Fragments())
		if progressive(n) {
			title = t.Question.Render(title)
		} else {
			title = t.Group.Render(title)
		}
		if n.Restriction() != uhs.RestrictNone {
			title += " " + t.Faint.Render("("+n.Restriction().String()+")")
		}
		r.line(depth, title)
		r.children(n, depth+1)
	case n.Type() == "Blank":
		r.line(depth, t.Faint.Render("--"))
	default:
		prefix := ""
		if parent.Variant() == uhs.VariantBatch && parent.Addon(i) {
			prefix = "+ "
		}
		r.line(depth, prefix+Fragments(n.Fragments(), t))
	}
}

// Fragments styles decorated text. Monospaced runs and hyperlinks get
// their own styles; everything else uses the theme's text style.
func Fragments(frags []uhs.Fragment, t *Theme) string {
	var b strings.Builder
	for _, f := range frags {
		style := t.Text
		switch {
		case f.Has(uhs.AttrHyperlink):
			style = t.Hyper
		case f.Has(uhs.AttrMonospaced):
			style = t.Mono
		}
		// Styles are applied per line so indentation stays outside escapes.
		lines := strings.Split(f.Text(), "\n")
		for j, l := range lines {
			if j > 0 {
				b.WriteByte('\n')
			}
			if l != "" {
				b.WriteString(style.Render(l))
			}
		}
	}
	return b.String()
}

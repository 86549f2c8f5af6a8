package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/uhskit/internal/parser"
	"github.com/starford/uhskit/internal/uhs"
)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var mismatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

// Stats counts what a tree holds.
type Stats struct {
	Nodes  int
	Links  int
	Images int
	Sounds int
}

// Count walks root and tallies its nodes.
func Count(root *uhs.RootNode) Stats {
	var s Stats
	uhs.Walk(&root.Node, func(n *uhs.Node, _ int) bool {
		s.Nodes++
		if n.IsLink() {
			s.Links++
		}
		switch n.ContentKind() {
		case uhs.ContentImage:
			s.Images++
		case uhs.ContentAudio:
			s.Sounds++
		}
		return true
	})
	return s
}

// Summary writes a boxed overview of a parsed file: format, version,
// checksum status and node counts.
func Summary(w io.Writer, name string, res *parser.Result) error {
	t := DefaultTheme
	st := Count(res.Root)

	rows := [][2]string{
		{"file", name},
		{"title", res.Root.Text()},
		{"format", res.Format},
		{"version", res.Version},
		{"crc", res.CRC.String()},
		{"nodes", fmt.Sprint(st.Nodes)},
		{"links", fmt.Sprint(st.Links)},
		{"images", fmt.Sprint(st.Images)},
		{"sounds", fmt.Sprint(st.Sounds)},
	}
	if res.Root.Legacy() {
		rows = append(rows, [2]string{"note", "88a compatibility stub only"})
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		val := row[1]
		if row[0] == "crc" && res.CRC == parser.CRCMismatch {
			val = mismatchStyle.Render(val)
		}
		lines = append(lines, t.Faint.Render(fmt.Sprintf("%-8s", row[0]))+" "+val)
	}
	_, err := fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
	return err
}

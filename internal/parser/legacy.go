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

// headerLines is the number of lines before 88a pointer 1. Pointer p lives
// at index p+headerLines-1 of the line array.
const headerLines = 4

// table reads an 88a line array through its body pointers.
type table struct {
	lines []string
}

func (t table) at(ptr int) (string, error) {
	i := ptr + headerLines - 1
	if ptr < 1 || i >= len(t.lines) {
		return "", fmt.Errorf("%w: pointer %d outside file", ErrStructure, ptr)
	}
	return t.lines[i], nil
}

func (t table) pointer(ptr int) (int, error) {
	s, err := t.at(ptr)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %q is not a pointer", ErrStructure, ptr+headerLines, s)
	}
	return v, nil
}

// parse88a walks the fixed-stride 88a tables. The header holds the first
// question pointer and the last hint pointer minus one.
func parse88a(lines []string, log *slog.Logger) (*uhs.RootNode, error) {
	if len(lines) < headerLines {
		return nil, fmt.Errorf("%w: short 88a header", ErrStructure)
	}
	t := table{lines: lines}
	firstQuestion, err := strconv.Atoi(strings.TrimSpace(lines[2]))
	if err != nil {
		return nil, fmt.Errorf("%w: line 3: %q", ErrStructure, lines[2])
	}
	lastHint, err := strconv.Atoi(strings.TrimSpace(lines[3]))
	if err != nil {
		return nil, fmt.Errorf("%w: line 4: %q", ErrStructure, lines[3])
	}
	lastHint++

	root := uhs.NewRootNode()
	root.SetText(decodeText(lines[1]))
	root.SetDecorator(markup.Identity)

	// Subjects are (title, first question) pairs over [1, firstQuestion).
	type entry struct {
		title string
		first int
	}
	readPairs := func(from, to int) ([]entry, error) {
		var out []entry
		for ptr := from; ptr+1 <= to; ptr += 2 {
			title, err := t.at(ptr)
			if err != nil {
				return nil, err
			}
			first, err := t.pointer(ptr + 1)
			if err != nil {
				return nil, err
			}
			out = append(out, entry{title: title, first: first})
		}
		return out, nil
	}

	subjects, err := readPairs(1, firstQuestion-1)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		log.Info("88a file has no subjects")
	}

	// Questions run from firstQuestion up to the first hint.
	firstHint := lastHint + 1
	if len(subjects) > 0 {
		q, err := t.pointer(firstQuestion + 1)
		if err != nil {
			return nil, err
		}
		firstHint = q
	}
	questions, err := readPairs(firstQuestion, firstHint-1)
	if err != nil {
		return nil, err
	}

	for si, s := range subjects {
		subject := uhs.NewNode("Subject")
		subject.SetText(decodeText(s.title))
		subject.SetDecorator(markup.Identity)
		_ = root.AddChild(subject)

		qEnd := firstHint
		if si+1 < len(subjects) {
			qEnd = subjects[si+1].first
		}
		for ptr := s.first; ptr < qEnd; ptr += 2 {
			qi := (ptr - firstQuestion) / 2
			if qi < 0 || qi >= len(questions) {
				return nil, fmt.Errorf("%w: question pointer %d outside table", ErrStructure, ptr)
			}
			q := questions[qi]
			question := uhs.NewNode("Question")
			question.SetText(decodeText(q.title))
			question.SetDecorator(markup.Identity)
			_ = subject.AddChild(question)

			hEnd := lastHint + 1
			if qi+1 < len(questions) {
				hEnd = questions[qi+1].first
			}
			for h := q.first; h < hEnd; h++ {
				raw, err := t.at(h)
				if err != nil {
					return nil, err
				}
				hint := uhs.NewNode("Hint")
				hint.SetText(decodeText(cipher.SimpleDecrypt(raw)))
				hint.SetDecorator(markup.Identity)
				_ = question.AddChild(hint)
			}
		}
	}

	version := uhs.NewNode("Version")
	version.SetText(Format88a)
	versionData := uhs.NewNode("VersionData")
	versionData.SetText(Format88a)
	_ = version.AddChild(versionData)
	_ = root.AddChild(version)

	var credits []string
	if start := lastHint + headerLines; start < len(lines) {
		for _, l := range lines[start:] {
			credits = append(credits, decodeText(l))
		}
	}
	credit := uhs.NewNode("Credit")
	credit.SetText("Credits")
	creditData := uhs.NewNode("CreditData")
	creditData.SetText(strings.Join(credits, "\n"))
	creditData.SetDecorator(markup.Credit88a)
	_ = credit.AddChild(creditData)
	_ = root.AddChild(credit)

	return root, nil
}

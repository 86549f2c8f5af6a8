package writer

import (
	"fmt"
	"strconv"

	"github.com/starford/uhskit/internal/cipher"
	"github.com/starford/uhskit/internal/uhs"
)

// Write88a serializes a tree of Subjects, Questions and Hints plus one
// Credit node. Version nodes are ignored. Any other shape fails with
// ErrInvalidShape and nothing is written.
func Write88a(root *uhs.RootNode) ([]byte, error) {
	subjects, credit, err := validate88a(root)
	if err != nil {
		return nil, err
	}

	var questions, hints int
	for _, s := range subjects {
		questions += s.ChildCount()
		for _, q := range s.Children() {
			hints += q.ChildCount()
		}
	}

	// Pointer p is line p+3. Subjects are pairs from pointer 1, questions
	// pairs from firstQuestion, hints single lines from firstHint.
	firstQuestion := 2*len(subjects) + 1
	firstHint := firstQuestion + 2*questions
	lastHintMinusOne := firstHint + hints - 2

	lines := []string{
		magic,
		oneLine(root.Text()),
		strconv.Itoa(firstQuestion),
		strconv.Itoa(lastHintMinusOne),
	}

	qBefore := 0
	for _, s := range subjects {
		lines = append(lines, oneLine(s.Text()), strconv.Itoa(firstQuestion+2*qBefore))
		qBefore += s.ChildCount()
	}
	hBefore := 0
	for _, s := range subjects {
		for _, q := range s.Children() {
			lines = append(lines, oneLine(q.Text()), strconv.Itoa(firstHint+hBefore))
			hBefore += q.ChildCount()
		}
	}
	for _, s := range subjects {
		for _, q := range s.Children() {
			for _, h := range q.Children() {
				lines = append(lines, cipher.SimpleEncrypt(oneLine(h.Text())))
			}
		}
	}
	if credit != nil {
		lines = append(lines, bodyLines(credit.Text())...)
	}
	return joinLines(lines), nil
}

const magic = "UHS"

func validate88a(root *uhs.RootNode) (subjects []*uhs.Node, credit *uhs.Node, err error) {
	shape := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidShape, fmt.Sprintf(format, args...))
	}
	credits := 0
	for _, c := range root.Children() {
		switch c.Type() {
		case "Version":
		case "Credit":
			credits++
			if c.ChildCount() != 1 || !isText(c.Child(0)) {
				return nil, nil, shape("credit must hold exactly one text child")
			}
			credit = c.Child(0)
		case "Subject":
			if c.IsLink() || c.ChildCount() == 0 {
				return nil, nil, shape("subject %q has no questions", c.Text())
			}
			for _, q := range c.Children() {
				if q.Type() != "Question" || q.IsLink() || q.ChildCount() == 0 {
					return nil, nil, shape("subject %q: %s %q is not a question with hints", c.Text(), q.Type(), q.Text())
				}
				for _, h := range q.Children() {
					if h.Type() != "Hint" || !isText(h) {
						return nil, nil, shape("question %q: %s is not a text hint", q.Text(), h.Type())
					}
				}
			}
			subjects = append(subjects, c)
		default:
			return nil, nil, shape("%s node at top level", c.Type())
		}
	}
	if credits != 1 {
		return nil, nil, shape("want exactly one credit node, have %d", credits)
	}
	return subjects, credit, nil
}

func isText(n *uhs.Node) bool {
	return !n.IsGroup() && !n.IsLink() && n.Binary() == nil && n.ContentKind() == uhs.ContentString
}

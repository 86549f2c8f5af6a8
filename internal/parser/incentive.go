package parser

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/uhskit/internal/uhs"
)

// Incentive flags.
const (
	FlagNag     = 'Z'
	FlagRegOnly = 'A'
)

// ApplyRestrictions applies a decrypted incentive list of "<id><flag>"
// tokens to the registered nodes of root. Tokens naming unknown IDs or
// flags are logged and skipped.
func ApplyRestrictions(root *uhs.RootNode, list string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "incentive")
	for _, tok := range strings.Fields(list) {
		if len(tok) < 2 {
			log.Info("short incentive token", "token", tok)
			continue
		}
		flag := tok[len(tok)-1]
		id, err := strconv.Atoi(tok[:len(tok)-1])
		if err != nil {
			log.Info("bad incentive id", "token", tok)
			continue
		}
		var r uhs.Restriction
		switch flag {
		case FlagNag:
			r = uhs.RestrictNag
		case FlagRegOnly:
			r = uhs.RestrictRegOnly
		default:
			log.Info("unknown incentive flag", "token", tok)
			continue
		}
		n := root.NodeByLinkID(id)
		if n == nil {
			log.Info("incentive names unknown node", "line", id)
			continue
		}
		n.SetRestriction(r)
	}
}

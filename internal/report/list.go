package report

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"

	"github.com/chojs23/runme/internal/domain"
)

// ListDocument is the JSON form of `runme list`
type ListDocument struct {
	Document string          `json:"document"`
	Blocks   []*domain.Block `json:"blocks"`
}

// RenderList prints discovered blocks without running anything. Human
// lines are truncated to width display cells when width is positive.
func RenderList(w io.Writer, document string, blocks []*domain.Block, format Format, width int) error {
	if format == FormatJSON {
		if blocks == nil {
			blocks = []*domain.Block{}
		}
		return writeJSON(w, ListDocument{Document: document, Blocks: blocks})
	}

	if len(blocks) == 0 {
		_, err := fmt.Fprintf(w, "No code blocks found in %s\n", document)
		return err
	}
	for _, b := range blocks {
		line := ListLine(b)
		if width > 0 {
			line = runewidth.Truncate(line, width, "…")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// ListLine renders "- <id> (<name>) [<lang>] <heading › heading> (skip: <reason>)"
func ListLine(b *domain.Block) string {
	line := fmt.Sprintf("- %s [%s] %s", b.Label(), b.DisplayLanguage(), b.Location())
	if b.Skip {
		line += fmt.Sprintf(" (skip: %s)", b.SkipReason)
	}
	return line
}

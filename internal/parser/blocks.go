package parser

import (
	"bytes"
	"fmt"
	"os"

	"github.com/chojs23/runme/internal/domain"
)

// Document is the product of one discovery pass
type Document struct {
	Path        string
	Frontmatter *Frontmatter
	Blocks      []*domain.Block
}

// DiscoverFile reads a document from disk and discovers its blocks
func DiscoverFile(path string, opts ExtractOptions) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Discover(content, opts)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Discover turns document text into classified blocks. It fails as a whole
// on malformed input or conflicting names; nothing is executed.
func Discover(content []byte, opts ExtractOptions) (*Document, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	fm, body, offset, err := ParseFrontmatter(content)
	if err != nil {
		return nil, &DiscoveryError{
			Reason: fmt.Sprintf("invalid frontmatter: %v", err),
			Err:    ErrMalformed,
		}
	}

	regions, err := Extract(body, opts)
	if err != nil {
		return nil, &DiscoveryError{Reason: err.Error(), Err: ErrMalformed}
	}
	for i := range regions {
		if regions[i].Line > 0 {
			regions[i].Line += offset
		}
	}

	blocks, err := BuildBlocks(regions)
	if err != nil {
		return nil, err
	}

	return &Document{Frontmatter: fm, Blocks: blocks}, nil
}

// BuildBlocks classifies raw regions into blocks, assigning ids in order
func BuildBlocks(regions []Region) ([]*domain.Block, error) {
	blocks := make([]*domain.Block, 0, len(regions))
	owners := make(map[string]string)

	for i, r := range regions {
		b := buildBlock(i+1, r)
		if b.Name != "" {
			if other, dup := owners[b.Name]; dup {
				return nil, &DiscoveryError{
					Reason:   fmt.Sprintf("runme:name %q is used by both %s and %s", b.Name, other, b.ID),
					BlockIDs: []string{other, b.ID},
					Err:      ErrDuplicateName,
				}
			}
			owners[b.Name] = b.ID
		}
		blocks = append(blocks, b)
	}

	ids := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		ids[b.ID] = true
	}
	for _, b := range blocks {
		if b.Name != "" && b.Name != b.ID && ids[b.Name] {
			return nil, &DiscoveryError{
				Reason:   fmt.Sprintf("%s is named %q, which is the id of another block", b.ID, b.Name),
				BlockIDs: []string{b.ID, b.Name},
				Err:      ErrNameShadowsID,
			}
		}
	}

	return blocks, nil
}

func buildBlock(n int, r Region) *domain.Block {
	lang, inline := parseInfo(r.Info)

	var annotated []domain.Directive
	for _, a := range r.Annotations {
		if d, ok := parseComment(a); ok {
			annotated = append(annotated, d)
		}
	}

	b := &domain.Block{
		ID:          domain.FormatBlockID(n),
		Language:    lang,
		HeadingPath: append([]string{}, r.Headings...),
		BodyLines:   append([]string{}, r.Body...),
		Line:        r.Line,
	}
	b.Directives = append(append(b.Directives, inline...), annotated...)

	b.Name = resolveName(inline, annotated)
	b.Skip, b.SkipReason = resolveSkip(inline, annotated)
	b.Runnable = domain.IsShellLanguage(lang) && !b.Skip
	return b
}

// resolveName prefers the fence info string over annotation comments. Among
// comments the one nearest the fence wins.
func resolveName(inline, annotated []domain.Directive) string {
	if name := lastOf(inline, domain.DirectiveName); name != nil {
		return name.Value
	}
	if name := lastOf(annotated, domain.DirectiveName); name != nil {
		return name.Value
	}
	return ""
}

func resolveSkip(inline, annotated []domain.Directive) (bool, string) {
	skip := false
	for _, set := range [][]domain.Directive{inline, annotated} {
		for i := len(set) - 1; i >= 0; i-- {
			if set[i].Kind != domain.DirectiveIgnore {
				continue
			}
			skip = true
			if set[i].Value != "" {
				return true, set[i].Value
			}
		}
	}
	if skip {
		return true, defaultSkipReason
	}
	return false, ""
}

func lastOf(set []domain.Directive, kind domain.DirectiveKind) *domain.Directive {
	for i := len(set) - 1; i >= 0; i-- {
		if set[i].Kind == kind {
			return &set[i]
		}
	}
	return nil
}

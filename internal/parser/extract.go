package parser

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Region is a raw fenced code region before classification
type Region struct {
	// Info is the fence info string, e.g. "bash runme:name=setup"
	Info string
	// Body holds the fence content, one entry per line, without newlines
	Body []string
	// Headings is the enclosing heading stack, outermost first
	Headings []string
	// Annotations are the HTML comments preceding the fence, in document order
	Annotations []string
	// Line is the 1-based line of the opening fence, 0 when unknown
	Line int
}

// ExtractOptions tunes how annotations are associated with fences
type ExtractOptions struct {
	// AnnotationDistance is how many non-comment blocks may sit between an
	// annotation comment and its fence. Zero means the comment must directly
	// precede the fence (blank lines are always ignored).
	AnnotationDistance int
}

type heading struct {
	level int
	title string
}

// Extract walks document text and returns its fenced code regions in
// document order. Nothing is executed.
func Extract(src []byte, opts ExtractOptions) (regions []Region, err error) {
	if !utf8.Valid(src) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8", ErrMalformed)
	}

	defer func() {
		if r := recover(); r != nil {
			regions = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	root := goldmark.DefaultParser().Parse(text.NewReader(src))
	lines := newLineIndex(src)

	var stack []heading
	walkErr := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			stack = pushHeading(stack, node.Level, headingText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			regions = append(regions, Region{
				Info:        fenceInfo(node, src),
				Body:        blockLines(node, src),
				Headings:    headingTitles(stack),
				Annotations: annotations(node, src, opts.AnnotationDistance),
				Line:        fenceLine(node, lines),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, walkErr)
	}

	return regions, nil
}

// pushHeading drops headings at the same or deeper level before pushing
func pushHeading(stack []heading, level int, title string) []heading {
	for len(stack) > 0 && stack[len(stack)-1].level >= level {
		stack = stack[:len(stack)-1]
	}
	return append(stack, heading{level: level, title: title})
}

func headingTitles(stack []heading) []string {
	titles := make([]string, 0, len(stack))
	for _, h := range stack {
		titles = append(titles, h.title)
	}
	return titles
}

func headingText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func fenceInfo(n *ast.FencedCodeBlock, src []byte) string {
	if n.Info == nil {
		return ""
	}
	return strings.TrimSpace(string(n.Info.Segment.Value(src)))
}

func blockLines(n ast.Node, src []byte) []string {
	segs := n.Lines()
	out := make([]string, 0, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(src)), "\r\n"))
	}
	return out
}

// annotations collects the HTML comments sitting directly above a fence.
// Headings and other fences always end the search.
func annotations(n ast.Node, src []byte, distance int) []string {
	var found []string
	gap := 0
	for prev := n.PreviousSibling(); prev != nil; prev = prev.PreviousSibling() {
		switch p := prev.(type) {
		case *ast.HTMLBlock:
			if p.HTMLBlockType == ast.HTMLBlockType2 {
				found = append(found, htmlBlockText(p, src))
				continue
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.Heading:
			return reversed(found)
		}
		gap++
		if gap > distance {
			break
		}
	}
	return reversed(found)
}

func htmlBlockText(n *ast.HTMLBlock, src []byte) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(src))
	}
	if n.HasClosure() {
		b.Write(n.ClosureLine.Value(src))
	}
	return strings.TrimSpace(b.String())
}

func reversed(s []string) []string {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

// fenceLine locates the opening fence. The fence itself is not part of the
// AST, so it is derived from the info string or the first content line.
func fenceLine(n *ast.FencedCodeBlock, lines lineIndex) int {
	if n.Info != nil {
		return lines.lineOf(n.Info.Segment.Start)
	}
	if n.Lines().Len() > 0 {
		return lines.lineOf(n.Lines().At(0).Start) - 1
	}
	return 0
}

// lineIndex maps byte offsets to 1-based line numbers
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	var idx lineIndex
	for i, c := range src {
		if c == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

func (l lineIndex) lineOf(offset int) int {
	return sort.SearchInts(l, offset) + 1
}

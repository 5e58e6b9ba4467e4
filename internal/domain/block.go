package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var blockIDRegex = regexp.MustCompile(`^block-(\d{3,})$`)

// shellLanguages is the fixed vocabulary of fence languages that can be executed
var shellLanguages = map[string]bool{
	"bash":  true,
	"sh":    true,
	"shell": true,
}

// FormatBlockID returns the stable identifier for the n-th discovered block (1-based)
func FormatBlockID(n int) string {
	return fmt.Sprintf("block-%03d", n)
}

// ParseBlockID extracts the ordinal from an id like "block-007"
func ParseBlockID(s string) (int, error) {
	matches := blockIDRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid block ID format: %q (expected block-###)", s)
	}
	n, _ := strconv.Atoi(matches[1]) // regex guarantees digits
	return n, nil
}

// IsShellLanguage reports whether a normalized fence language is runnable
func IsShellLanguage(lang string) bool {
	return shellLanguages[lang]
}

// Block is a fenced code region classified with run/skip metadata.
// Blocks are created once per discovery pass and never mutated afterwards.
type Block struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Language    string      `json:"language"`
	HeadingPath []string    `json:"heading_path"`
	Skip        bool        `json:"skip"`
	SkipReason  string      `json:"skip_reason,omitempty"`
	BodyLines   []string    `json:"body_lines"`
	Runnable    bool        `json:"runnable"`
	Line        int         `json:"line"`
	Directives  []Directive `json:"directives,omitempty"`
}

// Label returns "id (name)" or just the id when unnamed
func (b *Block) Label() string {
	if b.Name != "" {
		return fmt.Sprintf("%s (%s)", b.ID, b.Name)
	}
	return b.ID
}

// Matches reports whether key addresses this block by id or name
func (b *Block) Matches(key string) bool {
	return key != "" && (b.ID == key || b.Name == key)
}

// Location renders the heading path, or "(root)" for blocks outside any section
func (b *Block) Location() string {
	if len(b.HeadingPath) == 0 {
		return "(root)"
	}
	return strings.Join(b.HeadingPath, " › ")
}

// DisplayLanguage returns the language tag, or "text" when the fence had none
func (b *Block) DisplayLanguage() string {
	if b.Language == "" {
		return "text"
	}
	return b.Language
}

// CommandLine is one executable line from a block body after word-splitting
type CommandLine struct {
	// Number is the 1-based position within the filtered command sequence
	Number int `json:"number"`
	// SourceLine is the 1-based line within the block body
	SourceLine int      `json:"source_line"`
	Text       string   `json:"text"`
	Argv       []string `json:"argv,omitempty"`
	// Err is set when the line could not be tokenized; it is never executed
	Err error `json:"-"`
}

package parser

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// Settings are document-level runme defaults declared in frontmatter:
//
//	---
//	runme:
//	  sandbox: docker
//	  image: alpine:3.20
//	  timeout: 30s
//	---
type Settings struct {
	Sandbox string `yaml:"sandbox"`
	Image   string `yaml:"image"`
	Timeout string `yaml:"timeout"`
}

// Frontmatter represents the YAML frontmatter of a document
type Frontmatter struct {
	Title string   `yaml:"title"`
	Runme Settings `yaml:"runme"`
}

// ParseFrontmatter extracts YAML frontmatter from markdown content.
// Returns the frontmatter, remaining content, the number of lines consumed,
// and any error. Content without frontmatter is returned unchanged.
func ParseFrontmatter(content []byte) (*Frontmatter, []byte, int, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, 0, nil
	}

	// Find end of frontmatter
	rest := content[4:]
	endIdx := bytes.Index(rest, []byte("\n---"))
	if endIdx == -1 {
		return &Frontmatter{}, content, 0, nil
	}

	fmData := rest[:endIdx]
	remaining := rest[endIdx+4:] // skip \n---
	if nl := bytes.IndexByte(remaining, '\n'); nl >= 0 {
		remaining = remaining[nl+1:]
	} else {
		remaining = nil
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(fmData, &fm); err != nil {
		return nil, nil, 0, err
	}

	consumed := bytes.Count(content[:len(content)-len(remaining)], []byte("\n"))
	return &fm, remaining, consumed, nil
}

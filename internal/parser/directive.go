package parser

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/chojs23/runme/internal/domain"
)

const (
	directivePrefix = "runme:"
	nameDirective   = "runme:name"
	ignoreDirective = "runme:ignore"
	skipDirective   = "runme:skip"

	defaultSkipReason = "marked with runme:ignore"
)

// normalizeLanguage case-folds a fence language tag
func normalizeLanguage(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSuffix(tag, "}"), "{")
	tag = strings.TrimPrefix(tag, ".")
	return cases.Fold().String(tag)
}

// parseInfo splits a fence info string into its language and inline
// directives. Everything after an ignore directive is its reason.
func parseInfo(info string) (string, []domain.Directive) {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return "", nil
	}

	var lang string
	start := 0
	if !hasPrefixFold(fields[0], directivePrefix) {
		lang = normalizeLanguage(fields[0])
		start = 1
	}

	var directives []domain.Directive
	for i := start; i < len(fields); i++ {
		f := fields[i]
		switch {
		case hasPrefixFold(f, nameDirective+"="):
			if v := f[len(nameDirective)+1:]; v != "" {
				directives = append(directives, domain.Directive{
					Kind:   domain.DirectiveName,
					Value:  v,
					Source: domain.SourceInfo,
				})
			}
		case strings.EqualFold(f, ignoreDirective) || strings.EqualFold(f, skipDirective):
			directives = append(directives, domain.Directive{
				Kind:   domain.DirectiveIgnore,
				Value:  strings.Join(fields[i+1:], " "),
				Source: domain.SourceInfo,
			})
			return lang, directives
		}
	}
	return lang, directives
}

// parseComment reads a directive from an annotation comment such as
// <!-- runme:name setup --> or <!-- runme:ignore needs credentials -->.
// Comments without a runme directive are ignored.
func parseComment(text string) (domain.Directive, bool) {
	body, ok := strings.CutPrefix(strings.TrimSpace(text), "<!--")
	if !ok {
		return domain.Directive{}, false
	}
	inner, _, ok := strings.Cut(body, "-->")
	if !ok {
		return domain.Directive{}, false
	}
	inner = strings.TrimSpace(inner)

	switch {
	case hasWord(inner, nameDirective):
		v := strings.TrimSpace(inner[len(nameDirective):])
		v = strings.TrimSpace(strings.TrimPrefix(v, "="))
		if v == "" {
			return domain.Directive{}, false
		}
		return domain.Directive{Kind: domain.DirectiveName, Value: v, Source: domain.SourceComment}, true
	case hasWord(inner, ignoreDirective):
		return ignoreFromComment(inner[len(ignoreDirective):]), true
	case hasWord(inner, skipDirective):
		return ignoreFromComment(inner[len(skipDirective):]), true
	}
	return domain.Directive{}, false
}

func ignoreFromComment(rest string) domain.Directive {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "="))
	return domain.Directive{Kind: domain.DirectiveIgnore, Value: rest, Source: domain.SourceComment}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// hasWord reports whether s starts with word followed by a separator or nothing
func hasWord(s, word string) bool {
	if !hasPrefixFold(s, word) {
		return false
	}
	if len(s) == len(word) {
		return true
	}
	switch s[len(word)] {
	case ' ', '\t', '\n', '=':
		return true
	}
	return false
}

package summary

import (
	"context"
	"strings"
)

const (
	excerptPrefix = "Summary of note: "
	excerptSuffix = "..."
	excerptRunes  = 100
)

// Generator produces a short abstract for note text.
type Generator interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// GeneratorFunc adapts a function into a Generator.
type GeneratorFunc func(ctx context.Context, content string) (string, error)

// Summarize calls f.
func (f GeneratorFunc) Summarize(ctx context.Context, content string) (string, error) {
	return f(ctx, content)
}

// ExcerptGenerator summarizes offline by quoting the leading part of the note.
type ExcerptGenerator struct{}

// Summarize returns a fixed prefix, the first hundred characters of content and an ellipsis.
func (ExcerptGenerator) Summarize(_ context.Context, content string) (string, error) {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > excerptRunes {
		runes = runes[:excerptRunes]
	}
	return excerptPrefix + string(runes) + excerptSuffix, nil
}

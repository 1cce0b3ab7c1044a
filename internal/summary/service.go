package summary

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptyContent is returned when there is no text to summarize.
var ErrEmptyContent = errors.New("summary: content is required")

var errGeneratorUnavailable = errors.New("summary: generator unavailable")

// Result is the outcome of a summarize request. Generated is false when the
// generator failed and Summary was left blank.
type Result struct {
	Summary   string
	Generated bool
}

// Service wraps a Generator and degrades to an empty summary on failure.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// NewService builds a Service. A nil generator yields blank summaries.
func NewService(generator Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, logger: logger}
}

// Summarize rejects empty content and otherwise never fails: upstream errors are
// logged and reported as an ungenerated, empty summary.
func (s *Service) Summarize(ctx context.Context, content string) (Result, error) {
	if strings.TrimSpace(content) == "" {
		return Result{}, ErrEmptyContent
	}
	if s == nil || s.generator == nil {
		if s != nil {
			s.logger.Warn("summary generation skipped", zap.Error(errGeneratorUnavailable))
		}
		return Result{}, nil
	}

	generated, err := s.generator.Summarize(ctx, content)
	if err != nil {
		s.logger.Warn("summary generation failed", zap.Error(err), zap.Int("content_length", len(content)))
		return Result{}, nil
	}
	return Result{Summary: generated, Generated: true}, nil
}

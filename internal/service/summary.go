package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/summarize"
)

// SummaryService wraps a Summarizer with input validation.
type SummaryService interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type SummaryServiceImpl struct {
	sum summarize.Summarizer
}

var _ SummaryService = (*SummaryServiceImpl)(nil)

// NewSummaryService constructs SummaryService.
func NewSummaryService(sum summarize.Summarizer) *SummaryServiceImpl {
	return &SummaryServiceImpl{sum: sum}
}

// Summarize rejects blank text and delegates to the provider.
func (s *SummaryServiceImpl) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", errs.ErrBadRequest)
	}
	out, err := s.sum.Summarize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

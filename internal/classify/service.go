package classify

import (
	"context"
	"log/slog"
)

// Classifier is the two-stage strategy contract. Both the model-backed
// primary and the keyword fallback satisfy it.
type Classifier interface {
	Classify(ctx context.Context, itemText string) (Result, error)
}

// Service routes a classification through the primary and falls back to the
// deterministic scorer on any primary failure. It never returns an error:
// callers always get a usable Result.
type Service struct {
	primary  Classifier
	fallback Classifier
	logger   *slog.Logger
}

// NewService creates the classification service. primary may be nil when no
// external classifier is configured.
func NewService(log *slog.Logger, primary, fallback Classifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		logger:   log.With(slog.String("service", "classify")),
	}
}

// Classify enriches the item text with a category and condition. A primary
// failure is logged and degrades to the fallback; the fallback itself cannot
// fail.
func (s *Service) Classify(ctx context.Context, itemText string) Result {
	if s.primary != nil {
		result, err := s.primary.Classify(ctx, itemText)
		if err == nil {
			return result
		}
		s.logger.Warn("primary classifier failed, using fallback",
			slog.Any("error", err),
		)
	}
	result, _ := s.fallback.Classify(ctx, itemText)
	return result
}

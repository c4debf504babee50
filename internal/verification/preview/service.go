// internal/verification/preview/service.go
package preview

import (
	"strconv"
	"strings"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/metrics"
	"challenge-verifier/internal/verification/category"
	"challenge-verifier/pkg/ruleset"
)

type CategoryMapper interface {
	Map(title string) []ruleset.Tag
}

// Service tells a challenge creator whether photos for a title can be judged
// automatically. It never touches the similarity model.
type Service struct {
	mapper CategoryMapper
	logger logger.Logger
}

func NewService(mapper CategoryMapper, log logger.Logger) *Service {
	return &Service{
		mapper: mapper,
		logger: log.WithFields(map[string]interface{}{"component": "preview"}),
	}
}

// Preview maps title to categories. A title that only reaches the generic
// fallback is not auto-verifiable.
func (s *Service) Preview(title string) (*Result, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewInvalidInputError("title is required", "title is empty")
	}

	categories := s.mapper.Map(title)
	auto := !category.IsGeneric(categories)
	reason := ReasonNotAutoVerifiable
	if auto {
		reason = ReasonAutoVerifiable
	}

	metrics.Previews.WithLabelValues(strconv.FormatBool(auto)).Inc()
	s.logger.Debug("preview computed", map[string]interface{}{
		"title":          title,
		"categories":     categories,
		"autoVerifiable": auto,
	})

	return &Result{
		Title:          title,
		Categories:     categories,
		AutoVerifiable: auto,
		Reason:         reason,
	}, nil
}

// internal/verification/verify/engine.go
package verify

import (
	"context"
	"fmt"
	"image"
	"strings"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/metrics"
	"challenge-verifier/internal/common/observability"
	"challenge-verifier/internal/verification/oracle"
	"challenge-verifier/internal/verification/prompts"
	"challenge-verifier/pkg/ruleset"
)

// CategoryMapper maps a challenge title to category tags.
type CategoryMapper interface {
	Map(title string) []ruleset.Tag
}

// PromptCatalog supplies the prompt sentences of each tag.
type PromptCatalog interface {
	PromptsFor(tag ruleset.Tag) []string
	GenericPrompts() []string
}

// Engine decides whether a photo substantiates a challenge title. It is safe
// for concurrent use; all of its collaborators are read-only.
type Engine struct {
	mapper  CategoryMapper
	catalog PromptCatalog
	oracle  oracle.Oracle
	policy  Policy
	obs     *observability.Observability
	logger  logger.Logger
}

// NewEngine validates the policy and wires the engine. obs may be nil.
func NewEngine(mapper CategoryMapper, catalog PromptCatalog, o oracle.Oracle, policy Policy, obs *observability.Observability, log logger.Logger) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(catalog.GenericPrompts()) == 0 {
		return nil, apperrors.NewConfigurationError("prompt catalog", fmt.Errorf("generic prompts are empty"))
	}
	return &Engine{
		mapper:  mapper,
		catalog: catalog,
		oracle:  o,
		policy:  policy,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "verify"}),
	}, nil
}

// Verify scores img against the category prompts of title and against the
// generic prompts, then applies the policy. The oracle is called exactly
// twice, category group first. Any oracle failure aborts the verification.
func (e *Engine) Verify(ctx context.Context, title string, img image.Image) (*Verdict, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewInvalidInputError("title is required", "title is empty")
	}

	categories := e.mapper.Map(title)
	categoryPrompts := e.categoryPrompts(categories)
	genericPrompts := e.catalog.GenericPrompts()

	categoryScores, err := e.score(ctx, img, categoryPrompts)
	if err != nil {
		return nil, err
	}
	genericScores, err := e.score(ctx, img, genericPrompts)
	if err != nil {
		return nil, err
	}

	best, _ := categoryScores.Best()
	bestGeneric, _ := genericScores.Best()
	outcome := e.policy.Decide(best.Score, bestGeneric.Score)

	verdict := &Verdict{
		Title:               title,
		Categories:          append([]ruleset.Tag(nil), categories...),
		BestPrompt:          best.Prompt,
		Score:               best.Score,
		BestGenericPrompt:   bestGeneric.Prompt,
		GenericScore:        bestGeneric.Score,
		Outcome:             outcome,
		PassThreshold:       e.policy.PassThreshold,
		ReviewThreshold:     e.policy.ReviewThreshold,
		Margin:              e.policy.Margin,
		PromptScores:        categoryScores,
		GenericPromptScores: genericScores,
	}

	metrics.Verifications.WithLabelValues(outcome.String()).Inc()
	e.obs.RecordVerification(ctx, outcome.String())

	e.logger.Info("verification completed", map[string]interface{}{
		"title":        title,
		"categories":   categories,
		"bestPrompt":   best.Prompt,
		"score":        best.Score,
		"genericScore": bestGeneric.Score,
		"outcome":      outcome.String(),
	})

	return verdict, nil
}

// categoryPrompts concatenates the prompts of each category in order,
// keeping the first occurrence of a repeated sentence.
func (e *Engine) categoryPrompts(categories []ruleset.Tag) []string {
	var all []string
	for _, c := range categories {
		all = append(all, e.catalog.PromptsFor(c)...)
	}
	return prompts.Dedupe(all)
}

func (e *Engine) score(ctx context.Context, img image.Image, group []string) (oracle.Scores, error) {
	scores, err := e.oracle.Score(ctx, img, group)
	if err != nil {
		return nil, err
	}
	if err := scores.Validate(group); err != nil {
		e.logger.Error("oracle returned malformed scores", map[string]interface{}{
			"prompts": len(group),
			"scores":  len(scores),
			"error":   err.Error(),
		})
		return nil, apperrors.NewOracleUnavailableError(err)
	}
	return scores, nil
}

package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
)

// Result is a classification verdict.
type Result struct {
	Category   domain.Classification
	Confidence float64
	Reason     string
}

var normalizer = strings.NewReplacer("’", "'", "‘", "'", "\r", " ", "\n", " ", "\t", " ")

// Classify labels a reply. Priority, first match wins: OOO, BOUNCE, UNSUB,
// NEGATIVE (only when negative hits outnumber positive hits), POSITIVE,
// NEUTRAL. Negative phrases are blanked before positive phrases are
// counted, so "not interested" never counts as "interested".
func Classify(subject, body string) Result {
	text := strings.ToLower(normalizer.Replace(subject + " " + body))

	for _, r := range []*rule{oooRule, bounceRule, unsubRule} {
		if hits := r.matches(text); len(hits) > 0 {
			return r.result(hits)
		}
	}

	negHits := negativeRule.matches(text)
	posHits := positiveRule.matches(negativeRule.mask(text))

	if len(negHits) > len(posHits) {
		return negativeRule.result(negHits)
	}
	if len(posHits) > 0 {
		return positiveRule.result(posHits)
	}
	return Result{Category: domain.ClassNeutral, Confidence: 0, Reason: "no patterns matched"}
}

func (r *rule) matches(text string) []string {
	var hits []string
	for i, re := range r.res {
		if re.MatchString(text) {
			hits = append(hits, r.phrases[i])
		}
	}
	return hits
}

func (r *rule) mask(text string) string {
	for _, re := range r.res {
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
	}
	return text
}

func (r *rule) result(hits []string) Result {
	return Result{
		Category:   r.category,
		Confidence: math.Min(1.0, float64(len(hits))/r.k),
		Reason:     fmt.Sprintf("%s matched: %s", r.category, strings.Join(hits, ", ")),
	}
}

// Service exposes Classify through the Classification port.
type Service struct{}

// NewService creates the classifier service.
func NewService() *Service { return &Service{} }

// Classify implements ports.Classification.
func (s *Service) Classify(_ context.Context, req contracts.ClassifyReplyRequest) contracts.ClassifyReplyResponse {
	res := Classify(req.Subject, req.Body)
	return contracts.ClassifyReplyResponse{
		Success:    true,
		Category:   res.Category,
		Confidence: res.Confidence,
		Reason:     res.Reason,
	}
}

func (s *Service) ModuleName() string { return "classifier" }
func (s *Service) IsConfigured() bool { return true }

func (s *Service) Health(context.Context) contracts.ModuleHealth {
	return contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
}

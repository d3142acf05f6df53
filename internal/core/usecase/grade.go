package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// Grader calls the grading collaborator and enforces the grade invariants.
// A response violating score bounds is re-requested with a correction note up
// to Revalidations times; a still-invalid response becomes a grading error
// instead of silently clamped scores, because clamping would misrepresent the
// rubric's intent.
type Grader struct {
	client ports.GradingClient

	// Revalidations is the number of re-requests allowed after an invalid
	// or score-overrunning response.
	Revalidations int

	// OnRevalidation, when set, is invoked once per re-request. Observability
	// hangs off this hook so the usecase stays free of metrics dependencies.
	OnRevalidation func()
}

func NewGrader(client ports.GradingClient, revalidations int) *Grader {
	if revalidations < 0 {
		revalidations = 0
	}
	return &Grader{client: client, Revalidations: revalidations}
}

func (g *Grader) Grade(ctx context.Context, text, rubric string, pointsAvailable float64) (domain.GradeRecord, error) {
	if strings.TrimSpace(text) == "" {
		return zeroGrade(pointsAvailable), nil
	}

	req := ports.GradeRequest{
		Text:            text,
		Rubric:          rubric,
		PointsAvailable: pointsAvailable,
	}

	var lastErr error
	for attempt := 0; attempt <= g.Revalidations; attempt++ {
		record, err := g.client.GradeText(ctx, req)
		if err != nil {
			if domain.IsKind(err, domain.ErrInvalidGrade) && attempt < g.Revalidations {
				lastErr = err
				req.CorrectionNote = "The previous response could not be parsed. Respond with only the JSON object in the required format."
				slog.Warn("grade_response_invalid", "attempt", attempt+1, "error", err)
				g.notifyRevalidation()
				continue
			}
			return domain.GradeRecord{}, err
		}

		if err := record.Validate(pointsAvailable); err != nil {
			lastErr = err
			if attempt < g.Revalidations {
				req.CorrectionNote = fmt.Sprintf(
					"The previous grade was rejected: %v. Every item score must stay within its point value and the total must not exceed %.2f.",
					err, pointsAvailable,
				)
				slog.Warn("grade_score_overrun", "attempt", attempt+1, "error", err)
				g.notifyRevalidation()
				continue
			}
			return domain.GradeRecord{}, err
		}
		return record, nil
	}
	return domain.GradeRecord{}, lastErr
}

func (g *Grader) notifyRevalidation() {
	if g.OnRevalidation != nil {
		g.OnRevalidation()
	}
}

// zeroGrade is synthesized when extraction produced no text at all; the
// grading service is not called for content that does not exist.
func zeroGrade(pointsAvailable float64) domain.GradeRecord {
	feedback := "No readable content could be extracted from this file, so no points were awarded."
	return domain.GradeRecord{
		Items: []domain.GradeItem{{
			Question:       "Submission content",
			PointsPossible: pointsAvailable,
			PointsEarned:   0,
			Mistakes:       []string{"content extraction failed"},
			Feedback:       feedback,
		}},
		TotalScore:      0,
		OverallFeedback: feedback,
	}
}

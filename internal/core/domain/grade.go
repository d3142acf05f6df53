package domain

import "math"

type GradeItem struct {
	Question       string   `json:"question"`
	PointsPossible float64  `json:"points_possible"`
	PointsEarned   float64  `json:"points_earned"`
	Mistakes       []string `json:"mistakes"`
	Feedback       string   `json:"feedback"`
}

type GradeRecord struct {
	Items           []GradeItem `json:"items"`
	TotalScore      float64     `json:"total_score"`
	OverallFeedback string      `json:"overall_feedback"`
}

const scoreEpsilon = 1e-6

// Validate checks the invariants the grading collaborator must honor:
// every item's earned points within [0, possible], the reported total equal to
// the sum of item scores, and the total within the submission's point budget.
func (g GradeRecord) Validate(pointsAvailable float64) error {
	sum := 0.0
	for _, item := range g.Items {
		if item.PointsEarned < -scoreEpsilon {
			return WrapErrorf(ErrScoreOverrun, "validate grade", "item %q earned %.2f points, below zero", item.Question, item.PointsEarned)
		}
		if item.PointsPossible > 0 && item.PointsEarned > item.PointsPossible+scoreEpsilon {
			return WrapErrorf(ErrScoreOverrun, "validate grade", "item %q earned %.2f of %.2f points", item.Question, item.PointsEarned, item.PointsPossible)
		}
		sum += item.PointsEarned
	}
	if math.Abs(sum-g.TotalScore) > scoreEpsilon {
		return WrapErrorf(ErrScoreOverrun, "validate grade", "total %.2f does not match item sum %.2f", g.TotalScore, sum)
	}
	if g.TotalScore > pointsAvailable+scoreEpsilon {
		return WrapErrorf(ErrScoreOverrun, "validate grade", "total %.2f exceeds %.2f points available", g.TotalScore, pointsAvailable)
	}
	return nil
}

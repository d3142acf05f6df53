package deepseek

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

const systemPrompt = `You are an expert grader. When grading submissions, first analyze the content and criteria carefully, then provide your response in two sections:

<reasoning>
1. Break down each aspect/question from the grading criteria
2. Evaluate how well the submission meets each criterion
3. Justify point allocations based on the defined rubric
4. Consider partial credit where appropriate
</reasoning>

<response>
{
    "results": [
        {
            "question": "Question/Aspect being graded",
            "maxPoints": number (point value this aspect is worth per the rubric),
            "mistakes": ["List of specific mistakes or areas for improvement"],
            "score": number (based on rubric point allocation),
            "feedback": "Detailed, constructive feedback explaining point allocation"
        }
    ],
    "totalScore": number (sum of all scores),
    "overallFeedback": "Comprehensive overall feedback with suggestions for improvement"
}
</response>

Your JSON response must be within the <response> tags and follow the exact format shown above.
Be thorough in your grading and provide specific, actionable feedback for each aspect.`

func buildUserPrompt(req ports.GradeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Please grade this submission according to the following rubric:

Grading Criteria:
%s

Submission:
%s

Remember to:
1. Grade each aspect according to its defined point values
2. Provide specific feedback for point deductions
3. Consider partial credit based on the rubric
4. Ensure total score doesn't exceed %g points`, req.Rubric, req.Text, req.PointsAvailable)

	if note := strings.TrimSpace(req.CorrectionNote); note != "" {
		fmt.Fprintf(&b, "\n\nIMPORTANT correction to your previous attempt: %s", note)
	}
	return b.String()
}

type gradePayload struct {
	Results []struct {
		Question  string   `json:"question"`
		MaxPoints float64  `json:"maxPoints"`
		Mistakes  []string `json:"mistakes"`
		Score     float64  `json:"score"`
		Feedback  string   `json:"feedback"`
	} `json:"results"`
	TotalScore      float64 `json:"totalScore"`
	OverallFeedback string  `json:"overallFeedback"`
}

// parseGradeResponse pulls the grade JSON out of the model reply. The
// <response> tags are the contract, but models occasionally omit them, so a
// bare JSON object anywhere in the reply is accepted as a fallback.
func parseGradeResponse(content string) (domain.GradeRecord, error) {
	raw, ok := extractTagged(content, "<response>", "</response>")
	if !ok {
		raw, ok = extractBraced(content)
	}
	if !ok {
		return domain.GradeRecord{}, domain.WrapErrorf(domain.ErrInvalidGrade, "parse grade", "no JSON structure found in model reply")
	}

	var payload gradePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.GradeRecord{}, domain.WrapError(domain.ErrInvalidGrade, "parse grade", err)
	}
	if len(payload.Results) == 0 {
		return domain.GradeRecord{}, domain.WrapErrorf(domain.ErrInvalidGrade, "parse grade", "grade has no per-question results")
	}

	record := domain.GradeRecord{
		TotalScore:      payload.TotalScore,
		OverallFeedback: payload.OverallFeedback,
	}
	if record.OverallFeedback == "" {
		record.OverallFeedback = "No overall feedback provided"
	}
	for _, r := range payload.Results {
		item := domain.GradeItem{
			Question:       r.Question,
			PointsPossible: r.MaxPoints,
			PointsEarned:   r.Score,
			Mistakes:       r.Mistakes,
			Feedback:       r.Feedback,
		}
		if item.Question == "" {
			item.Question = "Unnamed aspect"
		}
		if item.Mistakes == nil {
			item.Mistakes = []string{}
		}
		if item.Feedback == "" {
			item.Feedback = "No feedback provided"
		}
		record.Items = append(record.Items, item)
	}
	return record, nil
}

func extractTagged(content, start, end string) (string, bool) {
	i := strings.Index(content, start)
	if i < 0 {
		return "", false
	}
	j := strings.Index(content[i+len(start):], end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(content[i+len(start) : i+len(start)+j]), true
}

func extractBraced(content string) (string, bool) {
	i := strings.Index(content, "{")
	j := strings.LastIndex(content, "}")
	if i < 0 || j <= i {
		return "", false
	}
	return content[i : j+1], true
}

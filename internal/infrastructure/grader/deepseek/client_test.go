package deepseek

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

func completionReply(content string) chatResponse {
	var resp chatResponse
	resp.Choices = append(resp.Choices, struct {
		Message chatMessage `json:"message"`
	}{Message: chatMessage{Role: "assistant", Content: content}})
	return resp
}

const taggedGrade = `<reasoning>
The essay answers both questions with minor omissions.
</reasoning>

<response>
{
  "results": [
    {"question": "Thesis clarity", "maxPoints": 40, "mistakes": ["thesis buried in paragraph two"], "score": 32, "feedback": "Solid argument, surface it earlier."},
    {"question": "Evidence", "maxPoints": 60, "mistakes": [], "score": 55, "feedback": "Well sourced."}
  ],
  "totalScore": 87,
  "overallFeedback": "Strong work overall."
}
</response>`

func TestGradeTextParsesTaggedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload chatRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", payload.Messages)
		}
		if !strings.Contains(payload.Messages[1].Content, "doesn't exceed 100 points") {
			t.Errorf("point budget missing from user prompt")
		}
		_ = json.NewEncoder(w).Encode(completionReply(taggedGrade))
	}))
	defer server.Close()

	client := New(server.URL, "key", "deepseek-chat", Options{})
	record, err := client.GradeText(context.Background(), ports.GradeRequest{
		Text:            "essay text",
		Rubric:          "two questions, 40 + 60",
		PointsAvailable: 100,
	})
	if err != nil {
		t.Fatalf("GradeText() error = %v", err)
	}
	if len(record.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(record.Items))
	}
	if record.Items[0].PointsEarned != 32 || record.Items[0].PointsPossible != 40 {
		t.Fatalf("item 0: %+v", record.Items[0])
	}
	if record.TotalScore != 87 {
		t.Fatalf("total = %v", record.TotalScore)
	}
	if err := record.Validate(100); err != nil {
		t.Fatalf("parsed record must validate: %v", err)
	}
}

func TestGradeTextAcceptsUntaggedJSON(t *testing.T) {
	reply := `Here is the grade: {"results":[{"question":"Q1","maxPoints":10,"score":7,"feedback":"ok"}],"totalScore":7,"overallFeedback":"fine"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionReply(reply))
	}))
	defer server.Close()

	record, err := New(server.URL, "key", "deepseek-chat", Options{}).GradeText(context.Background(), ports.GradeRequest{
		Text: "t", Rubric: "r", PointsAvailable: 10,
	})
	if err != nil {
		t.Fatalf("GradeText() error = %v", err)
	}
	if record.TotalScore != 7 {
		t.Fatalf("total = %v", record.TotalScore)
	}
	if record.Items[0].Mistakes == nil {
		t.Fatalf("missing mistakes must normalize to empty slice")
	}
}

func TestGradeTextProseReplyIsInvalidGrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionReply("I would give this essay a B+."))
	}))
	defer server.Close()

	_, err := New(server.URL, "key", "deepseek-chat", Options{}).GradeText(context.Background(), ports.GradeRequest{
		Text: "t", Rubric: "r", PointsAvailable: 10,
	})
	if !domain.IsKind(err, domain.ErrInvalidGrade) {
		t.Fatalf("expected invalid grade kind, got %v", err)
	}
}

func TestGradeTextServerErrorIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"upstream overloaded"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "key", "deepseek-chat", Options{}).GradeText(context.Background(), ports.GradeRequest{
		Text: "t", Rubric: "r", PointsAvailable: 10,
	})
	if !domain.IsKind(err, domain.ErrGraderUnreachable) {
		t.Fatalf("expected grader unreachable kind, got %v", err)
	}
}

func TestGradeTextCorrectionNoteReachesPrompt(t *testing.T) {
	var sawNote bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload chatRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		sawNote = strings.Contains(payload.Messages[1].Content, "total exceeded the available points")
		_ = json.NewEncoder(w).Encode(completionReply(taggedGrade))
	}))
	defer server.Close()

	_, err := New(server.URL, "key", "deepseek-chat", Options{}).GradeText(context.Background(), ports.GradeRequest{
		Text:            "t",
		Rubric:          "r",
		PointsAvailable: 100,
		CorrectionNote:  "your total exceeded the available points, re-grade within the budget",
	})
	if err != nil {
		t.Fatalf("GradeText() error = %v", err)
	}
	if !sawNote {
		t.Fatalf("correction note must be forwarded to the model")
	}
}

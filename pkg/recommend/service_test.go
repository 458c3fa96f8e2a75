package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

func init() {
	logger.Init()
}

type fixedRouter struct {
	provider string
}

func (f fixedRouter) DetermineProvider(ctx context.Context, hospitalID int64) string {
	return f.provider
}

type scriptedAI struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (s *scriptedAI) Call(ctx context.Context, provider string, hospitalID, userID int64, action, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.response, s.err
}

func testInput() Input {
	return Input{
		Symptoms: "recurrent seizures, left arm numbness",
		AgeGroup: "child",
		Gender:   "female",
		Exams: map[int64]string{
			10: "MEG / Resting State",
			11: "MEG / Evoked Fields",
		},
		Departments: map[int64]string{3: "Neurology"},
		Sedations:   map[int64]string{7: "Light sedation"},
	}
}

func TestRecommendValidResponse(t *testing.T) {
	ai := &scriptedAI{response: `{"recommended_exam_procedure_ids":[10,11],"department_id":3,"sedation_id":7,"priority":"high","notes":"EEG history suggests both recordings"}`}
	svc := NewService(fixedRouter{provider: "openai"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if !rec.AIGenerated {
		t.Fatal("expected ai_generated=true")
	}
	if len(rec.ExamProcedureIDs) != 2 {
		t.Fatalf("exam ids = %v", rec.ExamProcedureIDs)
	}
	if rec.DepartmentID == nil || *rec.DepartmentID != 3 {
		t.Fatalf("department = %v", rec.DepartmentID)
	}
	if rec.Priority != models.PriorityHigh {
		t.Fatalf("priority = %q", rec.Priority)
	}
}

func TestRecommendDropsUnknownIDs(t *testing.T) {
	// Adversarial ids the caller never offered must be silently dropped.
	ai := &scriptedAI{response: `{"recommended_exam_procedure_ids":[10,999,-1],"department_id":44,"sedation_id":7,"priority":"urgent"}`}
	svc := NewService(fixedRouter{provider: "openai"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if len(rec.ExamProcedureIDs) != 1 || rec.ExamProcedureIDs[0] != 10 {
		t.Fatalf("exam ids = %v, want [10]", rec.ExamProcedureIDs)
	}
	if rec.DepartmentID != nil {
		t.Fatalf("department = %v, want nil for unknown id", *rec.DepartmentID)
	}
	if rec.SedationID == nil || *rec.SedationID != 7 {
		t.Fatalf("sedation = %v, want 7", rec.SedationID)
	}
}

func TestRecommendInvalidPriorityDefaultsMedium(t *testing.T) {
	ai := &scriptedAI{response: `{"recommended_exam_procedure_ids":[],"priority":"CRITICAL!!"}`}
	svc := NewService(fixedRouter{provider: "openai"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if rec.Priority != models.PriorityMedium {
		t.Fatalf("priority = %q, want medium", rec.Priority)
	}
}

func TestRecommendTolerantOfFencedJSON(t *testing.T) {
	ai := &scriptedAI{response: "Here you go:\n```json\n{\"recommended_exam_procedure_ids\":[11],\"priority\":\"low\"}\n```"}
	svc := NewService(fixedRouter{provider: "gemini"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if !rec.AIGenerated || len(rec.ExamProcedureIDs) != 1 || rec.ExamProcedureIDs[0] != 11 {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestRecommendFallbackOnCallError(t *testing.T) {
	ai := &scriptedAI{err: errors.New("provider down")}
	svc := NewService(fixedRouter{provider: "openai"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if rec.AIGenerated {
		t.Fatal("expected ai_generated=false on provider failure")
	}
	if rec.Priority != models.PriorityMedium {
		t.Fatalf("priority = %q, want medium", rec.Priority)
	}
}

func TestRecommendFallbackOnGarbage(t *testing.T) {
	ai := &scriptedAI{response: "I cannot help with that."}
	svc := NewService(fixedRouter{provider: "openai"}, ai)

	if rec := svc.Recommend(context.Background(), 1, 9, testInput()); rec.AIGenerated {
		t.Fatal("expected fallback on unparseable response")
	}
}

func TestRecommendFallbackProviderSkipsCall(t *testing.T) {
	ai := &scriptedAI{}
	svc := NewService(fixedRouter{provider: "fallback"}, ai)

	rec := svc.Recommend(context.Background(), 1, 9, testInput())
	if ai.calls != 0 {
		t.Fatalf("AI called %d times, want 0", ai.calls)
	}
	if rec.AIGenerated {
		t.Fatal("expected ai_generated=false")
	}
}

func TestPromptCarriesCandidatesNotIdentity(t *testing.T) {
	ai := &scriptedAI{response: `{"priority":"low"}`}
	svc := NewService(fixedRouter{provider: "openai"}, ai)
	svc.Recommend(context.Background(), 1, 9, testInput())

	if !strings.Contains(ai.prompt, "10: MEG / Resting State") {
		t.Fatalf("prompt missing exam candidates:\n%s", ai.prompt)
	}
	if !strings.Contains(ai.prompt, "child") {
		t.Fatal("prompt missing age group")
	}
}

package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/megcare/platform/pkg/common/models"
)

type memReportStore struct {
	reports []*models.Report
	failing bool
}

func (m *memReportStore) FindByCaseAndUser(ctx context.Context, caseID, userID int64) (*models.Report, error) {
	if m.failing {
		return nil, errors.New("store down")
	}
	for _, r := range m.reports {
		if r.CaseID == caseID && r.UserID == userID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memReportStore) Save(ctx context.Context, report *models.Report) error {
	if m.failing {
		return errors.New("store down")
	}
	for i, r := range m.reports {
		if r.ID == report.ID {
			copied := *report
			m.reports[i] = &copied
			return nil
		}
	}
	copied := *report
	m.reports = append(m.reports, &copied)
	return nil
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
	calls    int
}

func (s *scriptedAI) Call(ctx context.Context, provider string, hospitalID, userID int64, action, prompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

type capturingPublisher struct {
	events []string
	data   []map[string]interface{}
}

func (c *capturingPublisher) PublishCaseEvent(ctx context.Context, eventType, source string, caseID int64, data map[string]interface{}) error {
	c.events = append(c.events, eventType)
	c.data = append(c.data, data)
	return nil
}

const validOutline = `{"report_name":"AI Outline","sections":[{"title":"History","required":true,"content_type":"symptoms_and_history"}]}`

func TestGenerateWithAIOutline(t *testing.T) {
	store := &memReportStore{}
	pub := &capturingPublisher{}
	svc := NewService(store, fixedRouter{provider: "openai"}, &scriptedAI{response: validOutline}, pub)

	rep, assembled, err := svc.Generate(context.Background(), withSymptoms(baseInput()), 9)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !rep.AIGenerated {
		t.Fatal("expected ai_generated=true")
	}
	if assembled.Title != "AI Outline" {
		t.Fatalf("title = %q", assembled.Title)
	}
	if len(store.reports) != 1 {
		t.Fatalf("stored reports = %d", len(store.reports))
	}

	data, err := DecodeReportData(rep.ReportData)
	if err != nil {
		t.Fatalf("decode stored data: %v", err)
	}
	if !strings.Contains(data.Content, "episodic loss of awareness") {
		t.Fatalf("content missing synthesized history:\n%s", data.Content)
	}

	if len(pub.events) != 1 || pub.events[0] != "report_generated" {
		t.Fatalf("events = %v", pub.events)
	}
	if pub.data[0]["ai_generated"] != true {
		t.Fatal("event missing ai_generated indicator")
	}
}

func TestGenerateFallsBackOnProviderFailure(t *testing.T) {
	store := &memReportStore{}
	svc := NewService(store, fixedRouter{provider: "openai"}, &scriptedAI{err: errors.New("503")}, &capturingPublisher{})

	rep, assembled, err := svc.Generate(context.Background(), baseInput(), 9)
	if err != nil {
		t.Fatalf("Generate must not fail when AI does: %v", err)
	}
	if rep.AIGenerated {
		t.Fatal("expected ai_generated=false on fallback")
	}
	if assembled.FindSection(SectionMEGRecordings) == nil {
		t.Fatal("fallback must be the standardized report")
	}
}

func TestGenerateFallbackProviderSkipsAI(t *testing.T) {
	ai := &scriptedAI{}
	svc := NewService(&memReportStore{}, fixedRouter{provider: "fallback"}, ai, &capturingPublisher{})

	rep, _, err := svc.Generate(context.Background(), baseInput(), 9)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("AI called %d times, want 0", ai.calls)
	}
	if rep.AIGenerated {
		t.Fatal("expected ai_generated=false")
	}
}

func TestGenerateUnparseableOutlineFallsBack(t *testing.T) {
	svc := NewService(&memReportStore{}, fixedRouter{provider: "gemini"}, &scriptedAI{response: "not json"}, &capturingPublisher{})

	rep, _, err := svc.Generate(context.Background(), baseInput(), 9)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.AIGenerated {
		t.Fatal("expected fallback on unparseable outline")
	}
}

func TestGenerateOverwritesExistingReport(t *testing.T) {
	store := &memReportStore{}
	svc := NewService(store, fixedRouter{provider: "fallback"}, &scriptedAI{}, &capturingPublisher{})

	first, _, err := svc.Generate(context.Background(), baseInput(), 9)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, _, err := svc.Generate(context.Background(), withSymptoms(baseInput()), 9)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("regeneration must reuse the existing report row")
	}
	if len(store.reports) != 1 {
		t.Fatalf("stored reports = %d, want 1", len(store.reports))
	}
}

func TestGenerateStoreFailureSurfaces(t *testing.T) {
	svc := NewService(&memReportStore{failing: true}, fixedRouter{provider: "fallback"}, &scriptedAI{}, &capturingPublisher{})
	if _, _, err := svc.Generate(context.Background(), baseInput(), 9); err == nil {
		t.Fatal("expected persistence error to surface")
	}
}

func TestAgeGroup(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		born time.Time
		want string
	}{
		{time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), "infant"},
		{time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC), "child"},
		{time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC), "adolescent"},
		{time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC), "adult"},
		{time.Date(1950, 3, 1, 0, 0, 0, 0, time.UTC), "senior"},
	}
	for _, tc := range cases {
		if got := AgeGroup(tc.born, now); got != tc.want {
			t.Errorf("AgeGroup(%v) = %q, want %q", tc.born, got, tc.want)
		}
	}
}

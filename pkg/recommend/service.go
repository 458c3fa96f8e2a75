package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

// Input is the de-identified material the engine is allowed to send to an
// AI provider. Callers must pass an age group string, never a numeric age.
type Input struct {
	Symptoms    string
	AgeGroup    string
	Gender      string
	Exams       map[int64]string
	Departments map[int64]string
	Sedations   map[int64]string
}

// ProviderPicker selects the provider for a hospital.
type ProviderPicker interface {
	DetermineProvider(ctx context.Context, hospitalID int64) string
}

// AICaller sends one prompt to a named provider.
type AICaller interface {
	Call(ctx context.Context, provider string, hospitalID, userID int64, action, prompt string) (string, error)
}

type Service struct {
	router ProviderPicker
	ai     AICaller
}

func NewService(router ProviderPicker, ai AICaller) *Service {
	return &Service{router: router, ai: ai}
}

// Recommend suggests exams, department, sedation and priority for a new
// case. Any failure along the AI path degrades to the deterministic empty
// recommendation; the caller always gets a usable object.
func (s *Service) Recommend(ctx context.Context, hospitalID, userID int64, in Input) models.Recommendation {
	provider := s.router.DetermineProvider(ctx, hospitalID)
	if provider == "" || provider == "fallback" {
		return fallbackRecommendation()
	}

	raw, err := s.ai.Call(ctx, provider, hospitalID, userID, "recommend_case_setup", buildPrompt(in))
	if err != nil {
		logger.Log.WithError(err).WithField("provider", provider).Error("recommendation call failed, using fallback")
		return fallbackRecommendation()
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		logger.Log.WithError(err).WithField("provider", provider).Error("recommendation response unparseable, using fallback")
		return fallbackRecommendation()
	}

	return sanitize(parsed, in)
}

// aiResponse is the strict contract the provider must return.
type aiResponse struct {
	ExamProcedureIDs []int64 `json:"recommended_exam_procedure_ids"`
	DepartmentID     *int64  `json:"department_id"`
	SedationID       *int64  `json:"sedation_id"`
	Priority         string  `json:"priority"`
	Notes            string  `json:"notes"`
}

func buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are assisting with intake for a diagnostic imaging case.\n")
	b.WriteString("Patient: ")
	if in.AgeGroup != "" {
		b.WriteString(in.AgeGroup)
	} else {
		b.WriteString("age group unknown")
	}
	if in.Gender != "" {
		b.WriteString(", " + in.Gender)
	}
	b.WriteString("\nSymptoms: ")
	if in.Symptoms != "" {
		b.WriteString(in.Symptoms)
	} else {
		b.WriteString("none recorded")
	}
	b.WriteString("\n\nSelect only from these candidates.\n")
	writeCandidates(&b, "Exam procedures", in.Exams)
	writeCandidates(&b, "Departments", in.Departments)
	writeCandidates(&b, "Sedation options", in.Sedations)
	b.WriteString("\nRespond with JSON only, exactly this shape:\n")
	b.WriteString(`{"recommended_exam_procedure_ids": [], "department_id": null, "sedation_id": null, "priority": "low|medium|high|urgent", "notes": ""}`)
	return b.String()
}

func writeCandidates(b *strings.Builder, label string, candidates map[int64]string) {
	b.WriteString(label + ":\n")
	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(b, "  %d: %s\n", id, candidates[id])
	}
}

// parseResponse tolerates a fenced or prefixed reply but requires one JSON
// object inside it.
func parseResponse(raw string) (aiResponse, error) {
	var resp aiResponse
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return resp, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// sanitize drops every id the caller did not offer and normalizes the
// priority. The provider's output is never trusted directly.
func sanitize(resp aiResponse, in Input) models.Recommendation {
	rec := models.Recommendation{
		Priority:    models.PriorityMedium,
		Notes:       resp.Notes,
		AIGenerated: true,
	}

	for _, id := range resp.ExamProcedureIDs {
		if _, ok := in.Exams[id]; ok {
			rec.ExamProcedureIDs = append(rec.ExamProcedureIDs, id)
		}
	}
	if resp.DepartmentID != nil {
		if _, ok := in.Departments[*resp.DepartmentID]; ok {
			rec.DepartmentID = resp.DepartmentID
		}
	}
	if resp.SedationID != nil {
		if _, ok := in.Sedations[*resp.SedationID]; ok {
			rec.SedationID = resp.SedationID
		}
	}

	switch resp.Priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		rec.Priority = resp.Priority
	}
	return rec
}

func fallbackRecommendation() models.Recommendation {
	return models.Recommendation{
		Priority:    models.PriorityMedium,
		AIGenerated: false,
	}
}

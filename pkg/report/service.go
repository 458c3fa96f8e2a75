package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

// Store is the persistence surface for reports.
type Store interface {
	FindByCaseAndUser(ctx context.Context, caseID, userID int64) (*models.Report, error)
	Save(ctx context.Context, report *models.Report) error
}

// ProviderPicker selects the AI provider for a hospital.
type ProviderPicker interface {
	DetermineProvider(ctx context.Context, hospitalID int64) string
}

// AICaller sends one prompt to a named provider.
type AICaller interface {
	Call(ctx context.Context, provider string, hospitalID, userID int64, action, prompt string) (string, error)
}

// Publisher emits case lifecycle events. Publishing is best effort.
type Publisher interface {
	PublishCaseEvent(ctx context.Context, eventType, source string, caseID int64, data map[string]interface{}) error
}

type Service struct {
	store     Store
	router    ProviderPicker
	ai        AICaller
	publisher Publisher
	now       func() time.Time
}

func NewService(store Store, router ProviderPicker, ai AICaller, publisher Publisher) *Service {
	return &Service{store: store, router: router, ai: ai, publisher: publisher, now: time.Now}
}

// Generate assembles a report for the case and persists it, overwriting
// the user's previous report for the same case if one exists. The AI path
// proposes an outline only; a PHI violation or any provider failure
// degrades to the standardized local report, never to an error.
func (s *Service) Generate(ctx context.Context, in Input, userID int64) (models.Report, Assembled, error) {
	assembled, aiGenerated := s.assemble(ctx, in, userID)

	data, err := ReportData{Content: assembled.PlainText()}.Encode()
	if err != nil {
		return models.Report{}, Assembled{}, err
	}

	rep, err := s.store.FindByCaseAndUser(ctx, in.Case.ID, userID)
	if err != nil {
		return models.Report{}, Assembled{}, err
	}
	if rep == nil {
		rep = &models.Report{
			ID:         uuid.New(),
			CaseID:     in.Case.ID,
			HospitalID: in.Case.HospitalID,
			UserID:     userID,
			Type:       "meg",
			CreatedAt:  s.now(),
		}
	}
	rep.Status = "generated"
	rep.ReportData = data
	rep.ConfidenceScore = averageConfidence(in)
	rep.AIGenerated = aiGenerated
	rep.UpdatedAt = s.now()

	if err := s.store.Save(ctx, rep); err != nil {
		return models.Report{}, Assembled{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCaseEvent(ctx, "report_generated", "report-service", in.Case.ID, map[string]interface{}{
			"report_id":    rep.ID.String(),
			"ai_generated": aiGenerated,
		}); err != nil {
			logger.Log.WithError(err).WithField("case_id", in.Case.ID).Error("failed to publish report event")
		}
	}
	return *rep, assembled, nil
}

// assemble tries the AI-outline path and reports whether it was used.
func (s *Service) assemble(ctx context.Context, in Input, userID int64) (Assembled, bool) {
	structure, err := s.proposeStructure(ctx, in, userID)
	if err != nil {
		if !errors.Is(err, errAIUnavailable) {
			logger.Log.WithError(err).WithField("case_id", in.Case.ID).Error("AI outline unavailable, using standardized report")
		}
		return Assemble(in), false
	}
	return AssembleFromStructure(in, *structure), true
}

var errAIUnavailable = errors.New("no AI provider available")

func (s *Service) proposeStructure(ctx context.Context, in Input, userID int64) (*Structure, error) {
	provider := s.router.DetermineProvider(ctx, in.Case.HospitalID)
	if provider == "" || provider == "fallback" {
		return nil, errAIUnavailable
	}

	payload := deidentifiedPayload(in, s.now())
	if err := GuardAIPayload(payload); err != nil {
		return nil, err
	}

	raw, err := s.ai.Call(ctx, provider, in.Case.HospitalID, userID, "generate_report_structure", structurePrompt(payload))
	if err != nil {
		return nil, err
	}

	structure, err := parseStructure(raw)
	if err != nil {
		return nil, err
	}
	return structure, nil
}

// deidentifiedPayload is the only case material allowed out to a
// provider. Identity fields stay behind; age is reduced to a category.
func deidentifiedPayload(in Input, now time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"symptoms": in.Case.Symptoms,
		"priority": in.Case.Priority,
	}
	if in.Patient.Gender != "" {
		payload["gender"] = in.Patient.Gender
	}
	if in.Patient.DateOfBirth != nil {
		payload["age_group"] = AgeGroup(*in.Patient.DateOfBirth, now)
	}

	var procedures []interface{}
	for _, link := range in.Procedures {
		if link.Procedure != nil {
			procedures = append(procedures, map[string]interface{}{
				"procedure": link.Procedure.DisplayName(),
				"status":    link.Status,
			})
		}
	}
	if len(procedures) > 0 {
		payload["procedures"] = procedures
	}

	var summaries []interface{}
	for _, doc := range in.Documents {
		if content, ok := in.Contents[doc.ID]; ok && content.Analysis.Summary != "" {
			summaries = append(summaries, map[string]interface{}{
				"document_type": content.Analysis.DocumentType,
				"summary":       content.Analysis.Summary,
			})
		}
	}
	if len(summaries) > 0 {
		payload["document_summaries"] = summaries
	}
	return payload
}

// AgeGroup reduces a birth date to a coarse category; exact ages never
// leave the platform.
func AgeGroup(dateOfBirth, now time.Time) string {
	years := now.Year() - dateOfBirth.Year()
	if now.YearDay() < dateOfBirth.YearDay() {
		years--
	}
	return models.AgeCategory(years)
}

func structurePrompt(payload map[string]interface{}) string {
	data, _ := json.Marshal(payload)
	var b strings.Builder
	b.WriteString("Propose a clinical report outline for a magnetoencephalography case.\n")
	b.WriteString("Case data (de-identified):\n")
	b.Write(data)
	b.WriteString("\n\nRespond with JSON only, exactly this shape:\n")
	b.WriteString(`{"report_name": "", "report_type": "", "sections": [{"title": "", "required": true, "content_type": "symptoms_and_history|procedure_list|procedure_findings|document_summaries|conclusions", "subsections": [{"title": "", "keywords": []}]}]}`)
	return b.String()
}

func parseStructure(raw string) (*Structure, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var structure Structure
	if err := json.Unmarshal([]byte(raw[start:end+1]), &structure); err != nil {
		return nil, err
	}
	if len(structure.Sections) == 0 {
		return nil, fmt.Errorf("outline has no sections")
	}
	return &structure, nil
}

func averageConfidence(in Input) float64 {
	var total float64
	var n int
	for _, content := range in.Contents {
		if content.Analysis.Confidence > 0 {
			total += content.Analysis.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

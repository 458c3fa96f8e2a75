package report

import (
	"encoding/json"
	"errors"
	"strings"
)

// ReportData is the persisted report_data envelope. The canonical form is
// a single content string; older rows carry the legacy multi-section form
// and must stay readable. Decode normalizes both into Content so the rest
// of the package only ever sees the canonical shape.
type ReportData struct {
	Content string
	Legacy  *LegacySections
}

type LegacySections struct {
	PatientInformation  string `json:"patient_information,omitempty"`
	ClinicalIndication  string `json:"clinical_indication,omitempty"`
	ProcedurePerformed  string `json:"procedure_performed,omitempty"`
	TechnicalParameters string `json:"technical_parameters,omitempty"`
	Findings            string `json:"findings,omitempty"`
	Conclusion          string `json:"conclusion,omitempty"`
	Recommendations     string `json:"recommendations,omitempty"`
}

var legacyOrder = []struct {
	title string
	get   func(LegacySections) string
}{
	{"Patient Information", func(l LegacySections) string { return l.PatientInformation }},
	{"Clinical Indication", func(l LegacySections) string { return l.ClinicalIndication }},
	{"Procedure Performed", func(l LegacySections) string { return l.ProcedurePerformed }},
	{"Technical Parameters", func(l LegacySections) string { return l.TechnicalParameters }},
	{"Findings", func(l LegacySections) string { return l.Findings }},
	{"Conclusion", func(l LegacySections) string { return l.Conclusion }},
	{"Recommendations", func(l LegacySections) string { return l.Recommendations }},
}

var ErrEmptyReportData = errors.New("report data is empty")

// DecodeReportData reads either envelope shape. Legacy rows get their
// sections flattened into Content in the fixed section order, while the
// original legacy struct is retained for callers that need it.
func DecodeReportData(raw json.RawMessage) (ReportData, error) {
	if len(raw) == 0 {
		return ReportData{}, ErrEmptyReportData
	}

	var canonical struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return ReportData{}, err
	}
	if canonical.Content != nil {
		return ReportData{Content: *canonical.Content}, nil
	}

	var legacy LegacySections
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return ReportData{}, err
	}

	var parts []string
	for _, entry := range legacyOrder {
		if text := strings.TrimSpace(entry.get(legacy)); text != "" {
			parts = append(parts, entry.title+"\n\n"+text)
		}
	}
	if len(parts) == 0 {
		return ReportData{}, ErrEmptyReportData
	}
	return ReportData{Content: strings.Join(parts, "\n\n"), Legacy: &legacy}, nil
}

// Encode always writes the canonical single-field envelope.
func (d ReportData) Encode() (json.RawMessage, error) {
	return json.Marshal(map[string]string{"content": d.Content})
}

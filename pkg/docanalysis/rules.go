package docanalysis

import (
	"errors"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rules drives classification, description scoring and procedure matching.
// Keyword matching is case-insensitive; keywords are stored lowercase.
type Rules struct {
	// Types maps a document-type bucket to the keywords that vote for it.
	Types map[string][]string `yaml:"types" json:"types"`
	// Phrases maps a bucket to the key phrases used to score sentences when
	// building the document description.
	Phrases map[string][]string `yaml:"phrases" json:"phrases"`
	// ProcedureKeywords are the modality words used to match documents to
	// candidate procedures.
	ProcedureKeywords []string `yaml:"procedure_keywords" json:"procedure_keywords"`
	// FindingPhrases mark sentences worth surfacing in the findings list.
	FindingPhrases []string `yaml:"finding_phrases" json:"finding_phrases"`
}

func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, err
	}
	if len(rules.Types) == 0 {
		return Rules{}, errors.New("no document type buckets configured")
	}
	if len(rules.ProcedureKeywords) == 0 {
		rules.ProcedureKeywords = DefaultRules().ProcedureKeywords
	}
	return rules, nil
}

func DefaultRules() Rules {
	return Rules{
		Types: map[string][]string{
			"report":            {"report", "impression", "conclusion", "examination", "interpretation"},
			"image":             {"image", "scan", "series", "slice", "acquisition"},
			"dicom":             {"dicom", "modality", "study instance", "series instance", "sop"},
			"consent":           {"consent", "authorize", "authorization", "agree", "signature", "guardian"},
			"lab_result":        {"laboratory", "lab result", "specimen", "reference range", "hemoglobin", "serum"},
			"prescription":      {"prescription", "rx", "dosage", "refill", "dispense", "tablet"},
			"referral":          {"referral", "referred", "referring physician", "consultation request"},
			"pathology":         {"pathology", "biopsy", "histology", "cytology", "malignant", "benign"},
			"radiology":         {"radiology", "x-ray", "ct scan", "mri", "contrast", "radiologist"},
			"discharge_summary": {"discharge", "admission", "hospital course", "follow-up", "disposition"},
		},
		Phrases: map[string][]string{
			"report":            {"impression", "conclusion", "findings", "technique"},
			"lab_result":        {"result", "reference range", "elevated", "within normal"},
			"pathology":         {"diagnosis", "specimen", "margins", "grade"},
			"radiology":         {"impression", "comparison", "contrast", "unremarkable"},
			"discharge_summary": {"admitted", "discharged", "course", "follow-up"},
			"consent":           {"consent", "procedure", "risks"},
			"prescription":      {"dosage", "daily", "refill"},
			"referral":          {"referred", "evaluation", "consultation"},
		},
		ProcedureKeywords: []string{
			"mri", "ct", "xray", "ultrasound", "endoscopy", "biopsy", "blood", "ecg",
		},
		FindingPhrases: []string{
			"impression", "finding", "demonstrates", "consistent with",
			"no evidence of", "abnormal", "unremarkable", "suggestive of",
		},
	}
}

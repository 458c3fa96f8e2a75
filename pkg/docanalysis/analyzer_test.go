package docanalysis

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/megcare/platform/pkg/common/logger"
)

func init() {
	logger.Init()
}

type stubPDF struct {
	text string
	err  error
}

func (s stubPDF) ExtractText(ctx context.Context, data []byte) (string, error) {
	return s.text, s.err
}

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) ExtractText(ctx context.Context, data []byte) (string, error) {
	return s.text, s.err
}

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(nil, nil, DefaultRules())
}

func TestAnalyzePlainTextClassifiesLabResult(t *testing.T) {
	a := newTestAnalyzer()
	text := "Laboratory report. Specimen received intact. Hemoglobin 13.2, within reference range. Serum sodium normal."

	content := a.Analyze(context.Background(), []byte(text), "text/plain", "results.txt", nil)
	if content.Analysis.DocumentType != "lab_result" {
		t.Fatalf("type = %q, want lab_result", content.Analysis.DocumentType)
	}
	if content.Text == "" {
		t.Fatal("extracted text missing")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := newTestAnalyzer()
	data := []byte("MRI of the brain with contrast. Radiologist impression: unremarkable study.")

	first := a.Analyze(context.Background(), data, "text/plain", "scan.txt", nil)
	second := a.Analyze(context.Background(), data, "text/plain", "scan.txt", nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("analysis not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestClassifyFilenameBonus(t *testing.T) {
	a := newTestAnalyzer()
	// Text alone is ambiguous; the filename keyword must tip the result.
	content := a.Analyze(context.Background(), []byte("Patient signature on file."), "text/plain", "consent_form.pdf.txt", nil)
	if content.Analysis.DocumentType != "consent" {
		t.Fatalf("type = %q, want consent", content.Analysis.DocumentType)
	}
}

func TestClassifyNoSignalIsOther(t *testing.T) {
	a := newTestAnalyzer()
	content := a.Analyze(context.Background(), []byte("lorem ipsum dolor sit amet"), "text/plain", "notes.txt", nil)
	if content.Analysis.DocumentType != "other" {
		t.Fatalf("type = %q, want other", content.Analysis.DocumentType)
	}
	if content.Analysis.Confidence != 0.4 {
		t.Fatalf("confidence = %v, want floor 0.4", content.Analysis.Confidence)
	}
}

func TestPDFExtractionUsed(t *testing.T) {
	a := NewAnalyzer(stubPDF{text: "Discharge summary. Hospital course uneventful. Follow-up in two weeks."}, nil, DefaultRules())
	content := a.Analyze(context.Background(), []byte("%PDF"), "application/pdf", "summary.pdf", nil)
	if content.Analysis.DocumentType != "discharge_summary" {
		t.Fatalf("type = %q, want discharge_summary", content.Analysis.DocumentType)
	}
}

func TestExtractionFailureFallsBackToFilename(t *testing.T) {
	a := NewAnalyzer(stubPDF{err: errors.New("corrupt xref")}, nil, DefaultRules())
	content := a.Analyze(context.Background(), []byte("%PDF"), "application/pdf", "pathology_slide_notes.pdf", nil)
	if content.Analysis.DocumentType != "pathology" {
		t.Fatalf("type = %q, want pathology from filename", content.Analysis.DocumentType)
	}
	if content.Analysis.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", content.Analysis.Confidence)
	}
	if content.Text != "" {
		t.Fatal("no text should survive a failed extraction")
	}
}

func TestNoOCRFallsBackWithLowConfidence(t *testing.T) {
	a := newTestAnalyzer()
	content := a.Analyze(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg", "IMG_2041.jpg", nil)
	if content.Analysis.DocumentType != "other" {
		t.Fatalf("type = %q, want other", content.Analysis.DocumentType)
	}
	if content.Analysis.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", content.Analysis.Confidence)
	}
}

func TestOCRTextClassified(t *testing.T) {
	a := NewAnalyzer(nil, stubOCR{text: "Prescription: amoxicillin 500mg tablet, dosage twice daily, 2 refills."}, DefaultRules())
	content := a.Analyze(context.Background(), []byte{0xFF, 0xD8}, "image/png", "photo.png", nil)
	if content.Analysis.DocumentType != "prescription" {
		t.Fatalf("type = %q, want prescription", content.Analysis.DocumentType)
	}
}

func TestSuggestProcedureVerbatimNameWins(t *testing.T) {
	a := newTestAnalyzer()
	candidates := map[int64]string{
		5: "MEG / Resting State",
		6: "MRI Brain",
	}
	text := "Performed meg / resting state recording. mri mentioned once."

	content := a.Analyze(context.Background(), []byte(text), "text/plain", "doc.txt", candidates)
	if content.Analysis.SuggestedProcedureID == nil || *content.Analysis.SuggestedProcedureID != 5 {
		t.Fatalf("suggested = %v, want 5", content.Analysis.SuggestedProcedureID)
	}
}

func TestSuggestProcedureKeywordOccurrences(t *testing.T) {
	a := newTestAnalyzer()
	candidates := map[int64]string{
		5: "MRI Brain",
		6: "Ultrasound Abdomen",
	}
	text := "ultrasound study; repeat ultrasound advised; ultrasound images attached"

	content := a.Analyze(context.Background(), []byte(text), "text/plain", "doc.txt", candidates)
	if content.Analysis.SuggestedProcedureID == nil || *content.Analysis.SuggestedProcedureID != 6 {
		t.Fatalf("suggested = %v, want 6", content.Analysis.SuggestedProcedureID)
	}
}

func TestSuggestProcedureNoSignalIsNil(t *testing.T) {
	a := newTestAnalyzer()
	content := a.Analyze(context.Background(), []byte("general administrative note"), "text/plain", "doc.txt", map[int64]string{5: "MRI Brain"})
	if content.Analysis.SuggestedProcedureID != nil {
		t.Fatalf("suggested = %v, want nil", *content.Analysis.SuggestedProcedureID)
	}
}

func TestConfidenceBoostAndClamp(t *testing.T) {
	if c := confidence(4, 5); c != 1.0 {
		t.Fatalf("confidence(4,5) = %v, want clamp to 1.0", c)
	}
	if c := confidence(1, 5); c != 0.4 {
		t.Fatalf("confidence(1,5) = %v, want floor 0.4", c)
	}
	if c := confidence(3, 5); c != 0.6 {
		t.Fatalf("confidence(3,5) = %v, want 0.6", c)
	}
}

func TestDescribePicksScoredSentences(t *testing.T) {
	a := newTestAnalyzer()
	text := "Header line. Impression: mild abnormality in left temporal region. Unrelated filler sentence here. Conclusion: findings discussed with care team."

	content := a.Analyze(context.Background(), []byte("report examination "+text), "text/plain", "report.txt", nil)
	desc := content.Analysis.Description
	if !strings.Contains(desc, "Impression") {
		t.Fatalf("description missing impression sentence: %q", desc)
	}
	if len(desc) > descriptionCap {
		t.Fatalf("description over cap: %d chars", len(desc))
	}
}

func TestExcerptBreaksAtBoundary(t *testing.T) {
	long := strings.Repeat("word ", 60) + "ending. " + strings.Repeat("tail ", 40)
	got := excerpt(long)
	if len(got) > excerptCap+3 {
		t.Fatalf("excerpt too long: %d", len(got))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatal("excerpt has trailing space")
	}
}

func TestExcerptCutsOnRuneBoundary(t *testing.T) {
	// 100 three-byte runes, no spaces or sentence ends, so the cut
	// cannot fall back to a word or sentence break.
	got := excerpt(strings.Repeat("日", 100))
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt %q is not valid UTF-8", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("excerpt %q missing ellipsis", got)
	}
}

func TestFindingsExtracted(t *testing.T) {
	a := newTestAnalyzer()
	text := "Routine header. Scan demonstrates focal slowing. No evidence of epileptiform discharge elsewhere. Weather was fine."

	content := a.Analyze(context.Background(), []byte(text), "text/plain", "doc.txt", nil)
	if len(content.Analysis.Findings) != 2 {
		t.Fatalf("findings = %v, want 2 entries", content.Analysis.Findings)
	}
}

package report

import (
	"strings"
	"testing"

	"github.com/megcare/platform/pkg/common/models"
)

func structuredInput() Input {
	in := withCompletedProcedure(withSymptoms(baseInput()))
	in.Documents = []models.Document{{ID: 50, OriginalFilename: "eeg_summary.txt"}}
	in.Contents = map[int64]models.DocumentContent{
		50: {
			Text: "Line one header\nAcquisition used a 306 channel system\nSampling at 1000 Hz\nFilter settings nominal\nPatient tolerated study well\nEnd of record",
			Analysis: models.DocumentAnalysis{
				DocumentType: "report",
				Summary:      "Routine MEG acquisition completed.",
			},
		},
	}
	return in
}

func TestAssembleFromStructureContentTypes(t *testing.T) {
	structure := Structure{
		ReportName: "Custom MEG Report",
		Sections: []StructureSection{
			{Title: "History", ContentType: "symptoms_and_history"},
			{Title: "Procedures", ContentType: "procedure_list"},
			{Title: "Procedure Findings", ContentType: "procedure_findings"},
			{Title: "Documents", ContentType: "document_summaries"},
			{Title: "Conclusions", ContentType: "conclusions"},
		},
	}

	out := AssembleFromStructure(structuredInput(), structure)
	if out.Title != "Custom MEG Report" {
		t.Fatalf("title = %q", out.Title)
	}
	if len(out.Sections) != 5 {
		t.Fatalf("sections = %d", len(out.Sections))
	}
	if !sectionContains(&out.Sections[0], "episodic loss of awareness") {
		t.Fatal("history section missing symptoms")
	}
	if out.Sections[1].Blocks[0].Kind != BlockList {
		t.Fatal("procedure list section should hold a list block")
	}
	if !sectionContains(&out.Sections[2], "was completed") {
		t.Fatal("procedure findings missing completion line")
	}
	if !sectionContains(&out.Sections[3], "Routine MEG acquisition completed.") {
		t.Fatal("document summaries missing analysis summary")
	}
}

func TestAssembleFromStructureUnknownContentType(t *testing.T) {
	structure := Structure{Sections: []StructureSection{{Title: "Billing Codes", ContentType: "billing"}}}
	out := AssembleFromStructure(structuredInput(), structure)
	if len(out.Sections[0].Blocks) != 1 {
		t.Fatal("unknown content type must still produce a paragraph")
	}
}

func TestSubsectionKeywordMatching(t *testing.T) {
	structure := Structure{
		Sections: []StructureSection{{
			Title:       "Technique",
			ContentType: "procedure_list",
			Subsections: []StructureSubsection{{Title: "Acquisition", Keywords: []string{"sampling"}}},
		}},
	}

	out := AssembleFromStructure(structuredInput(), structure)
	sub := out.Sections[0].Subsections[0]
	if len(sub.Blocks) != 1 {
		t.Fatalf("blocks = %d", len(sub.Blocks))
	}
	// Snippet carries two lines of context either side of the hit.
	text := sub.Blocks[0].Text
	for _, want := range []string{"Acquisition used a 306 channel system", "Sampling at 1000 Hz", "Patient tolerated study well"} {
		if !strings.Contains(text, want) {
			t.Fatalf("snippet missing %q: %q", want, text)
		}
	}
}

func TestSubsectionSnippetCap(t *testing.T) {
	in := structuredInput()
	in.Contents[50] = models.DocumentContent{
		Text: "alpha one\nfiller\nfiller\nfiller\nfiller\nalpha two\nfiller\nfiller\nfiller\nfiller\nalpha three\nfiller\nfiller\nfiller\nfiller\nalpha four",
	}
	structure := Structure{
		Sections: []StructureSection{{
			Title:       "Mentions",
			Subsections: []StructureSubsection{{Title: "Alpha", Keywords: []string{"alpha"}}},
		}},
	}

	out := AssembleFromStructure(in, structure)
	if got := len(out.Sections[0].Subsections[0].Blocks); got != maxSubsectionSnippets {
		t.Fatalf("snippets = %d, want %d", got, maxSubsectionSnippets)
	}
}

func TestSubsectionGenericFallbacks(t *testing.T) {
	structure := Structure{
		Sections: []StructureSection{{
			Title: "Methods",
			Subsections: []StructureSubsection{
				{Title: "Equipment Used", Keywords: []string{"zzzznotpresent"}},
				{Title: "Methodology", Keywords: []string{"zzzznotpresent"}},
				{Title: "Patient Demographics", Keywords: []string{"zzzznotpresent"}},
			},
		}},
	}

	out := AssembleFromStructure(structuredInput(), structure)
	subs := out.Sections[0].Subsections
	if !strings.Contains(subs[0].Blocks[0].Text, "MEG system") {
		t.Fatalf("equipment fallback = %q", subs[0].Blocks[0].Text)
	}
	if !strings.Contains(subs[1].Blocks[0].Text, "protocols") {
		t.Fatalf("methodology fallback = %q", subs[1].Blocks[0].Text)
	}
	if !strings.Contains(subs[2].Blocks[0].Text, "demographics") {
		t.Fatalf("demographics fallback = %q", subs[2].Blocks[0].Text)
	}
}

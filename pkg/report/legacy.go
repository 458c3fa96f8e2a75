package report

import (
	"fmt"
	"strings"

	"github.com/megcare/platform/pkg/common/models"
)

// Structure is an AI-proposed report outline. Section content is never
// taken from the AI verbatim; each section names a content_type and the
// engine synthesizes the text locally from case data.
type Structure struct {
	ReportName string             `json:"report_name"`
	ReportType string             `json:"report_type"`
	Sections   []StructureSection `json:"sections"`
	Formatting map[string]string  `json:"formatting,omitempty"`
}

type StructureSection struct {
	Title       string                `json:"title"`
	Required    bool                  `json:"required"`
	ContentType string                `json:"content_type"`
	Subsections []StructureSubsection `json:"subsections,omitempty"`
}

type StructureSubsection struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords,omitempty"`
}

const (
	maxSubsectionSnippets = 3
	snippetContextLines   = 2
)

// AssembleFromStructure renders an AI-proposed outline against real case
// data. Unknown content types degrade to a generic paragraph, so a
// malformed outline still yields a complete report.
func AssembleFromStructure(in Input, structure Structure) Assembled {
	title := structure.ReportName
	if title == "" {
		title = defaultReportTitle
	}

	out := Assembled{Title: title, Variables: templateVariables(in)}
	for _, spec := range structure.Sections {
		section := Section{Title: spec.Title, Required: spec.Required}
		section.Blocks = buildSectionContent(in, spec.ContentType, spec.Title)
		for _, sub := range spec.Subsections {
			section.Subsections = append(section.Subsections, buildSubsection(in, sub))
		}
		out.Sections = append(out.Sections, section)
	}
	return out
}

func buildSectionContent(in Input, contentType, title string) []Block {
	switch contentType {
	case "symptoms_and_history":
		return symptomsAndHistory(in)
	case "procedure_list":
		return procedureListContent(in)
	case "procedure_findings":
		return procedureFindings(in)
	case "document_summaries":
		return documentSummaries(in)
	case "conclusions":
		return conclusions(in)
	default:
		return []Block{paragraphBlock(fmt.Sprintf("This section covers %s.", strings.ToLower(title)))}
	}
}

func symptomsAndHistory(in Input) []Block {
	var blocks []Block
	if in.Case.Symptoms != "" {
		blocks = append(blocks, paragraphBlock("Presenting symptoms: "+in.Case.Symptoms))
	}
	if in.Patient.MedicalHistory != "" {
		blocks = append(blocks, paragraphBlocks(in.Patient.MedicalHistory)...)
	}
	if len(blocks) == 0 {
		blocks = append(blocks, paragraphBlock("No relevant history has been recorded for this case."))
	}
	return blocks
}

func procedureListContent(in Input) []Block {
	if items := procedureDisplayList(in.Procedures); len(items) > 0 {
		return []Block{listBlock(items)}
	}
	return []Block{paragraphBlock("No procedures have been linked to this case.")}
}

func procedureFindings(in Input) []Block {
	var blocks []Block
	for _, link := range in.Procedures {
		if link.Status != models.ProcedureStatusCompleted || link.Procedure == nil {
			continue
		}
		text := link.Procedure.DisplayName() + " was completed."
		if link.Notes != "" {
			text += " " + link.Notes
		}
		blocks = append(blocks, paragraphBlock(text))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, paragraphBlock("No completed procedures to report on."))
	}
	return blocks
}

func documentSummaries(in Input) []Block {
	var blocks []Block
	for _, doc := range in.Documents {
		content, ok := in.Contents[doc.ID]
		if !ok || content.Analysis.Summary == "" {
			continue
		}
		blocks = append(blocks, paragraphBlock(doc.OriginalFilename+": "+content.Analysis.Summary))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, paragraphBlock("No supporting documents have been analyzed."))
	}
	return blocks
}

func conclusions(in Input) []Block {
	return []Block{paragraphBlock("Findings will be correlated with the clinical presentation. " + impressionsBoilerplate)}
}

// buildSubsection fills a subsection by keyword search across the full
// text of every document: snippets of context lines around each hit,
// capped at maxSubsectionSnippets. With no hits it falls back to a
// generic per-title paragraph.
func buildSubsection(in Input, sub StructureSubsection) Section {
	keywords := sub.Keywords
	if len(keywords) == 0 {
		keywords = titleKeywords(sub.Title)
	}

	var blocks []Block
	for _, snippet := range matchSnippets(in, keywords) {
		blocks = append(blocks, paragraphBlock(snippet))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, paragraphBlock(genericSubsectionText(sub.Title)))
	}
	return Section{Title: sub.Title, Blocks: blocks}
}

func titleKeywords(title string) []string {
	var out []string
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if len(word) > 3 {
			out = append(out, word)
		}
	}
	return out
}

func matchSnippets(in Input, keywords []string) []string {
	var snippets []string
	seen := map[string]bool{}
	for _, doc := range in.Documents {
		content, ok := in.Contents[doc.ID]
		if !ok || content.Text == "" {
			continue
		}
		lines := strings.Split(content.Text, "\n")
		for i, line := range lines {
			if !lineMatches(line, keywords) {
				continue
			}
			start := i - snippetContextLines
			if start < 0 {
				start = 0
			}
			end := i + snippetContextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			snippet := strings.TrimSpace(strings.Join(lines[start:end], " "))
			if snippet == "" || seen[snippet] {
				continue
			}
			seen[snippet] = true
			snippets = append(snippets, snippet)
			if len(snippets) == maxSubsectionSnippets {
				return snippets
			}
		}
	}
	return snippets
}

func lineMatches(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func genericSubsectionText(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "equipment"):
		return "Recordings were acquired on the department's standard whole-head MEG system with simultaneous EEG where indicated."
	case strings.Contains(lower, "methodolog"):
		return "Standard departmental acquisition and analysis protocols were followed for this study."
	case strings.Contains(lower, "demographic"):
		return "Patient demographics are on file with the department and omitted here."
	default:
		return fmt.Sprintf("No additional information is available for %s.", strings.ToLower(title))
	}
}

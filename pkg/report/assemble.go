package report

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/megcare/platform/pkg/common/models"
)

// Section titles of the standardized MEG report.
const (
	SectionPatientHistory = "Patient History"
	SectionMEGRecordings  = "MEG Recordings"
	SectionTechnical      = "Technical Description of Procedures"
	SectionFindings       = "Findings"
	SectionReferenceDocs  = "Reference Documents"
	SectionImpressions    = "Impressions"
)

const (
	defaultReportTitle     = "MEG Clinical Report"
	megRecordingsFallback  = "Magnetoencephalography recordings were acquired for this case."
	findingsPlaceholder    = "No findings have been recorded for this case yet."
	impressionsBoilerplate = "Clinical interpretation is pending final review by the undersigned."
)

// imageMIMETypes is the allowlist for the Reference Documents section.
var imageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/tiff": true,
	"image/bmp":  true,
}

// Assignment pairs an assignment row with the receiving user, whose role
// decides whether the Impressions section appears.
type Assignment struct {
	models.CaseAssignment
	AssignedTo models.User
}

// Input is a fully hydrated case plus everything the analysis pipeline
// produced for its documents. Contents and ImageData are keyed by
// document id.
type Input struct {
	Case        models.Case
	Patient     models.Patient
	Department  *models.Department
	Sedation    *models.Sedation
	Procedures  []models.CasesExamsProcedure
	Documents   []models.Document
	Assignments []Assignment
	Contents    map[int64]models.DocumentContent
	ImageData   map[int64][]byte
}

// Assemble builds the standardized MEG report. Section presence is a
// deterministic function of the input: optional sections are omitted
// entirely rather than rendered empty.
func Assemble(in Input) Assembled {
	out := Assembled{
		Title:     reportTitle(in),
		Variables: templateVariables(in),
	}

	if section, ok := patientHistorySection(in); ok {
		out.Sections = append(out.Sections, section)
	}
	out.Sections = append(out.Sections, megRecordingsSection(in))
	if section, ok := technicalSection(in); ok {
		out.Sections = append(out.Sections, section)
	}
	out.Sections = append(out.Sections, findingsSection(in))
	if section, ok := referenceDocumentsSection(in); ok {
		out.Sections = append(out.Sections, section)
	}
	if section, ok := impressionsSection(in); ok {
		out.Sections = append(out.Sections, section)
	}
	return out
}

func reportTitle(in Input) string {
	for _, doc := range in.Documents {
		if content, ok := in.Contents[doc.ID]; ok && content.Analysis.ReportType != "" {
			return content.Analysis.ReportType
		}
	}
	return defaultReportTitle
}

func templateVariables(in Input) map[string]string {
	vars := map[string]string{
		"patient_name": in.Patient.FullName(),
		"patient_mrn":  in.Patient.MRN,
		"priority":     in.Case.Priority,
		"case_status":  in.Case.Status,
	}
	if in.Patient.Gender != "" {
		vars["patient_gender"] = in.Patient.Gender
	}
	if in.Patient.DateOfBirth != nil {
		vars["patient_dob"] = in.Patient.DateOfBirth.Format("2006-01-02")
	}
	if in.Case.Date != nil {
		vars["case_date"] = in.Case.Date.Format("2006-01-02")
	}
	if in.Department != nil {
		vars["department"] = in.Department.Name
	}
	return vars
}

// patientHistorySection appears only when there is history to report.
func patientHistorySection(in Input) (Section, bool) {
	if in.Case.Symptoms == "" && in.Patient.MedicalHistory == "" && in.Patient.Medications == "" {
		return Section{}, false
	}

	section := Section{Title: SectionPatientHistory}
	if in.Case.Symptoms != "" {
		section.Blocks = append(section.Blocks, paragraphBlock("Presenting symptoms: "+in.Case.Symptoms))
	}
	if in.Patient.MedicalHistory != "" {
		section.Blocks = append(section.Blocks, paragraphBlocks(in.Patient.MedicalHistory)...)
	}
	if in.Patient.Medications != "" {
		section.Blocks = append(section.Blocks, paragraphBlock("Current medications: "+in.Patient.Medications))
	}
	return section, true
}

func megRecordingsSection(in Input) Section {
	section := Section{Title: SectionMEGRecordings, Required: true}

	if in.Case.Notes != "" {
		section.Blocks = append(section.Blocks, paragraphBlocks(in.Case.Notes)...)
	} else {
		section.Blocks = append(section.Blocks, paragraphBlock(megRecordingsFallback))
	}

	if in.Sedation != nil {
		section.Blocks = append(section.Blocks, paragraphBlock(fmt.Sprintf("The study was performed with sedation (%s).", in.Sedation.Name)))
	} else {
		section.Blocks = append(section.Blocks, paragraphBlock("The study was performed without sedation."))
	}

	if items := procedureDisplayList(in.Procedures); len(items) > 0 {
		section.Blocks = append(section.Blocks, listBlock(items))
	}
	return section
}

func procedureDisplayList(procedures []models.CasesExamsProcedure) []string {
	var items []string
	for _, link := range procedures {
		if link.Procedure != nil {
			items = append(items, link.Procedure.DisplayName())
		}
	}
	return items
}

// technicalSection appears only when at least one linked procedure is
// completed; each completed procedure becomes a subsection.
func technicalSection(in Input) (Section, bool) {
	var subs []Section
	for _, link := range in.Procedures {
		if link.Status != models.ProcedureStatusCompleted || link.Procedure == nil {
			continue
		}
		sub := Section{Title: link.Procedure.DisplayName()}
		if link.Procedure.Description != "" {
			sub.Blocks = append(sub.Blocks, paragraphBlocks(link.Procedure.Description)...)
		}
		if link.Notes != "" {
			sub.Blocks = append(sub.Blocks, paragraphBlock("Notes: "+link.Notes))
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return Section{}, false
	}
	return Section{Title: SectionTechnical, Subsections: subs}, true
}

// findingsSection aggregates analysis output across every document; with
// nothing to aggregate it carries the fixed placeholder sentence.
func findingsSection(in Input) Section {
	section := Section{Title: SectionFindings, Required: true}

	for _, doc := range in.Documents {
		content, ok := in.Contents[doc.ID]
		if !ok {
			continue
		}
		if content.Analysis.Summary != "" {
			section.Blocks = append(section.Blocks, paragraphBlock(content.Analysis.Summary))
		}
		if len(content.Analysis.Findings) > 0 {
			section.Blocks = append(section.Blocks, listBlock(content.Analysis.Findings))
		}
	}

	if len(section.Blocks) == 0 {
		section.Blocks = append(section.Blocks, paragraphBlock(findingsPlaceholder))
	}
	return section
}

// referenceDocumentsSection embeds image documents inline, one block per
// image, capped at display width and flagged to avoid page breaks.
func referenceDocumentsSection(in Input) (Section, bool) {
	var blocks []Block
	for _, doc := range in.Documents {
		if !imageMIMETypes[doc.FileType] {
			continue
		}
		data, ok := in.ImageData[doc.ID]
		if !ok {
			continue
		}
		blocks = append(blocks, Block{Kind: BlockImage, Image: &ImageBlock{
			Base64:         base64.StdEncoding.EncodeToString(data),
			MIMEType:       doc.FileType,
			Caption:        imageCaption(doc, in.Procedures),
			MaxWidthPx:     imageMaxWidthPx,
			AvoidPageBreak: true,
		}})
	}
	if len(blocks) == 0 {
		return Section{}, false
	}
	return Section{Title: SectionReferenceDocs, Blocks: blocks}, true
}

func imageCaption(doc models.Document, procedures []models.CasesExamsProcedure) string {
	if doc.CasesExamsProcedureID != nil {
		for _, link := range procedures {
			if link.ID == *doc.CasesExamsProcedureID && link.Procedure != nil {
				return link.Procedure.DisplayName()
			}
		}
	}
	return doc.OriginalFilename
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// impressionsSection appears only when the case has been handed to a
// doctor or scientist; that person's signature block closes the report.
func impressionsSection(in Input) (Section, bool) {
	for _, assignment := range in.Assignments {
		role := assignment.AssignedTo.Role
		if role != models.RoleDoctor && role != models.RoleScientist {
			continue
		}
		return Section{
			Title: SectionImpressions,
			Blocks: []Block{
				paragraphBlock(impressionsBoilerplate),
				paragraphBlock(fmt.Sprintf("%s (%s)", assignment.AssignedTo.Name, capitalize(string(role)))),
			},
		}, true
	}
	return Section{}, false
}

package docanalysis

import (
	"context"
	"sort"
	"strings"

	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
)

// Analyzer turns an uploaded document into extracted text plus a
// classification, procedure suggestion and short description. It never
// fails outright: when extraction is impossible it degrades to filename
// heuristics with a fixed lower confidence.
type Analyzer struct {
	pdf   PDFExtractor
	ocr   OCRClient
	rules Rules
}

func NewAnalyzer(pdf PDFExtractor, ocr OCRClient, rules Rules) *Analyzer {
	if len(rules.Types) == 0 {
		rules = DefaultRules()
	}
	return &Analyzer{pdf: pdf, ocr: ocr, rules: rules}
}

// Analyze processes one document. candidates maps procedure id to display
// name for the case the document belongs to.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, mimeType, filename string, candidates map[int64]string) models.DocumentContent {
	text, err := a.extract(ctx, data, mimeType)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil && err != errNoExtractor {
			logger.Log.WithError(err).WithField("mime_type", mimeType).Error("document text extraction failed")
		}
		return models.DocumentContent{Analysis: a.classifyByFilename(filename)}
	}

	docType, matched, total := a.classify(text, filename)
	analysis := models.DocumentAnalysis{
		DocumentType:         docType,
		ReportType:           a.reportType(docType, text),
		Confidence:           confidence(matched, total),
		Findings:             a.findings(text),
		SuggestedProcedureID: a.suggestProcedure(text, candidates),
	}
	analysis.Description = a.describe(docType, text)
	analysis.Summary = analysis.Description

	return models.DocumentContent{Text: text, Analysis: analysis}
}

// classify scores every type bucket by keyword occurrences in the text,
// with a +5 bonus per keyword also present in the filename, and returns
// the argmax plus the winner's distinct-match count and keyword total.
func (a *Analyzer) classify(text, filename string) (string, int, int) {
	textLower := strings.ToLower(text)
	nameLower := strings.ToLower(filename)

	bestType, bestScore, bestMatched, bestTotal := "other", 0, 0, 0
	for _, bucket := range a.bucketNames() {
		score, matched := 0, 0
		keywords := a.rules.Types[bucket]
		for _, kw := range keywords {
			hits := strings.Count(textLower, kw)
			if strings.Contains(nameLower, kw) {
				hits += 5
			}
			if hits > 0 {
				matched++
			}
			score += hits
		}
		if score > bestScore {
			bestType, bestScore, bestMatched, bestTotal = bucket, score, matched, len(keywords)
		}
	}
	return bestType, bestMatched, bestTotal
}

// classifyByFilename is the degraded path when no text could be extracted.
func (a *Analyzer) classifyByFilename(filename string) models.DocumentAnalysis {
	nameLower := strings.ToLower(filename)
	for _, bucket := range a.bucketNames() {
		for _, kw := range a.rules.Types[bucket] {
			if strings.Contains(nameLower, kw) {
				return models.DocumentAnalysis{DocumentType: bucket, Confidence: 0.7}
			}
		}
	}
	return models.DocumentAnalysis{DocumentType: "other", Confidence: 0.5}
}

// bucketNames returns the type buckets in a stable order so ties break
// deterministically.
func (a *Analyzer) bucketNames() []string {
	names := make([]string, 0, len(a.rules.Types))
	for name := range a.rules.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func confidence(matched, total int) float64 {
	if total == 0 {
		return 0.4
	}
	c := float64(matched) / float64(total)
	if matched > 3 {
		c += 0.2
	}
	if c < 0.4 {
		c = 0.4
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// suggestProcedure picks the candidate whose name best matches the text:
// +10 for a verbatim display-name hit, +2 per occurrence of each modality
// keyword shared by the procedure name and the text.
func (a *Analyzer) suggestProcedure(text string, candidates map[int64]string) *int64 {
	textLower := strings.ToLower(text)

	var bestID int64
	bestScore := 0
	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		nameLower := strings.ToLower(candidates[id])
		score := 0
		if nameLower != "" && strings.Contains(textLower, nameLower) {
			score += 10
		}
		for _, kw := range a.rules.ProcedureKeywords {
			if strings.Contains(nameLower, kw) {
				score += 2 * strings.Count(textLower, kw)
			}
		}
		if score > bestScore {
			bestID, bestScore = id, score
		}
	}

	if bestScore == 0 {
		return nil
	}
	return &bestID
}

// reportType looks for a short title line near the top of report-like
// documents, e.g. "MEG Clinical Report".
func (a *Analyzer) reportType(docType, text string) string {
	if docType != "report" && docType != "radiology" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 80 {
			continue
		}
		if strings.Contains(strings.ToLower(line), "report") {
			return line
		}
	}
	return ""
}

func (a *Analyzer) findings(text string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, phrase := range a.rules.FindingPhrases {
			if strings.Contains(lower, phrase) {
				out = append(out, sentence)
				break
			}
		}
		if len(out) == 5 {
			break
		}
	}
	return out
}

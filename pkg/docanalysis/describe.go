package docanalysis

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	descriptionCap = 300
	excerptCap     = 200
)

// describe builds a short human description of the document: the most
// phrase-dense sentences for the detected type, or a leading excerpt when
// no sentence carries signal.
func (a *Analyzer) describe(docType, text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return excerpt(text)
	}

	phrases := a.rules.Phrases[docType]
	type scored struct {
		index int
		score int
	}
	var hits []scored
	for i, sentence := range sentences {
		lower := strings.ToLower(sentence)
		score := 0
		for _, phrase := range phrases {
			score += strings.Count(lower, phrase)
		}
		if score > 0 {
			hits = append(hits, scored{index: i, score: score})
		}
	}

	var picked []string
	if len(hits) > 0 {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
		if len(hits) > 3 {
			hits = hits[:3]
		}
		// Keep document order for readability.
		sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })
		for _, h := range hits {
			picked = append(picked, sentences[h.index])
		}
	} else {
		picked = sentences
		if len(picked) > 2 {
			picked = picked[:2]
		}
	}

	desc := strings.Join(picked, " ")
	if len(desc) > descriptionCap {
		desc = excerpt(desc)
	}
	if desc == "" {
		desc = excerpt(text)
	}
	return desc
}

// excerpt truncates text to excerptCap characters, breaking at a sentence
// end if one falls in range, else at a word boundary.
func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= excerptCap {
		return text
	}
	end := excerptCap
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if i := strings.LastIndexAny(cut, ".!?"); i > excerptCap/2 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// splitSentences breaks text on sentence-ending punctuation. Good enough
// for clinical prose; abbreviations may over-split but downstream scoring
// tolerates that.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || runes[i+1] == ' ' {
				if s := strings.TrimSpace(current.String()); len(s) > 1 {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) > 1 {
		sentences = append(sentences, s)
	}
	return sentences
}

package export

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/megcare/platform/pkg/report"
)

// renderRTF produces a minimal RTF 1.5 document. Embedded images are
// replaced by their captions; RTF output is meant for text interchange,
// not print fidelity.
func renderRTF(assembled report.Assembled) string {
	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Times New Roman;}}` + "\n")
	fmt.Fprintf(&b, `\f0\fs32\b %s\b0\fs24\par\par`+"\n", escapeRTF(assembled.Title))

	for _, section := range assembled.Sections {
		writeRTFSection(&b, section, 28)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeRTFSection(b *strings.Builder, s report.Section, headingSize int) {
	if headingSize < 24 {
		headingSize = 24
	}
	fmt.Fprintf(b, `\fs%d\b %s\b0\fs24\par`+"\n", headingSize, escapeRTF(s.Title))

	for _, block := range s.Blocks {
		switch block.Kind {
		case report.BlockParagraph:
			fmt.Fprintf(b, `%s\par\par`+"\n", escapeRTF(block.Text))
		case report.BlockList:
			for _, item := range block.Items {
				fmt.Fprintf(b, `\bullet  %s\par`+"\n", escapeRTF(item))
			}
			b.WriteString(`\par` + "\n")
		case report.BlockImage:
			caption := "embedded image"
			if block.Image != nil && block.Image.Caption != "" {
				caption = block.Image.Caption
			}
			fmt.Fprintf(b, `\i [Image: %s]\i0\par\par`+"\n", escapeRTF(caption))
		}
	}
	for _, sub := range s.Subsections {
		writeRTFSection(b, sub, headingSize-2)
	}
}

// escapeRTF escapes control characters and forces non-ASCII runes to
// unicode escapes. \uN takes a signed 16-bit value, so code points above
// U+7FFF wrap negative and astral runes become a surrogate pair.
func escapeRTF(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\line `)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%d?\u%d?`, int16(hi), int16(lo))
		case r > 127:
			fmt.Fprintf(&b, `\u%d?`, int16(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

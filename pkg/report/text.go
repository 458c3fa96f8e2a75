package report

import "strings"

// paragraphs splits multi-paragraph text on blank-line boundaries and
// collapses single newlines inside a paragraph to spaces. The split must
// stay exactly this shape: renderers rely on one string per paragraph.
func paragraphs(text string) []string {
	var out []string
	for _, chunk := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		lines := strings.Split(chunk, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		joined := strings.TrimSpace(strings.Join(lines, " "))
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

// paragraphBlocks converts text into one paragraph block per paragraph.
func paragraphBlocks(text string) []Block {
	paras := paragraphs(text)
	blocks := make([]Block, 0, len(paras))
	for _, p := range paras {
		blocks = append(blocks, paragraphBlock(p))
	}
	return blocks
}

package report

import "strings"

// Block kinds for section content. Assembly emits structured blocks; the
// export renderers decide how each target format draws them.
const (
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockImage     = "image"
)

// imageMaxWidthPx caps the display width of embedded images; renderers
// preserve aspect ratio under it.
const imageMaxWidthPx = 700

type ImageBlock struct {
	Base64         string `json:"base64"`
	MIMEType       string `json:"mime_type"`
	Caption        string `json:"caption,omitempty"`
	MaxWidthPx     int    `json:"max_width_px"`
	AvoidPageBreak bool   `json:"avoid_page_break"`
}

type Block struct {
	Kind  string      `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Items []string    `json:"items,omitempty"`
	Image *ImageBlock `json:"image,omitempty"`
}

func paragraphBlock(text string) Block {
	return Block{Kind: BlockParagraph, Text: text}
}

func listBlock(items []string) Block {
	return Block{Kind: BlockList, Items: items}
}

type Section struct {
	Title       string    `json:"title"`
	Required    bool      `json:"required"`
	Blocks      []Block   `json:"blocks,omitempty"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Assembled is a complete report structure plus the flat template
// variables surrounding it (patient display fields, case fields).
type Assembled struct {
	Title     string            `json:"title"`
	Sections  []Section         `json:"sections"`
	Variables map[string]string `json:"variables,omitempty"`
}

// SectionTitles lists the section titles in order; section presence is a
// deterministic function of the input state.
func (a Assembled) SectionTitles() []string {
	titles := make([]string, 0, len(a.Sections))
	for _, s := range a.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

// FindSection returns the first section with the given title, or nil.
func (a Assembled) FindSection(title string) *Section {
	for i := range a.Sections {
		if a.Sections[i].Title == title {
			return &a.Sections[i]
		}
	}
	return nil
}

// PlainText flattens the assembled structure into readable text. It is the
// canonical content stored in report_data; the export pipeline produces
// the richer formats.
func (a Assembled) PlainText() string {
	var b strings.Builder
	if a.Title != "" {
		b.WriteString(a.Title + "\n\n")
	}
	for _, section := range a.Sections {
		writeSectionText(&b, section, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSectionText(b *strings.Builder, s Section, depth int) {
	marker := strings.Repeat("#", depth+1)
	b.WriteString(marker + " " + s.Title + "\n\n")
	for _, block := range s.Blocks {
		switch block.Kind {
		case BlockParagraph:
			b.WriteString(block.Text + "\n\n")
		case BlockList:
			for _, item := range block.Items {
				b.WriteString("- " + item + "\n")
			}
			b.WriteString("\n")
		case BlockImage:
			caption := block.Image.Caption
			if caption == "" {
				caption = "embedded image"
			}
			b.WriteString("[Image: " + caption + "]\n\n")
		}
	}
	for _, sub := range s.Subsections {
		writeSectionText(b, sub, depth+1)
	}
}

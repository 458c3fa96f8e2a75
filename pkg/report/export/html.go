package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/megcare/platform/pkg/report"
)

// renderHTML draws the block structure as a standalone document. Images
// are wrapped in single-cell tables so print engines keep them on one
// page.
func renderHTML(assembled report.Assembled) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(assembled.Title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(assembled.Title))

	for _, section := range assembled.Sections {
		writeHTMLSection(&b, section, 2)
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeHTMLSection(b *strings.Builder, s report.Section, level int) {
	if level > 6 {
		level = 6
	}
	fmt.Fprintf(b, "<h%d>%s</h%d>\n", level, html.EscapeString(s.Title), level)

	for _, block := range s.Blocks {
		switch block.Kind {
		case report.BlockParagraph:
			fmt.Fprintf(b, "<p>%s</p>\n", html.EscapeString(block.Text))
		case report.BlockList:
			b.WriteString("<ul>\n")
			for _, item := range block.Items {
				fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(item))
			}
			b.WriteString("</ul>\n")
		case report.BlockImage:
			writeHTMLImage(b, block.Image)
		}
	}
	for _, sub := range s.Subsections {
		writeHTMLSection(b, sub, level+1)
	}
}

func writeHTMLImage(b *strings.Builder, img *report.ImageBlock) {
	if img == nil {
		return
	}
	wrap := ""
	if img.AvoidPageBreak {
		wrap = " style=\"page-break-inside:avoid\""
	}
	fmt.Fprintf(b, "<table%s><tr><td>\n", wrap)
	fmt.Fprintf(b, "<img src=\"data:%s;base64,%s\" style=\"max-width:%dpx;height:auto\" alt=\"%s\">\n",
		img.MIMEType, img.Base64, img.MaxWidthPx, html.EscapeString(img.Caption))
	if img.Caption != "" {
		fmt.Fprintf(b, "<div>%s</div>\n", html.EscapeString(img.Caption))
	}
	b.WriteString("</td></tr></table>\n")
}

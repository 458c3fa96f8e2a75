package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/megcare/platform/pkg/report"
)

// Supported output formats.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatRTF  = "rtf"
	FormatHTML = "html"
	FormatTXT  = "txt"
)

var ErrUnsupportedFormat = fmt.Errorf("unsupported export format")

// Artifact is a rendered report ready to hand to the download layer.
type Artifact struct {
	Content  []byte
	Filename string
	MIMEType string
}

// Renderer produces the binary formats the pipeline cannot build natively.
// Implementations wrap an external PDF/DOCX library or service.
type Renderer interface {
	Render(ctx context.Context, format string, assembled report.Assembled) ([]byte, error)
}

type Exporter struct {
	renderer Renderer
	now      func() time.Time
}

func NewExporter(renderer Renderer) *Exporter {
	return &Exporter{renderer: renderer, now: time.Now}
}

// Export serializes an assembled report. HTML, TXT and RTF render
// natively from the block structure; PDF and DOCX go through the
// configured Renderer and fail cleanly when none is configured.
func (e *Exporter) Export(ctx context.Context, assembled report.Assembled, format string) (Artifact, error) {
	var content []byte
	var mimeType string

	switch format {
	case FormatHTML:
		content = []byte(renderHTML(assembled))
		mimeType = "text/html"
	case FormatTXT:
		content = []byte(assembled.PlainText())
		mimeType = "text/plain"
	case FormatRTF:
		content = []byte(renderRTF(assembled))
		mimeType = "application/rtf"
	case FormatPDF, FormatDOCX:
		if e.renderer == nil {
			return Artifact{}, fmt.Errorf("%w: no renderer configured for %s", ErrUnsupportedFormat, format)
		}
		rendered, err := e.renderer.Render(ctx, format, assembled)
		if err != nil {
			return Artifact{}, err
		}
		content = rendered
		if format == FormatPDF {
			mimeType = "application/pdf"
		} else {
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		}
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return Artifact{
		Content:  content,
		Filename: filename(assembled.Title, format, e.now()),
		MIMEType: mimeType,
	}, nil
}

// filename builds a safe name like meg_clinical_report_2026-08-30.pdf.
func filename(title, format string, at time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	if slug == "" {
		slug = "report"
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return fmt.Sprintf("%s_%s.%s", strings.Trim(b.String(), "_"), at.Format("2006-01-02"), format)
}

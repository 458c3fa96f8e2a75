package export

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/megcare/platform/pkg/report"
)

func sampleAssembled() report.Assembled {
	return report.Assembled{
		Title: "MEG Clinical Report",
		Sections: []report.Section{
			{
				Title: "MEG Recordings",
				Blocks: []report.Block{
					{Kind: report.BlockParagraph, Text: "Recordings were acquired without sedation."},
					{Kind: report.BlockList, Items: []string{"MEG / Resting / Spontaneous Recording"}},
				},
			},
			{
				Title: "Reference Documents",
				Blocks: []report.Block{
					{Kind: report.BlockImage, Image: &report.ImageBlock{
						Base64:         "aGVsbG8=",
						MIMEType:       "image/png",
						Caption:        "Dipole map",
						MaxWidthPx:     700,
						AvoidPageBreak: true,
					}},
				},
			},
		},
	}
}

type stubRenderer struct {
	content []byte
	err     error
	format  string
}

func (s *stubRenderer) Render(ctx context.Context, format string, assembled report.Assembled) ([]byte, error) {
	s.format = format
	return s.content, s.err
}

func TestExportHTML(t *testing.T) {
	artifact, err := NewExporter(nil).Export(context.Background(), sampleAssembled(), FormatHTML)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(artifact.Content)

	for _, want := range []string{
		"<h1>MEG Clinical Report</h1>",
		"<p>Recordings were acquired without sedation.</p>",
		"<li>MEG / Resting / Spontaneous Recording</li>",
		`data:image/png;base64,aGVsbG8=`,
		"max-width:700px",
		"page-break-inside:avoid",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if artifact.MIMEType != "text/html" {
		t.Fatalf("mime = %q", artifact.MIMEType)
	}
	if !strings.HasSuffix(artifact.Filename, ".html") || !strings.HasPrefix(artifact.Filename, "meg_clinical_report_") {
		t.Fatalf("filename = %q", artifact.Filename)
	}
}

func TestExportTXT(t *testing.T) {
	artifact, err := NewExporter(nil).Export(context.Background(), sampleAssembled(), FormatTXT)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(artifact.Content)
	if !strings.Contains(body, "# MEG Recordings") {
		t.Fatalf("txt missing section heading:\n%s", body)
	}
	if !strings.Contains(body, "[Image: Dipole map]") {
		t.Fatal("txt missing image placeholder")
	}
	if strings.Contains(body, "aGVsbG8=") {
		t.Fatal("txt must not embed base64 payloads")
	}
}

func TestExportRTF(t *testing.T) {
	artifact, err := NewExporter(nil).Export(context.Background(), sampleAssembled(), FormatRTF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(artifact.Content)
	if !strings.HasPrefix(body, `{\rtf1`) {
		t.Fatalf("not an rtf document: %q", body[:20])
	}
	if !strings.Contains(body, "MEG Recordings") {
		t.Fatal("rtf missing section title")
	}
	if artifact.MIMEType != "application/rtf" {
		t.Fatalf("mime = %q", artifact.MIMEType)
	}
}

func TestExportRTFEscaping(t *testing.T) {
	assembled := report.Assembled{
		Title: `Braces {and} \backslash`,
		Sections: []report.Section{{
			Title:  "S",
			Blocks: []report.Block{{Kind: report.BlockParagraph, Text: "naïve"}},
		}},
	}
	artifact, err := NewExporter(nil).Export(context.Background(), assembled, FormatRTF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(artifact.Content)
	if !strings.Contains(body, `\{and\}`) || !strings.Contains(body, `\\backslash`) {
		t.Fatalf("braces/backslash not escaped:\n%s", body)
	}
	if !strings.Contains(body, `\u239?`) {
		t.Fatal("non-ascii rune not escaped")
	}
}

func TestExportRTFSignedUnicodeEscapes(t *testing.T) {
	assembled := report.Assembled{
		Title: "Encoding",
		Sections: []report.Section{{
			Title:  "S",
			Blocks: []report.Block{{Kind: report.BlockParagraph, Text: "黑 and 𝄞"}},
		}},
	}
	artifact, err := NewExporter(nil).Export(context.Background(), assembled, FormatRTF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(artifact.Content)
	// U+9ED1 is above the signed 16-bit range and must wrap negative.
	if !strings.Contains(body, `\u-24879?`) {
		t.Fatalf("high BMP rune not wrapped to signed value:\n%s", body)
	}
	// U+1D11E must be written as a surrogate pair.
	if !strings.Contains(body, `\u-10188?\u-8930?`) {
		t.Fatalf("astral rune not emitted as surrogate pair:\n%s", body)
	}
}

func TestExportPDFUsesRenderer(t *testing.T) {
	renderer := &stubRenderer{content: []byte("%PDF-1.7")}
	artifact, err := NewExporter(renderer).Export(context.Background(), sampleAssembled(), FormatPDF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if renderer.format != FormatPDF {
		t.Fatalf("renderer format = %q", renderer.format)
	}
	if artifact.MIMEType != "application/pdf" {
		t.Fatalf("mime = %q", artifact.MIMEType)
	}
}

func TestExportPDFWithoutRenderer(t *testing.T) {
	_, err := NewExporter(nil).Export(context.Background(), sampleAssembled(), FormatPDF)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want unsupported format", err)
	}
}

func TestExportRendererFailureSurfaces(t *testing.T) {
	renderer := &stubRenderer{err: errors.New("converter offline")}
	if _, err := NewExporter(renderer).Export(context.Background(), sampleAssembled(), FormatDOCX); err == nil {
		t.Fatal("expected renderer error to surface")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := NewExporter(nil).Export(context.Background(), sampleAssembled(), "odt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
}

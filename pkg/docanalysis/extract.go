package docanalysis

import (
	"context"
	"errors"
	"strings"
)

// PDFExtractor pulls structured text out of a PDF.
type PDFExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// OCRClient reads text out of an image. May legitimately return an empty
// string when nothing is recognized.
type OCRClient interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

var errNoExtractor = errors.New("no extractor for mime type")

// extract routes by MIME type. An error or empty result sends the caller
// down the filename-heuristic path.
func (a *Analyzer) extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch {
	case mimeType == "application/pdf":
		if a.pdf == nil {
			return "", errNoExtractor
		}
		return a.pdf.ExtractText(ctx, data)
	case strings.HasPrefix(mimeType, "image/"):
		if a.ocr == nil {
			// OCR-less deployments still handle PDFs and plain text.
			return "", errNoExtractor
		}
		return a.ocr.ExtractText(ctx, data)
	case strings.HasPrefix(mimeType, "text/"):
		return string(data), nil
	default:
		return "", errNoExtractor
	}
}

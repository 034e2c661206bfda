// Package extract converts raw document bytes of a declared format into
// plain UTF-8 text. Purely format-to-text; validation and chunking live
// elsewhere.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// DocconvExtractor handles the closed format set. Plain text and markdown
// are decoded directly; pdf and docx go through sajari/docconv.
type DocconvExtractor struct{}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

func (e *DocconvExtractor) Extract(ctx context.Context, raw []byte, format string) (string, error) {
	var mimeType string
	switch format {
	case models.FormatText, models.FormatMarkdown:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: %s content is not valid UTF-8", core.ErrExtraction, format)
		}
		return string(raw), nil
	case models.FormatPDF:
		mimeType = "application/pdf"
	case models.FormatDocx:
		mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := docconv.Convert(bytes.NewReader(raw), mimeType, false)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrExtraction, format, err)
	}
	return res.Body, nil
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

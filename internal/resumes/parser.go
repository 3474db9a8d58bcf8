package resumes

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ParsedResume holds the text extracted from an uploaded PDF.
type ParsedResume struct {
	Text      string
	PageCount int
}

// ParsePDF extracts plain text from PDF bytes. Pages that fail to decode are
// skipped; a résumé with no extractable text at all is rejected because
// question generation has nothing to work from.
func ParsePDF(data []byte) (*ParsedResume, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := strings.TrimSpace(textBuilder.String())
	if text == "" {
		return nil, fmt.Errorf("no text content found in PDF")
	}
	return &ParsedResume{Text: text, PageCount: totalPage}, nil
}

// Package attach extracts text from inbound message attachments before they
// enter the session window, page by page, via ledongthuc/pdf.
package attach

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText reads the PDF at path and returns its concatenated,
// page-by-page plain text. A page that fails to extract is skipped rather
// than failing the whole attachment.
func ExtractPDFText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read attachment %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF content: %s", path)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(strings.TrimSpace(pageText))
	}
	return strings.TrimSpace(text.String()), nil
}

// IsPDF reports whether path looks like a PDF attachment by extension.
func IsPDF(path string) bool {
	return len(path) >= 4 && strings.EqualFold(path[len(path)-4:], ".pdf")
}

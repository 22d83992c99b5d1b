// Package docutil provides document handling helpers.
package docutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"
)

// ExtractPDFText extracts the plain text of every page in the PDF.
// Pages that cannot be parsed are skipped. Returns the text and the
// number of pages.
func ExtractPDFText(path string) (string, int, error) {
	if _, err := os.Stat(path); err != nil {
		return "", 0, fmt.Errorf("pdf not found: %s", path)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	var sb strings.Builder

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that cannot be parsed
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	logger.Infow("Extracted PDF text", "path", path, "pages", numPages, "chars", sb.Len())
	return sb.String(), numPages, nil
}

// ExtractText extracts the plain text of a document. PDF files go
// through the PDF parser; anything else is read as UTF-8 text.
func ExtractText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, _, err := ExtractPDFText(path)
		return text, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	logger.Infow("Read text document", "path", path, "chars", len(data))
	return string(data), nil
}

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

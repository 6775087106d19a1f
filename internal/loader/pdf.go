// Package loader reads source PDFs into per-page text documents.
package loader

import (
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// LoadPDF extracts the text of every page of the PDF at path. Pages with
// no extractable text are skipped; a document with no text at all is a
// chunking failure, not an empty success.
func LoadPDF(path string) ([]domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %v: %w", path, err, domain.ErrChunking)
	}
	defer f.Close()

	fileName := filepath.Base(path)
	var docs []domain.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %v: %w", i, path, err, domain.ErrChunking)
		}
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Source:   path,
			FileName: fileName,
			Page:     i,
			Content:  text,
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no extractable text in %s: %w", path, domain.ErrChunking)
	}
	return docs, nil
}

package docx

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
	"github.com/mkharlamov/corporate-agent/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// ExtractUnits converts one stored document into an ordered, flat sequence of
// immutable units. Empty paragraphs are skipped; a payload with no
// recognizable structure becomes a single whole-document unit.
func (e *Extractor) ExtractUnits(ctx context.Context, doc *domain.Document) ([]domain.DocumentUnit, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	paragraphs, err := extractParagraphs(raw)
	if err != nil {
		return nil, err
	}
	return unitsFromParagraphs(doc.ID, paragraphs), nil
}

// Text returns the plain text of a raw document, paragraphs joined by
// newlines. Used by the reference corpus loader.
func Text(raw []byte) (string, error) {
	paragraphs, err := extractParagraphs(raw)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p.Text != "" {
			lines = append(lines, p.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func extractParagraphs(raw []byte) ([]paragraph, error) {
	if _, entry, err := openDocumentEntry(raw); err == nil {
		xmlRaw, err := readZipEntry(entry)
		if err != nil {
			return nil, err
		}
		return parseDocumentXML(xmlRaw)
	}

	// Not a docx archive: treat as plain text if it decodes as such.
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("unreadable document: neither docx nor text")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return splitPlainParagraphs(text), nil
}

func unitsFromParagraphs(documentID string, paragraphs []paragraph) []domain.DocumentUnit {
	units := make([]domain.DocumentUnit, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p.Text == "" {
			continue
		}
		units = append(units, domain.DocumentUnit{
			ID:         fmt.Sprintf("paragraph_%d", p.Position),
			DocumentID: documentID,
			Position:   p.Position,
			Text:       p.Text,
		})
	}
	return units
}

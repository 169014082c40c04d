// Package corpus loads authoritative reference texts from a directory for
// offline index building. Supported formats: .pdf, .txt, .md, .docx.
package corpus

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mkharlamov/corporate-agent/internal/infrastructure/docx"
)

// ReferenceText is one source file's extracted text with its provenance label.
type ReferenceText struct {
	Source string
	Text   string
}

// LoadDir reads every supported file in dir. Files that fail to extract are
// logged and skipped; an unreadable corpus file should not sink the build.
func LoadDir(dir string) ([]ReferenceText, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reference dir: %w", err)
	}

	var out []ReferenceText
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		text, err := extractFile(path)
		if err != nil {
			slog.Warn("reference_file_skipped", "file", name, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, ReferenceText{Source: name, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

func extractFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(raw), nil
	case ".docx":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read docx file: %w", err)
		}
		return docx.Text(raw)
	default:
		return "", fmt.Errorf("unsupported reference format %q", filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

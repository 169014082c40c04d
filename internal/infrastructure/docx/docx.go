// Package docx reads and annotates word-processing documents. DOCX archives
// are handled natively from word/document.xml; payloads that are not zip
// archives degrade to plain-text paragraph handling so a malformed upload
// still yields reviewable units instead of a hard failure.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const documentEntry = "word/document.xml"

// paragraph is one <w:p> element: its position (counting every paragraph,
// empty ones included, so extraction and annotation agree on indexing) and
// its concatenated <w:t> text.
type paragraph struct {
	Position int
	Text     string
}

func isWordML(name xml.Name, local string) bool {
	if name.Local != local {
		return false
	}
	return name.Space == "" || strings.Contains(name.Space, "wordprocessingml")
}

// parseDocumentXML walks word/document.xml and returns its paragraphs in
// order. Non-text elements (images, drawings, properties) are skipped by
// construction: only character data inside <w:t> is collected.
func parseDocumentXML(raw []byte) ([]paragraph, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))

	var (
		out       []paragraph
		position  = -1
		inText    bool
		text      strings.Builder
		depth     int
		paraDepth = -1
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentEntry, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case isWordML(t.Name, "p"):
				position++
				paraDepth = depth
				text.Reset()
			case isWordML(t.Name, "t"):
				inText = true
			case isWordML(t.Name, "br") || isWordML(t.Name, "tab"):
				if paraDepth >= 0 {
					text.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch {
			case isWordML(t.Name, "p") && depth == paraDepth:
				out = append(out, paragraph{Position: position, Text: strings.TrimSpace(text.String())})
				paraDepth = -1
			case isWordML(t.Name, "t"):
				inText = false
			}
			depth--
		case xml.CharData:
			if inText && paraDepth >= 0 {
				text.Write(t)
			}
		}
	}
	return out, nil
}

func openDocumentEntry(raw []byte) (*zip.Reader, *zip.File, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, nil, err
	}
	for _, f := range archive.File {
		if f.Name == documentEntry {
			return archive, f, nil
		}
	}
	return nil, nil, fmt.Errorf("archive has no %s", documentEntry)
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// splitPlainParagraphs mirrors the paragraph model for non-docx payloads:
// blank-line separated blocks, empty blocks keep their position.
func splitPlainParagraphs(text string) []paragraph {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(normalized, "\n\n")
	out := make([]paragraph, 0, len(blocks))
	for i, block := range blocks {
		out = append(out, paragraph{Position: i, Text: strings.TrimSpace(block)})
	}
	return out
}

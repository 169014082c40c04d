package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// CommentMarker prefixes every inserted inline comment. Stripping runs that
// begin with it reproduces the original document text exactly.
const CommentMarker = "⚠ ISSUE"

type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate returns a copy of the document with an inline comment appended at
// each flagged unit's paragraph. Comments are additive only: original content
// is never replaced or reordered, and unflagged paragraphs are untouched.
func (a *Annotator) Annotate(_ context.Context, original io.Reader, issues []domain.Issue) ([]byte, error) {
	raw, err := io.ReadAll(original)
	if err != nil {
		return nil, fmt.Errorf("read original document: %w", err)
	}

	byPosition := groupByPosition(issues)
	if len(byPosition) == 0 {
		return raw, nil
	}

	if archive, entry, err := openDocumentEntry(raw); err == nil {
		return annotateArchive(raw, archive, entry, byPosition)
	}
	return annotatePlain(raw, byPosition), nil
}

func groupByPosition(issues []domain.Issue) map[int][]domain.Issue {
	out := make(map[int][]domain.Issue)
	for _, issue := range issues {
		if issue.UnitID == "" {
			// Document-level findings have no anchor paragraph.
			continue
		}
		out[issue.UnitPosition] = append(out[issue.UnitPosition], issue)
	}
	return out
}

func annotateArchive(raw []byte, archive *zip.Reader, entry *zip.File, byPosition map[int][]domain.Issue) ([]byte, error) {
	xmlRaw, err := readZipEntry(entry)
	if err != nil {
		return nil, err
	}
	annotated, err := insertComments(xmlRaw, byPosition)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, f := range archive.File {
		if f.Name == documentEntry {
			w, err := writer.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", f.Name, err)
			}
			if _, err := w.Write(annotated); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Name, err)
			}
			continue
		}

		// Every other archive entry is carried over with its original
		// compressed bytes untouched.
		rawReader, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("open raw %s: %w", f.Name, err)
		}
		header := f.FileHeader
		w, err := writer.CreateRaw(&header)
		if err != nil {
			return nil, fmt.Errorf("create raw %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, rawReader); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize annotated archive: %w", err)
	}
	return buf.Bytes(), nil
}

// insertComments splices annotation runs into word/document.xml right before
// the closing tag of each flagged paragraph.
func insertComments(xmlRaw []byte, byPosition map[int][]domain.Issue) ([]byte, error) {
	type insertion struct {
		offset   int
		fragment []byte
	}

	decoder := xml.NewDecoder(bytes.NewReader(xmlRaw))
	var (
		inserts   []insertion
		paraIndex = -1
		openStack []int
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
			if isWordML(t.Name, "p") {
				paraIndex++
				openStack = append(openStack, paraIndex)
			}
		case xml.EndElement:
			if isWordML(t.Name, "p") && len(openStack) > 0 {
				closing := openStack[len(openStack)-1]
				openStack = openStack[:len(openStack)-1]

				issues, flagged := byPosition[closing]
				if !flagged {
					continue
				}
				end := int(decoder.InputOffset())
				tagStart := bytes.LastIndexByte(xmlRaw[:end], '<')
				if tagStart < 0 {
					return nil, fmt.Errorf("misparsed paragraph end at offset %d", end)
				}
				inserts = append(inserts, insertion{offset: tagStart, fragment: commentRuns(issues)})
			}
		}
	}

	sort.Slice(inserts, func(i, j int) bool { return inserts[i].offset < inserts[j].offset })

	var out bytes.Buffer
	out.Grow(len(xmlRaw) + 256*len(inserts))
	prev := 0
	for _, ins := range inserts {
		out.Write(xmlRaw[prev:ins.offset])
		out.Write(ins.fragment)
		prev = ins.offset
	}
	out.Write(xmlRaw[prev:])
	return out.Bytes(), nil
}

func commentRuns(issues []domain.Issue) []byte {
	var buf bytes.Buffer
	for _, issue := range issues {
		buf.WriteString(`<w:r><w:rPr><w:b/><w:color w:val="CC0000"/></w:rPr><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&buf, []byte("  "+commentText(issue)))
		buf.WriteString(`</w:t></w:r>`)
	}
	return buf.Bytes()
}

func commentText(issue domain.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]: %s", CommentMarker, issue.Severity, issue.Description)
	if issue.Suggestion != "" {
		fmt.Fprintf(&b, " Suggestion: %s", issue.Suggestion)
	}
	if len(issue.Citations) > 0 {
		fmt.Fprintf(&b, " Citations: %s", strings.Join(issue.Citations, "; "))
	}
	return b.String()
}

func annotatePlain(raw []byte, byPosition map[int][]domain.Issue) []byte {
	paragraphs := splitPlainParagraphs(string(raw))

	blocks := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n\n")
	for i := range blocks {
		issues, ok := byPosition[i]
		if !ok || i >= len(paragraphs) {
			continue
		}
		for _, issue := range issues {
			blocks[i] += "\n" + commentText(issue)
		}
	}
	return []byte(strings.Join(blocks, "\n\n"))
}

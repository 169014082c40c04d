package usecase

import (
	"sort"
	"strings"
	"testing"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

func incorporationChecklist(t *testing.T) *domain.Checklist {
	t.Helper()
	checklist, ok := mustRules(t).ChecklistFor(domain.ProcessIncorporation)
	if !ok {
		t.Fatalf("no checklist for %q", domain.ProcessIncorporation)
	}
	return checklist
}

func TestChecklistRequires(t *testing.T) {
	checklist := incorporationChecklist(t)

	if !checklist.Requires("Articles of Association") {
		t.Fatalf("Articles of Association should be required for incorporation")
	}
	if checklist.Requires("Standard Employment Contract") {
		t.Fatalf("employment contract must not be required for incorporation")
	}
}

func TestMissingDocumentsFourOfFive(t *testing.T) {
	checklist := incorporationChecklist(t)

	uploaded := make([]domain.DocumentType, 0, len(checklist.RequiredDocuments)-1)
	for _, required := range checklist.RequiredDocuments {
		if required == "Register of Members and Directors" {
			continue
		}
		uploaded = append(uploaded, required)
	}

	missing := MissingDocuments(checklist, uploaded)
	if len(missing) != 1 {
		t.Fatalf("MissingDocuments() = %v, want exactly one entry", missing)
	}
	if missing[0] != "Register of Members and Directors" {
		t.Fatalf("MissingDocuments() = %v, want Register of Members and Directors", missing)
	}
}

func TestMissingDocumentsDuplicatesSatisfyOnce(t *testing.T) {
	checklist := incorporationChecklist(t)

	uploaded := append([]domain.DocumentType{}, checklist.RequiredDocuments...)
	uploaded = append(uploaded, checklist.RequiredDocuments[0], checklist.RequiredDocuments[0])

	if missing := MissingDocuments(checklist, uploaded); len(missing) != 0 {
		t.Fatalf("MissingDocuments() = %v, want none", missing)
	}
}

func TestMissingDocumentsEmptyUpload(t *testing.T) {
	checklist := incorporationChecklist(t)

	missing := MissingDocuments(checklist, nil)
	if len(missing) != len(checklist.RequiredDocuments) {
		t.Fatalf("MissingDocuments() returned %d entries, want %d", len(missing), len(checklist.RequiredDocuments))
	}
	if !sort.SliceIsSorted(missing, func(i, j int) bool { return missing[i] < missing[j] }) {
		t.Fatalf("MissingDocuments() not sorted: %v", missing)
	}
}

func TestMissingDocumentsNilChecklist(t *testing.T) {
	if missing := MissingDocuments(nil, []domain.DocumentType{"NDA"}); missing != nil {
		t.Fatalf("MissingDocuments(nil) = %v, want nil", missing)
	}
}

func TestChecklistMessageNamesMissingDocument(t *testing.T) {
	msg := ChecklistMessage(domain.ProcessIncorporation, 5, 4, []domain.DocumentType{"Register of Members and Directors"})

	if !strings.Contains(msg, "incorporate a company in ADGM") {
		t.Fatalf("message does not name the process: %q", msg)
	}
	if !strings.Contains(msg, "4 out of 5") {
		t.Fatalf("message does not carry the counts: %q", msg)
	}
	if !strings.Contains(msg, "Register of Members and Directors") {
		t.Fatalf("message does not name the missing document: %q", msg)
	}
}

func TestChecklistMessageComplete(t *testing.T) {
	msg := ChecklistMessage(domain.ProcessEmployment, 3, 3, nil)
	if !strings.Contains(msg, "All required documents (3)") {
		t.Fatalf("unexpected completeness message: %q", msg)
	}
}

package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// MissingDocuments computes required minus uploaded. Duplicate uploads of one
// type satisfy it once; a present-but-defective document still counts as
// present (its quality is the analyzer's concern). Output order is stable.
func MissingDocuments(checklist *domain.Checklist, uploaded []domain.DocumentType) []domain.DocumentType {
	if checklist == nil {
		return nil
	}
	present := make(map[domain.DocumentType]struct{}, len(uploaded))
	for _, t := range uploaded {
		present[t] = struct{}{}
	}

	missing := make([]domain.DocumentType, 0)
	for _, required := range checklist.RequiredDocuments {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// ChecklistMessage renders the user-facing completeness summary.
func ChecklistMessage(process domain.Process, required, uploaded int, missing []domain.DocumentType) string {
	intro := fmt.Sprintf("perform the process: %s", process)
	if process == domain.ProcessIncorporation {
		intro = "incorporate a company in ADGM"
	}
	if len(missing) == 0 {
		return fmt.Sprintf(
			"It appears that you're trying to %s. All required documents (%d) appear to be uploaded.",
			intro, required,
		)
	}

	names := make([]string, len(missing))
	for i, m := range missing {
		names[i] = string(m)
	}
	return fmt.Sprintf(
		"It appears that you're trying to %s. Based on our reference list, you have uploaded %d out of %d required documents. The missing document(s) appears to be: '%s'.",
		intro, uploaded, required, strings.Join(names, "', '"),
	)
}

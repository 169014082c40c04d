package httpadapter

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mkharlamov/corporate-agent/internal/core/domain"
)

// renderReportXLSX builds a two-sheet workbook: run summary and per-issue
// detail. The row order mirrors the stored report, so exports are stable.
func renderReportXLSX(report *domain.AnalysisReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const issuesSheet = "Issues"

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return nil, fmt.Errorf("create issues sheet: %w", err)
	}

	summaryRows := [][]any{
		{"Submission", report.SubmissionID},
		{"Process", string(report.Process)},
		{"Confidence", report.Confidence},
		{"Documents uploaded", report.DocumentsUploaded},
		{"Documents required", report.RequiredDocuments},
		{"Issues found", len(report.Issues)},
		{"Generated at", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}
	missingRow := len(summaryRows) + 2
	cell, err := excelize.CoordinatesToCellName(1, missingRow)
	if err != nil {
		return nil, fmt.Errorf("summary cell name: %w", err)
	}
	if err := f.SetCellValue(summarySheet, cell, "Missing documents"); err != nil {
		return nil, fmt.Errorf("write missing header: %w", err)
	}
	for i, missing := range report.MissingDocuments {
		cell, err := excelize.CoordinatesToCellName(2, missingRow+i)
		if err != nil {
			return nil, fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetCellValue(summarySheet, cell, string(missing)); err != nil {
			return nil, fmt.Errorf("write missing document: %w", err)
		}
	}

	issueHeader := []any{"Document", "Section", "Category", "Severity", "Issue", "Suggestion", "Citation"}
	if err := f.SetSheetRow(issuesSheet, "A1", &issueHeader); err != nil {
		return nil, fmt.Errorf("write issue header: %w", err)
	}
	for i, issue := range report.Issues {
		section := issue.UnitID
		if section == "" {
			section = "document"
		}
		row := []any{
			issue.Document,
			section,
			string(issue.Category),
			string(issue.Severity),
			issue.Description,
			issue.Suggestion,
			strings.Join(issue.Citations, "; "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("issue cell name: %w", err)
		}
		if err := f.SetSheetRow(issuesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write issue row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// XLSXContentType is the media type of ExportIssues output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MaxExportRows caps the number of issues written to one workbook.
var MaxExportRows = 100_000

const (
	issuesSheet  = "Issues"
	summarySheet = "Summary"
)

var issueHeadings = []any{"Created At", "Entity Type", "Issue Type", "Entity ID", "Value", "Details", "Issue ID"}

// ExportIssues writes the issues matching f as an XLSX workbook to w: one
// row per issue on the first sheet and grouped counts on the second.
// Pagination fields of f are ignored.
func (s *Service) ExportIssues(ctx context.Context, f store.IssueFilter, w io.Writer) (int, error) {
	xl := excelize.NewFile()
	defer xl.Close()

	if err := xl.SetSheetName("Sheet1", issuesSheet); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}
	if err := xl.SetSheetRow(issuesSheet, "A1", &issueHeadings); err != nil {
		return 0, fmt.Errorf("write headings: %w", err)
	}

	summary := model.NewIssueSummary()
	written := 0
	f.Offset = 0
	f.Limit = MaxIssueLimit

	for written < MaxExportRows {
		page, err := s.ListIssues(ctx, f)
		if err != nil {
			return written, err
		}
		for _, issue := range page.Issues {
			if written >= MaxExportRows {
				break
			}
			cell, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return written, err
			}
			row := issueRow(issue)
			if err := xl.SetSheetRow(issuesSheet, cell, &row); err != nil {
				return written, fmt.Errorf("write issue row: %w", err)
			}
			summary.Add(issue.EntityType, issue.Type)
			written++
		}
		if len(page.Issues) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}

	if err := writeSummarySheet(xl, summary); err != nil {
		return written, err
	}
	if err := xl.Write(w); err != nil {
		return written, fmt.Errorf("write workbook: %w", err)
	}
	return written, nil
}

func issueRow(issue model.Issue) []any {
	details := ""
	if len(issue.Details) > 0 {
		if b, err := json.Marshal(issue.Details); err == nil {
			details = string(b)
		}
	}
	value := ""
	if issue.Value != nil {
		value = fmt.Sprint(issue.Value)
	}
	return []any{
		issue.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		string(issue.EntityType),
		string(issue.Type),
		issue.EntityID,
		value,
		details,
		issue.ID,
	}
}

func writeSummarySheet(xl *excelize.File, summary model.IssueSummary) error {
	if _, err := xl.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{{"Total Issues", summary.TotalIssues}, {}, {"Issue Type", "Count"}}
	for _, k := range sortedKeys(summary.IssuesByType) {
		rows = append(rows, []any{k, summary.IssuesByType[k]})
	}
	rows = append(rows, []any{}, []any{"Entity Type", "Count"})
	for _, k := range sortedKeys(summary.IssuesByEntity) {
		rows = append(rows, []any{k, summary.IssuesByEntity[k]})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

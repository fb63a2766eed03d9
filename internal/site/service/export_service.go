package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/xuri/excelize/v2"
)

// ExportService 进度导出/工作项导入
type ExportService struct {
	*base
	swos *SWOService
}

// NewExportService 创建导出服务
func NewExportService(b *base, swos *SWOService) *ExportService {
	return &ExportService{base: b, swos: swos}
}

// ImportResult 导入结果
type ImportResult struct {
	Added   int                   `json:"added"`
	Updated int                   `json:"updated"`
	Failed  int                   `json:"failed"`
	Errors  []string              `json:"errors"`
	SWO     *entity.SiteWorkOrder `json:"swo"`
}

var progressHeaders = []string{"Activity ID", "Description", "Unit", "Required Qty", "Up To Date", "Percent (%)"}

var templateHeaders = []string{"Activity ID", "Description", "Unit", "Required Qty"}

// ExportProgress 导出工单进度 after checking the actor can see the SWO.
func (s *ExportService) ExportProgress(ctx context.Context, actorID, swoID string) (*excelize.File, string, error) {
	if _, err := s.swos.Get(ctx, actorID, swoID); err != nil {
		return nil, "", err
	}
	return s.ProgressWorkbook(ctx, swoID)
}

// ProgressWorkbook builds the progress workbook of an SWO: approved
// cumulative totals per activity and the report history.
func (s *ExportService) ProgressWorkbook(ctx context.Context, swoID string) (*excelize.File, string, error) {
	swo, p, err := s.swo(ctx, swoID)
	if err != nil {
		return nil, "", err
	}
	reports, err := s.stores.Reports.List(ctx, repository.ReportFilter{SWOID: swo.ID})
	if err != nil {
		return nil, "", fmt.Errorf("list reports: %w", err)
	}
	summary := workflow.CumulativeProgress(swo, reports, "", nil)

	f := excelize.NewFile()
	sheet := "Progress"
	f.SetSheetName("Sheet1", sheet)
	bold, _ := headerStyle(f)

	f.SetCellValue(sheet, "A1", "Project")
	f.SetCellValue(sheet, "B1", p.Number+" "+p.Name)
	f.SetCellValue(sheet, "A2", "SWO")
	f.SetCellValue(sheet, "B2", swo.SWONo+" "+swo.WorkName)
	f.SetCellValue(sheet, "A3", "Supervisor")
	f.SetCellValue(sheet, "B3", swo.SupervisorName)
	f.SetCellValue(sheet, "A4", "Overall (%)")
	f.SetCellValue(sheet, "B4", round2(summary.OverallPercent))
	f.SetCellStyle(sheet, "A1", "A4", bold)

	const headerRow = 6
	writeHeader(f, sheet, headerRow, progressHeaders, bold)
	for i, a := range summary.Activities {
		row := headerRow + 1 + i
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.ActivityID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.Description)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.RequiredQty)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.UpToDate)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), round2(a.Percent))
	}
	setWidths(f, sheet, []float64{14, 36, 8, 12, 12, 12})

	// 日报明细
	history := "Reports"
	if _, err := f.NewSheet(history); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("new sheet: %w", err)
	}
	headers := []string{"Date", "Status", "Weather", "Notes"}
	for _, a := range swo.Activities {
		headers = append(headers, a.Description)
	}
	writeHeader(f, history, 1, headers, bold)
	for i := range reports {
		r := &reports[len(reports)-1-i]
		row := i + 2
		f.SetCellValue(history, fmt.Sprintf("A%d", row), r.Date)
		f.SetCellValue(history, fmt.Sprintf("B%d", row), r.Status)
		f.SetCellValue(history, fmt.Sprintf("C%d", row), r.Weather)
		f.SetCellValue(history, fmt.Sprintf("D%d", row), r.Notes)
		for j, a := range swo.Activities {
			col, _ := excelize.ColumnNumberToName(5 + j)
			f.SetCellValue(history, fmt.Sprintf("%s%d", col, row), r.TodayFor(a.ID))
		}
	}
	setWidths(f, history, []float64{12, 12, 12, 30})

	filename := fmt.Sprintf("%s_progress_%s.xlsx", swo.SWONo, s.now().Format("20060102"))
	return f, filename, nil
}

// ActivityTemplate 工作项导入模板
func (s *ExportService) ActivityTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Activities"
	f.SetSheetName("Sheet1", sheet)
	bold, err := headerStyle(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	writeHeader(f, sheet, 1, templateHeaders, bold)
	f.SetSheetRow(sheet, "A2", &[]interface{}{"", "Excavation", "m3", 120})
	setWidths(f, sheet, []float64{14, 36, 8, 12})
	return f, nil
}

// ImportActivities merges the activity rows of a workbook into an SWO. Rows
// whose id matches an existing activity update it; others are appended.
func (s *ExportService) ImportActivities(ctx context.Context, actorID, swoID string, f *excelize.File) (*ImportResult, error) {
	swo, err := s.swos.Get(ctx, actorID, swoID)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, workflow.Invalid("file", "cannot read workbook: "+err.Error())
	}

	result := &ImportResult{Errors: []string{}}
	activities := append([]entity.Activity{}, swo.Activities...)
	index := make(map[string]int, len(activities))
	for i, a := range activities {
		index[a.ID] = i
	}

	for i, row := range rows {
		if i == 0 {
			continue // 跳过表头
		}
		cell := func(n int) string {
			if n < len(row) {
				return strings.TrimSpace(row[n])
			}
			return ""
		}
		if cell(0) == "" && cell(1) == "" {
			continue
		}
		a := entity.Activity{ID: cell(0), Description: cell(1), Unit: cell(2)}
		if a.Description == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: description is required", i+1))
			continue
		}
		if qty := cell(3); qty != "" {
			v, err := strconv.ParseFloat(qty, 64)
			if err != nil || v < 0 {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid required quantity %q", i+1, qty))
				continue
			}
			a.RequiredQty = v
		}
		if at, ok := index[a.ID]; ok && a.ID != "" {
			activities[at] = a
			result.Updated++
			continue
		}
		activities = append(activities, a)
		if a.ID != "" {
			index[a.ID] = len(activities) - 1
		}
		result.Added++
	}

	if result.Added+result.Updated == 0 {
		result.SWO = swo
		return result, nil
	}
	updated, err := s.swos.Update(ctx, actorID, swoID, workflow.SWOFields{Activities: activities})
	if err != nil {
		return nil, err
	}
	result.SWO = updated
	return result, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}


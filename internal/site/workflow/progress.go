package workflow

import (
	"math"
	"sort"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// ActivityTotals is the cumulative progress of one SWO activity.
type ActivityTotals struct {
	ActivityID  string  `json:"activity_id"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	RequiredQty float64 `json:"required_qty"`
	PrevTotal   float64 `json:"prev_total"`
	Today       float64 `json:"today"`
	UpToDate    float64 `json:"up_to_date"`
	Percent     float64 `json:"percent"`
}

// ProgressSummary is the per-activity and overall progress of an SWO.
type ProgressSummary struct {
	SWOID          string           `json:"swo_id"`
	CutoffDate     string           `json:"cutoff_date,omitempty"`
	Activities     []ActivityTotals `json:"activities"`
	OverallPercent float64          `json:"overall_percent"`
	ApprovedCount  int              `json:"approved_count"`
}

// CumulativeProgress sums the today values of the SWO's Approved reports.
// When cutoffDate is set only reports dated strictly before it count, which
// yields the previous total for an edit in progress on that date. editing
// carries the today values being edited, keyed by activity id.
//
// Values are summed in sorted order so the result does not depend on the
// order reports were fetched in.
func CumulativeProgress(swo *entity.SiteWorkOrder, reports []entity.DailyReport, cutoffDate string, editing map[string]float64) ProgressSummary {
	summary := ProgressSummary{CutoffDate: cutoffDate, Activities: []ActivityTotals{}}
	if swo == nil {
		return summary
	}
	summary.SWOID = swo.ID

	values := make(map[string][]float64, len(swo.Activities))
	for i := range reports {
		r := &reports[i]
		if r.Status != entity.ReportStatusApproved {
			continue
		}
		if r.SWOID != "" && r.SWOID != swo.ID {
			continue
		}
		if cutoffDate != "" && r.Date >= cutoffDate {
			continue
		}
		summary.ApprovedCount++
		for _, p := range r.Progress {
			values[p.ActivityID] = append(values[p.ActivityID], finite(p.Today))
		}
	}

	var percentSum float64
	for _, a := range swo.Activities {
		prev := stableSum(values[a.ID])
		today := finite(editing[a.ID])
		t := ActivityTotals{
			ActivityID:  a.ID,
			Description: a.Description,
			Unit:        a.Unit,
			RequiredQty: a.RequiredQty,
			PrevTotal:   prev,
			Today:       today,
			UpToDate:    prev + today,
		}
		t.Percent = Percent(t.UpToDate, a.RequiredQty)
		percentSum += t.Percent
		summary.Activities = append(summary.Activities, t)
	}
	if n := len(summary.Activities); n > 0 {
		summary.OverallPercent = finite(percentSum / float64(n))
	}
	return summary
}

// Percent returns upToDate as a percentage of required, or 0 when required
// is not positive. The result is always finite.
func Percent(upToDate, required float64) float64 {
	if !(required > 0) || math.IsInf(required, 0) {
		return 0
	}
	return finite(upToDate / required * 100)
}

func stableSum(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return finite(sum)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

package service

import (
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_ExportProgress(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	approvedReport(env, s, "2024-05-08", 30)
	approvedReport(env, s, "2024-05-09", 10)
	_, err := env.svc.Report.Submit(env.ctx, s.sup.ID, submitReq(s, today, 99))
	require.NoError(t, err)

	f, filename, err := env.svc.Export.ExportProgress(env.ctx, s.cm.ID, s.swo.ID)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "015-SWO-001_progress_20240510.xlsx", filename)

	rows, err := f.GetRows("Progress")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 8)
	assert.Equal(t, []string{"Overall (%)", "20"}, rows[3])
	assert.Equal(t, progressHeaders, rows[5])
	assert.Equal(t, []string{"a1", "Excavation", "m3", "100", "40", "40"}, rows[6], "pending reports do not count")
	assert.Equal(t, []string{"a2", "Rebar", "t", "50", "0", "0"}, rows[7])

	history, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, []string{"Date", "Status", "Weather", "Notes", "Excavation", "Rebar"}, history[0])
	assert.Equal(t, "2024-05-08", history[1][0])
	assert.Equal(t, entity.ReportStatusApproved, history[1][1])
	assert.Equal(t, "30", history[1][4])
	assert.Equal(t, today, history[3][0])
	assert.Equal(t, entity.ReportStatusPendingCM, history[3][1])
}

func TestExportService_ExportProgressScope(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	_, _, err := env.svc.Export.ExportProgress(env.ctx, s.staff.ID, s.swo.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, _, err = env.svc.Export.ExportProgress(env.ctx, s.admin.ID, "missing")
	assert.ErrorIs(t, err, workflow.ErrRecordNotFound)
}

func TestExportService_ActivityTemplate(t *testing.T) {
	env := newTestEnv(t)

	f, err := env.svc.Export.ActivityTemplate()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Activities")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, templateHeaders, rows[0])
	assert.Equal(t, []string{"", "Excavation", "m3", "120"}, rows[1])
}

func TestExportService_ImportActivities(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Activity ID", "Description", "Unit", "Required Qty"},
		{"a1", "Excavation (bulk)", "m3", 150},
		{"", "Formwork", "m2", 80},
		{"x9", "", "m", 5},
		{"a3", "Concrete", "m3", "lots"},
		{},
		{"a4", "Curing", "day", -1},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	_, err := env.svc.Export.ImportActivities(env.ctx, s.staff.ID, s.swo.ID, f)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	res, err := env.svc.Export.ImportActivities(env.ctx, s.pm.ID, s.swo.ID, f)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, res.Failed)
	assert.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "row 4")

	acts := res.SWO.Activities
	require.Len(t, acts, 3)
	assert.Equal(t, "a1", acts[0].ID)
	assert.Equal(t, "Excavation (bulk)", acts[0].Description)
	assert.Equal(t, 150.0, acts[0].RequiredQty)
	assert.Equal(t, "a2", acts[1].ID)
	assert.Equal(t, "Formwork", acts[2].Description)
	assert.NotEmpty(t, acts[2].ID, "imported rows without an id get one")

	stored, err := env.mem.SWOs.FindByID(env.ctx, s.swo.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Activities, 3)
}

func TestExportService_ImportNothingValid(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Activity ID", "Description"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"a9", ""}))

	res, err := env.svc.Export.ImportActivities(env.ctx, s.pm.ID, s.swo.ID, f)
	require.NoError(t, err)
	assert.Zero(t, res.Added+res.Updated)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.SWO.Activities, 2)
}

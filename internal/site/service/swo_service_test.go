package service

import (
	"errors"
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/testutil"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createReq(s *site) *CreateSWORequest {
	return &CreateSWORequest{
		ProjectID:    s.project.ID,
		WorkName:     "Foundation",
		SupervisorID: s.sup.ID,
		Activities:   []entity.Activity{
			{Description: "Pile cap", Unit: "ea", RequiredQty: 8},
			{ID: "pour", Description: "Pour concrete", Unit: "m3", RequiredQty: 40},
		},
	}
}

func TestSWOService_CreateNumbering(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	swo, err := env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	require.NoError(t, err)
	assert.Equal(t, "015-SWO-002", swo.SWONo)
	assert.Equal(t, entity.SWOStatusAssigned, swo.Status)
	assert.Equal(t, s.sup.Name, swo.SupervisorName)
	require.Len(t, swo.Activities, 2)
	assert.NotEmpty(t, swo.Activities[0].ID)
	assert.Equal(t, "pour", swo.Activities[1].ID)

	next, err := env.svc.SWO.Create(env.ctx, s.admin.ID, createReq(s))
	require.NoError(t, err)
	assert.Equal(t, "015-SWO-003", next.SWONo)
}

func TestSWOService_CreateRetriesTakenNumber(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	raced := false
	env.mem.SWOs.BeforeCreate = func(w *entity.SiteWorkOrder) {
		if raced {
			return
		}
		raced = true
		env.mem.SWOs.Put(entity.SiteWorkOrder{ProjectID: w.ProjectID, SWONo: w.SWONo, WorkName: "concurrent"})
	}

	swo, err := env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	require.NoError(t, err)
	assert.Equal(t, "015-SWO-003", swo.SWONo)
}

func TestSWOService_CreateGivesUpAfterRetries(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	attempts := 0
	env.mem.SWOs.BeforeCreate = func(w *entity.SiteWorkOrder) {
		attempts++
		env.mem.SWOs.Put(entity.SiteWorkOrder{ProjectID: w.ProjectID, SWONo: w.SWONo, WorkName: "concurrent"})
	}

	_, err := env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	assert.ErrorIs(t, err, workflow.ErrConflict)
	assert.Equal(t, swoNoAttempts, attempts)
}

func TestSWOService_CreateRejected(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	var ve *workflow.ValidationError

	_, err := env.svc.SWO.Create(env.ctx, s.cm.ID, createReq(s))
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	outsider := testutil.SeedUser(env.mem, "pm2", entity.RolePM, "other-project")
	_, err = env.svc.SWO.Create(env.ctx, outsider.ID, createReq(s))
	assert.ErrorIs(t, err, workflow.ErrForbidden, "PM not assigned to the project")

	req := createReq(s)
	req.Activities[0].ID = "pour"
	_, err = env.svc.SWO.Create(env.ctx, s.pm.ID, req)
	assert.True(t, errors.As(err, &ve))

	req = createReq(s)
	req.SupervisorID = ""
	_, err = env.svc.SWO.Create(env.ctx, s.pm.ID, req)
	assert.True(t, errors.As(err, &ve))

	req = createReq(s)
	req.WorkName = " "
	_, err = env.svc.SWO.Create(env.ctx, s.pm.ID, req)
	assert.True(t, errors.As(err, &ve))

	env.mem.FailNext("swos.create", errors.New("connection reset"))
	_, err = env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	var we *workflow.StoreWriteError
	assert.True(t, errors.As(err, &we))

	s.project.Locked = true
	env.mem.Projects.Put(*s.project)
	_, err = env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	assert.ErrorIs(t, err, workflow.ErrProjectLocked)
}

func TestSWOService_AcceptAndChange(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	swo, err := env.svc.SWO.Create(env.ctx, s.pm.ID, createReq(s))
	require.NoError(t, err)

	_, err = env.svc.SWO.Accept(env.ctx, s.otherSup.ID, swo.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	changed, err := env.svc.SWO.RequestChange(env.ctx, s.sup.ID, swo.ID, &ReasonRequest{Reason: "quantities wrong"})
	require.NoError(t, err)
	assert.Equal(t, entity.SWOStatusRequestChange, changed.Status)
	assert.Equal(t, "quantities wrong", changed.ChangeReason)

	_, err = env.svc.SWO.Accept(env.ctx, s.sup.ID, swo.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	updated, err := env.svc.SWO.Update(env.ctx, s.pm.ID, swo.ID, workflow.SWOFields{WorkName: strPtr("Foundation rev B")})
	require.NoError(t, err)
	assert.Equal(t, entity.SWOStatusAssigned, updated.Status)
	assert.Empty(t, updated.ChangeReason)

	accepted, err := env.svc.SWO.Accept(env.ctx, s.sup.ID, swo.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SWOStatusAccepted, accepted.Status)

	stored, _ := env.mem.SWOs.FindByID(env.ctx, swo.ID)
	assert.Equal(t, "Foundation rev B", stored.WorkName)
	assert.Equal(t, entity.SWOStatusAccepted, stored.Status)
}

func TestSWOService_UpdateReassignsSupervisor(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	updated, err := env.svc.SWO.Update(env.ctx, s.pm.ID, s.swo.ID, workflow.SWOFields{SupervisorID: strPtr(s.otherSup.ID)})
	require.NoError(t, err)
	assert.Equal(t, s.otherSup.ID, updated.SupervisorID)
	assert.Equal(t, s.otherSup.Name, updated.SupervisorName)

	_, err = env.svc.SWO.Get(env.ctx, s.sup.ID, s.swo.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = env.svc.SWO.Get(env.ctx, s.otherSup.ID, s.swo.ID)
	assert.NoError(t, err)
}

func TestSWOService_ClosureChain(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	id := s.swo.ID
	eval := workflow.PMEvaluation{Note: "good", QualityScore: intPtr(85), OnTime: boolPtr(true)}

	swo, err := env.svc.SWO.RequestClosure(env.ctx, s.sup.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ClosurePMReview, swo.ClosureStatus)

	_, err = env.svc.SWO.SubmitPMEvaluation(env.ctx, s.pm.ID, id, workflow.PMEvaluation{QualityScore: intPtr(85), OnTime: boolPtr(false)})
	var ve *workflow.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "delay_reason", ve.Field)

	swo, err = env.svc.SWO.SubmitPMEvaluation(env.ctx, s.pm.ID, id, eval)
	require.NoError(t, err)
	assert.Equal(t, entity.ClosureCDReview, swo.ClosureStatus)

	swo, err = env.svc.SWO.CDReject(env.ctx, s.cd.ID, id, &ReasonRequest{Reason: "missing as-built"})
	require.NoError(t, err)
	assert.Equal(t, entity.ClosurePMReview, swo.ClosureStatus)
	assert.Equal(t, "missing as-built", swo.CDClosureNote)

	swo, err = env.svc.SWO.ResubmitClosure(env.ctx, s.sup.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ClosurePMReview, swo.ClosureStatus)
	assert.Empty(t, swo.CDClosureNote)

	_, err = env.svc.SWO.ResubmitClosure(env.ctx, s.sup.ID, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = env.svc.SWO.SubmitPMEvaluation(env.ctx, s.pm.ID, id, eval)
	require.NoError(t, err)
	swo, err = env.svc.SWO.CDVerify(env.ctx, s.cd.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ClosureGMMD, swo.ClosureStatus)

	swo, err = env.svc.SWO.GMReject(env.ctx, s.gm.ID, id, &ReasonRequest{Reason: "budget overrun"})
	require.NoError(t, err)
	assert.Equal(t, entity.ClosureCDReview, swo.ClosureStatus)
	assert.Equal(t, entity.GMStatusRejected, swo.GMStatus)

	_, err = env.svc.SWO.ResubmitClosure(env.ctx, s.sup.ID, id)
	require.NoError(t, err)
	_, err = env.svc.SWO.SubmitPMEvaluation(env.ctx, s.pm.ID, id, eval)
	require.NoError(t, err)
	_, err = env.svc.SWO.CDVerify(env.ctx, s.admin.ID, id)
	require.NoError(t, err)

	swo, err = env.svc.SWO.GMAcknowledge(env.ctx, s.gm.ID, id, &ReasonRequest{Note: "ok"})
	require.NoError(t, err)
	assert.Equal(t, entity.GMStatusAcknowledged, swo.GMStatus)
	assert.Equal(t, entity.ClosureGMMD, swo.ClosureStatus)

	_, err = env.svc.SWO.MDLock(env.ctx, s.gm.ID, id, &ReasonRequest{})
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	swo, err = env.svc.SWO.MDLock(env.ctx, s.md.ID, id, &ReasonRequest{Note: "closed"})
	require.NoError(t, err)
	assert.Equal(t, entity.ClosureClosedSWO, swo.ClosureStatus)
	assert.Equal(t, entity.MDStatusLocked, swo.MDStatus)
	require.NotNil(t, swo.ClosedAt)

	// Closed SWO is terminal
	_, err = env.svc.SWO.RequestClosure(env.ctx, s.sup.ID, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = env.svc.SWO.Update(env.ctx, s.pm.ID, id, workflow.SWOFields{WorkName: strPtr("x")})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = env.svc.SWO.MDReject(env.ctx, s.md.ID, id, &ReasonRequest{Reason: "reopen"})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	var actions []string
	for _, l := range env.mem.Logs.All() {
		if l.EntityID == id {
			actions = append(actions, l.Action)
		}
	}
	assert.Equal(t, "request_closure", actions[0])
	assert.Equal(t, "md_lock", actions[len(actions)-1])
}

func TestSWOService_CancelClosure(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	id := s.swo.ID

	_, err := env.svc.SWO.CancelClosure(env.ctx, s.sup.ID, id)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = env.svc.SWO.RequestClosure(env.ctx, s.sup.ID, id)
	require.NoError(t, err)
	_, err = env.svc.SWO.SubmitPMEvaluation(env.ctx, s.pm.ID, id, workflow.PMEvaluation{QualityScore: intPtr(70), OnTime: boolPtr(false), DelayReason: "rain"})
	require.NoError(t, err)
	_, err = env.svc.SWO.CDVerify(env.ctx, s.cd.ID, id)
	require.NoError(t, err)
	_, err = env.svc.SWO.MDReject(env.ctx, s.md.ID, id, &ReasonRequest{Reason: "redo drainage"})
	require.NoError(t, err)

	swo, err := env.svc.SWO.CancelClosure(env.ctx, s.sup.ID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ClosureActive, swo.EffectiveClosureStatus())
	assert.Empty(t, swo.MDStatus)
	assert.Empty(t, swo.MDNote)
}

func TestSWOService_ListAndProgress(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	approvedReport(env, s, "2024-05-08", 30)
	approvedReport(env, s, "2024-05-09", 20)
	env.mem.Reports.Put(entity.DailyReport{
		SWOID:     s.swo.ID,
		ProjectID: s.project.ID,
		Date:      today,
		Progress:  []entity.ActivityProgress{{ActivityID: "a1", Today: 40}},
		Status:    entity.ReportStatusPendingCM,
	})

	swos, err := env.svc.SWO.List(env.ctx, s.sup.ID, repository.SWOFilter{})
	require.NoError(t, err)
	assert.Len(t, swos, 1)
	swos, err = env.svc.SWO.List(env.ctx, s.otherSup.ID, repository.SWOFilter{})
	require.NoError(t, err)
	assert.Empty(t, swos)

	p, err := env.svc.SWO.Progress(env.ctx, s.cm.ID, s.swo.ID, "")
	require.NoError(t, err)
	require.Len(t, p.Activities, 2)
	assert.InDelta(t, 50, p.Activities[0].UpToDate, 1e-9)
	assert.InDelta(t, 50, p.Activities[0].Percent, 1e-9)
	assert.InDelta(t, 0, p.Activities[1].Percent, 1e-9)
	assert.InDelta(t, 25, p.OverallPercent, 1e-9)
	assert.Equal(t, 2, p.ApprovedCount)

	p, err = env.svc.SWO.Progress(env.ctx, s.cm.ID, s.swo.ID, "2024-05-09")
	require.NoError(t, err)
	assert.InDelta(t, 30, p.Activities[0].UpToDate, 1e-9)

	_, err = env.svc.SWO.Progress(env.ctx, s.otherSup.ID, s.swo.ID, "")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

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

func TestResourceService_AddListRemove(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	pid := s.project.ID

	sup, err := env.svc.Resource.AddSupervisor(env.ctx, s.pm.ID, pid, &AddSupervisorRequest{UserID: s.sup.ID})
	require.NoError(t, err)
	assert.Equal(t, s.sup.Name, sup.Name)

	_, err = env.svc.Resource.AddEquipment(env.ctx, s.pm.ID, pid, &AddEquipmentRequest{Code: "EX-01", Name: "Excavator", Type: "heavy"})
	require.NoError(t, err)
	_, err = env.svc.Resource.AddWorkerTeam(env.ctx, s.md.ID, pid, &AddWorkerTeamRequest{Name: "Team A", Leader: "Chai", Headcount: 12})
	require.NoError(t, err)

	res, err := env.svc.Resource.List(env.ctx, s.cm.ID, pid)
	require.NoError(t, err)
	assert.Len(t, res.Supervisors, 1)
	require.Len(t, res.Equipments, 1)
	assert.Equal(t, "EX-01", res.Equipments[0].Code)
	assert.Len(t, res.WorkerTeams, 1)

	require.NoError(t, env.svc.Resource.Remove(env.ctx, s.admin.ID, pid, repository.ResourceSupervisors, sup.ID))
	err = env.svc.Resource.Remove(env.ctx, s.admin.ID, pid, repository.ResourceSupervisors, sup.ID)
	assert.ErrorIs(t, err, workflow.ErrRecordNotFound)

	res, err = env.svc.Resource.List(env.ctx, s.cm.ID, pid)
	require.NoError(t, err)
	assert.Empty(t, res.Supervisors)
}

func TestResourceService_Validation(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	pid := s.project.ID
	var ve *workflow.ValidationError

	_, err := env.svc.Resource.AddSupervisor(env.ctx, s.pm.ID, pid, &AddSupervisorRequest{})
	assert.True(t, errors.As(err, &ve))

	_, err = env.svc.Resource.AddWorkerTeam(env.ctx, s.pm.ID, pid, &AddWorkerTeamRequest{Name: "B", Headcount: -1})
	assert.True(t, errors.As(err, &ve))

	err = env.svc.Resource.Remove(env.ctx, s.pm.ID, pid, "cranes", "x")
	assert.True(t, errors.As(err, &ve))

	_, err = env.svc.Resource.AddEquipment(env.ctx, s.cm.ID, pid, &AddEquipmentRequest{Name: "Crane"})
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	_, err = env.svc.Resource.List(env.ctx, s.otherSup.ID, pid)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestResourceService_UnassignedPM(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	pid := s.project.ID
	outsider := testutil.SeedUser(env.mem, "pm2", entity.RolePM, "other-project")

	_, err := env.svc.Resource.List(env.ctx, outsider.ID, pid)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = env.svc.Resource.AddEquipment(env.ctx, outsider.ID, pid, &AddEquipmentRequest{Name: "Crane"})
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	team, err := env.svc.Resource.AddWorkerTeam(env.ctx, s.pm.ID, pid, &AddWorkerTeamRequest{Name: "Team A", Headcount: 4})
	require.NoError(t, err)
	err = env.svc.Resource.Remove(env.ctx, outsider.ID, pid, repository.ResourceWorkerTeams, team.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	res, err := env.svc.Resource.List(env.ctx, s.pm.ID, pid)
	require.NoError(t, err)
	assert.Len(t, res.WorkerTeams, 1)
}

func TestResourceService_LockedProject(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	s.project.Locked = true
	env.mem.Projects.Put(*s.project)

	_, err := env.svc.Resource.AddEquipment(env.ctx, s.pm.ID, s.project.ID, &AddEquipmentRequest{Name: "Crane"})
	assert.ErrorIs(t, err, workflow.ErrProjectLocked)

	_, err = env.svc.Resource.AddEquipment(env.ctx, s.md.ID, s.project.ID, &AddEquipmentRequest{Name: "Crane"})
	assert.NoError(t, err)
}

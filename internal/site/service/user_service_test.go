package service

import (
	"errors"
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_List(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	pending := env.mem.Users.Put(entity.User{Email: "new@cmg.test", Name: "New", Role: entity.RoleStaff, Status: entity.UserStatusPending})

	all, total, err := env.svc.User.List(env.ctx, s.admin.ID, repository.UserFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(all), total)
	assert.Contains(t, userIDs(all), pending.ID)

	directory, _, err := env.svc.User.List(env.ctx, s.pm.ID, repository.UserFilter{}, 0, 0)
	require.NoError(t, err)
	assert.NotContains(t, userIDs(directory), pending.ID)
	assert.Len(t, directory, len(all)-1)

	admins, _, err := env.svc.User.List(env.ctx, s.admin.ID, repository.UserFilter{Role: "administrator"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{s.admin.ID}, userIDs(admins))

	_, _, err = env.svc.User.List(env.ctx, s.admin.ID, repository.UserFilter{Role: "Chief"}, 0, 0)
	var ve *workflow.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, _, err = env.svc.User.List(env.ctx, pending.ID, repository.UserFilter{}, 0, 0)
	assert.ErrorIs(t, err, workflow.ErrPendingApproval)
}

func TestUserService_SetRole(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	u, err := env.svc.User.SetRole(env.ctx, s.admin.ID, s.staff.ID, "Administrator")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, u.Role)

	_, err = env.svc.User.SetRole(env.ctx, s.admin.ID, s.staff.ID, "Emperor")
	var ve *workflow.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = env.svc.User.SetRole(env.ctx, s.pm.ID, s.cm.ID, entity.RolePM)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	_, err = env.svc.User.SetRole(env.ctx, s.admin.ID, "missing", entity.RolePM)
	assert.ErrorIs(t, err, workflow.ErrRecordNotFound)

	logs := env.mem.Logs.All()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, "set_role", last.Action)
	assert.Equal(t, entity.RoleStaff, last.FromStatus)
	assert.Equal(t, entity.RoleAdmin, last.ToStatus)
	assert.Equal(t, s.admin.ID, last.OperatorID)
}

func TestUserService_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)
	pending := env.mem.Users.Put(entity.User{Email: "new@cmg.test", Name: "New", Role: entity.RoleStaff, Status: entity.UserStatusPending})

	_, err := env.svc.User.SetStatus(env.ctx, s.admin.ID, pending.ID, "Active")
	var ve *workflow.ValidationError
	require.True(t, errors.As(err, &ve))

	u, err := env.svc.User.SetStatus(env.ctx, s.admin.ID, pending.ID, entity.UserStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, entity.UserStatusApproved, u.Status)

	_, _, err = env.svc.User.List(env.ctx, pending.ID, repository.UserFilter{}, 0, 0)
	assert.NoError(t, err)

	_, err = env.svc.User.SetStatus(env.ctx, s.admin.ID, pending.ID, entity.UserStatusRejected)
	require.NoError(t, err)
	_, _, err = env.svc.User.List(env.ctx, pending.ID, repository.UserFilter{}, 0, 0)
	assert.ErrorIs(t, err, workflow.ErrAccountRejected)
}

func TestUserService_SetAssignedProjects(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	u, err := env.svc.User.SetAssignedProjects(env.ctx, s.admin.ID, s.staff.ID, []string{s.project.ID, " ", s.project.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{s.project.ID}, []string(u.AssignedProjects))

	_, err = env.svc.User.SetAssignedProjects(env.ctx, s.admin.ID, s.staff.ID, []string{"nope"})
	assert.ErrorIs(t, err, workflow.ErrRecordNotFound)

	stored, _ := env.mem.Users.FindByID(env.ctx, s.staff.ID)
	assert.True(t, stored.IsAssigned(s.project.ID))
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	s := seedSite(env)

	u, err := env.svc.User.UpdateProfile(env.ctx, s.staff.ID, &UpdateProfileRequest{Phone: strPtr(" 081-555-0101 ")})
	require.NoError(t, err)
	assert.Equal(t, "081-555-0101", u.Phone)
	assert.Equal(t, "staff", u.Name)

	_, err = env.svc.User.UpdateProfile(env.ctx, s.staff.ID, &UpdateProfileRequest{Name: strPtr("  ")})
	var ve *workflow.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func userIDs(users []entity.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

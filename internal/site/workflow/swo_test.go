package workflow

import (
	"errors"
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAcceptSWO(t *testing.T) {
	s := swo()
	assert.ErrorIs(t, AcceptSWO(user("other", entity.RoleSupervisor), project(), s, testNow), ErrForbidden)
	assert.ErrorIs(t, AcceptSWO(user("sup", entity.RolePM), project(), s, testNow), ErrForbidden)

	require.NoError(t, AcceptSWO(user("sup", entity.RoleSupervisor), project(), s, testNow))
	assert.Equal(t, entity.SWOStatusAccepted, s.Status)
	assert.ErrorIs(t, AcceptSWO(user("sup", entity.RoleSupervisor), project(), s, testNow), ErrInvalidTransition)
}

func TestAcceptSWO_MatchByName(t *testing.T) {
	s := swo()
	s.SupervisorID = ""
	s.SupervisorName = "  user SUP "
	require.NoError(t, AcceptSWO(user("sup", entity.RoleSupervisor), project(), s, testNow))
}

func TestRequestChangeThenEditReturnsToAssigned(t *testing.T) {
	s := swo()
	sup := user("sup", entity.RoleSupervisor)

	var ve *ValidationError
	assert.True(t, errors.As(RequestChange(sup, project(), s, "", testNow), &ve))

	require.NoError(t, RequestChange(sup, project(), s, "qty too high", testNow))
	assert.Equal(t, entity.SWOStatusRequestChange, s.Status)
	assert.Equal(t, "qty too high", s.ChangeReason)

	assert.ErrorIs(t, UpdateSWO(user("cm", entity.RoleCM), project(), s, SWOFields{}, testNow), ErrForbidden)

	require.NoError(t, UpdateSWO(user("pm", entity.RolePM), project(), s, SWOFields{WorkName: strPtr("Foundation B")}, testNow))
	assert.Equal(t, entity.SWOStatusAssigned, s.Status)
	assert.Empty(t, s.ChangeReason)
	assert.Equal(t, "Foundation B", s.WorkName)
}

func TestUpdateSWO_Validation(t *testing.T) {
	s := swo()
	pm := user("pm", entity.RolePM)
	dup := []entity.Activity{{ID: "a", Description: "x"}, {ID: "a", Description: "y"}}
	var ve *ValidationError
	assert.True(t, errors.As(UpdateSWO(pm, project(), s, SWOFields{Activities: dup}, testNow), &ve))
	assert.True(t, errors.As(UpdateSWO(pm, project(), s, SWOFields{WorkName: strPtr(" ")}, testNow), &ve))

	s.ClosureStatus = entity.ClosureClosedSWO
	assert.ErrorIs(t, UpdateSWO(pm, project(), s, SWOFields{}, testNow), ErrInvalidTransition)
}

func TestCanCreateSWO(t *testing.T) {
	for _, role := range []string{entity.RoleAdmin, entity.RoleAdministratorAlias, entity.RoleMD} {
		assert.NoError(t, CanCreateSWO(user("u", role), project()), role)
	}
	assert.NoError(t, CanCreateSWO(user("u", entity.RolePM, "p1"), project()))
	assert.ErrorIs(t, CanCreateSWO(user("u", entity.RolePM, "p2"), project()), ErrForbidden, "unassigned PM")
	for _, role := range []string{entity.RoleCM, entity.RoleSupervisor, entity.RoleCD, entity.RoleGM} {
		assert.ErrorIs(t, CanCreateSWO(user("u", role), project()), ErrForbidden, role)
	}
	locked := project()
	locked.Locked = true
	assert.ErrorIs(t, CanCreateSWO(user("u", entity.RolePM), locked), ErrProjectLocked)
	assert.NoError(t, CanCreateSWO(user("u", entity.RoleMD), locked))
}

func TestUpdateSWO_NewSupervisorReassigns(t *testing.T) {
	s := swo()
	pm := user("pm", entity.RolePM)
	require.NoError(t, AcceptSWO(user("sup", entity.RoleSupervisor), project(), s, testNow))

	require.NoError(t, UpdateSWO(pm, project(), s, SWOFields{SupervisorID: strPtr("sup"), SupervisorName: strPtr("User sup")}, testNow))
	assert.Equal(t, entity.SWOStatusAccepted, s.Status, "same supervisor keeps acceptance")

	require.NoError(t, UpdateSWO(pm, project(), s, SWOFields{SupervisorID: strPtr("niran"), SupervisorName: strPtr("Niran")}, testNow))
	assert.Equal(t, entity.SWOStatusAssigned, s.Status)

	niran := user("niran", entity.RoleSupervisor)
	niran.Name = "Niran"
	n := NotificationsFor(niran, []entity.SiteWorkOrder{*s}, nil)
	require.Len(t, n.Items, 1)
	assert.Equal(t, ReasonAssigned, n.Items[0].Reason)
	require.NoError(t, AcceptSWO(niran, project(), s, testNow))
}

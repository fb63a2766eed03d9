package service

import (
	"context"
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
)

// ResourceService 项目资源服务
type ResourceService struct {
	*base
}

// NewResourceService 创建项目资源服务
func NewResourceService(b *base) *ResourceService {
	return &ResourceService{base: b}
}

// ProjectResources 项目资源汇总
type ProjectResources struct {
	Supervisors []entity.ProjectSupervisor `json:"supervisors"`
	Equipments  []entity.ProjectEquipment  `json:"equipments"`
	WorkerTeams []entity.ProjectWorkerTeam `json:"worker_teams"`
}

// AddSupervisorRequest 添加主管
type AddSupervisorRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// AddEquipmentRequest 添加设备
type AddEquipmentRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// AddWorkerTeamRequest 添加班组
type AddWorkerTeamRequest struct {
	Name      string `json:"name"`
	Leader    string `json:"leader"`
	Headcount int    `json:"headcount"`
}

// List 项目资源
func (s *ResourceService) List(ctx context.Context, actorID, projectID string) (*ProjectResources, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !workflow.ProjectInScope(actor, p) {
		return nil, workflow.ErrForbidden
	}

	out := &ProjectResources{}
	if out.Supervisors, err = s.stores.Resources.ListSupervisors(ctx, projectID); err != nil {
		return nil, err
	}
	if out.Equipments, err = s.stores.Resources.ListEquipment(ctx, projectID); err != nil {
		return nil, err
	}
	if out.WorkerTeams, err = s.stores.Resources.ListWorkerTeams(ctx, projectID); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSupervisor 添加项目主管. A linked user supplies the name when omitted.
func (s *ResourceService) AddSupervisor(ctx context.Context, actorID, projectID string, req *AddSupervisorRequest) (*entity.ProjectSupervisor, error) {
	actor, p, err := s.manage(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	sup := &entity.ProjectSupervisor{
		ProjectID: p.ID,
		UserID:    strings.TrimSpace(req.UserID),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: s.now(),
	}
	if sup.UserID != "" {
		u, err := s.stores.Users.FindByID(ctx, sup.UserID)
		if err != nil {
			return nil, notFound(err, "user "+sup.UserID)
		}
		if sup.Name == "" {
			sup.Name = u.Name
		}
		if sup.Phone == "" {
			sup.Phone = u.Phone
		}
	}
	if sup.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.stores.Resources.CreateSupervisor(ctx, sup); err != nil {
		return nil, writeErr("add supervisor", err)
	}
	s.added(ctx, actor, p, sse.CollectionSupervisors, sup.ID, sup.Name)
	return sup, nil
}

// AddEquipment 添加项目设备
func (s *ResourceService) AddEquipment(ctx context.Context, actorID, projectID string, req *AddEquipmentRequest) (*entity.ProjectEquipment, error) {
	actor, p, err := s.manage(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	eq := &entity.ProjectEquipment{
		ProjectID: p.ID,
		Code:      strings.TrimSpace(req.Code),
		Name:      strings.TrimSpace(req.Name),
		Type:      strings.TrimSpace(req.Type),
		CreatedAt: s.now(),
	}
	if eq.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.stores.Resources.CreateEquipment(ctx, eq); err != nil {
		return nil, writeErr("add equipment", err)
	}
	s.added(ctx, actor, p, sse.CollectionEquipments, eq.ID, eq.Name)
	return eq, nil
}

// AddWorkerTeam 添加施工班组
func (s *ResourceService) AddWorkerTeam(ctx context.Context, actorID, projectID string, req *AddWorkerTeamRequest) (*entity.ProjectWorkerTeam, error) {
	actor, p, err := s.manage(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	team := &entity.ProjectWorkerTeam{
		ProjectID: p.ID,
		Name:      strings.TrimSpace(req.Name),
		Leader:    strings.TrimSpace(req.Leader),
		Headcount: req.Headcount,
		CreatedAt: s.now(),
	}
	if team.Name == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if team.Headcount < 0 {
		return nil, workflow.Invalid("headcount", "must not be negative")
	}
	if err := s.stores.Resources.CreateWorkerTeam(ctx, team); err != nil {
		return nil, writeErr("add worker team", err)
	}
	s.added(ctx, actor, p, sse.CollectionTeams, team.ID, team.Name)
	return team, nil
}

// Remove 删除项目资源. kind is supervisors, equipments or worker_teams.
func (s *ResourceService) Remove(ctx context.Context, actorID, projectID, kind, id string) error {
	collection, ok := resourceCollections[kind]
	if !ok {
		return workflow.Invalid("kind", "unknown resource kind "+kind)
	}
	actor, p, err := s.manage(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	if err := s.stores.Resources.Delete(ctx, kind, p.ID, id); err != nil {
		return writeErr("remove "+kind+" "+id, err)
	}
	s.record(ctx, actor, entity.LogEntityProject, p.ID, p.Number, "remove_"+kind, "", "", id)
	s.publish(ctx, collection, id, sse.ActionDelete, p.ID)
	return nil
}

var resourceCollections = map[string]string{
	repository.ResourceSupervisors: sse.CollectionSupervisors,
	repository.ResourceEquipments:  sse.CollectionEquipments,
	repository.ResourceWorkerTeams: sse.CollectionTeams,
}

func (s *ResourceService) manage(ctx context.Context, actorID, projectID string) (*entity.User, *entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if err := workflow.EnsureUnlocked(actor, p); err != nil {
		return nil, nil, err
	}
	if !workflow.Can(actor.Role, workflow.ActManageResources, "") || !workflow.ProjectInScope(actor, p) {
		return nil, nil, workflow.ErrForbidden
	}
	return actor, p, nil
}

func (s *ResourceService) added(ctx context.Context, actor *entity.User, p *entity.Project, collection, id, name string) {
	s.record(ctx, actor, entity.LogEntityProject, p.ID, p.Number, "add_"+collection, "", "", name)
	s.publish(ctx, collection, id, sse.ActionCreate, p.ID)
}

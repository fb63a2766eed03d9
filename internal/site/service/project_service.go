package service

import (
	"context"
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
)

// ProjectService 项目服务
type ProjectService struct {
	*base
}

// NewProjectService 创建项目服务
func NewProjectService(b *base) *ProjectService {
	return &ProjectService{base: b}
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Number    string     `json:"number"`
	Name      string     `json:"name"`
	Location  string     `json:"location"`
	PMID      string     `json:"pm_id"`
	CMID      string     `json:"cm_id"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Name      *string    `json:"name"`
	Location  *string    `json:"location"`
	PMID      *string    `json:"pm_id"`
	CMID      *string    `json:"cm_id"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// ClosureRequest carries the note or reason of a closure decision.
type ClosureRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// List 项目列表 (visibility filtered)
func (s *ProjectService) List(ctx context.Context, actorID string) ([]entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	projects, err := s.stores.Projects.List(ctx)
	if err != nil {
		return nil, err
	}
	return workflow.FilterProjects(actor, projects), nil
}

// Get 项目详情
func (s *ProjectService) Get(ctx context.Context, actorID, id string) (*entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.ProjectInScope(actor, p) {
		return nil, workflow.ErrForbidden
	}
	return p, nil
}

// Create 创建项目 (Admin, MD)
func (s *ProjectService) Create(ctx context.Context, actorID string, req *CreateProjectRequest) (*entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !workflow.Can(actor.Role, workflow.ActCreateProject, "") {
		return nil, workflow.ErrForbidden
	}
	number := strings.TrimSpace(req.Number)
	name := strings.TrimSpace(req.Name)
	if number == "" {
		return nil, workflow.Invalid("number", "is required")
	}
	if name == "" {
		return nil, workflow.Invalid("name", "is required")
	}

	now := s.now()
	p := &entity.Project{
		Number:    number,
		Name:      name,
		Location:  strings.TrimSpace(req.Location),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.assignLeads(ctx, p, &req.PMID, &req.CMID); err != nil {
		return nil, err
	}
	if err := s.stores.Projects.Create(ctx, p); err != nil {
		return nil, writeErr("create project", err)
	}
	s.record(ctx, actor, entity.LogEntityProject, p.ID, p.Number, "create", "", "", p.Name)
	s.publish(ctx, sse.CollectionProjects, p.ID, sse.ActionCreate, p.ID)
	return p, nil
}

// Update 更新项目 (Admin, MD)
func (s *ProjectService) Update(ctx context.Context, actorID, id string, req *UpdateProjectRequest) (*entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.EnsureUnlocked(actor, p); err != nil {
		return nil, err
	}
	if !workflow.Can(actor.Role, workflow.ActUpdateProject, "") {
		return nil, workflow.ErrForbidden
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, workflow.Invalid("name", "is required")
	}
	if err := s.assignLeads(ctx, p, req.PMID, req.CMID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Location != nil {
		p.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartDate != nil {
		p.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = req.EndDate
	}
	p.UpdatedAt = s.now()
	if err := s.stores.Projects.Update(ctx, p); err != nil {
		return nil, writeErr("update project", err)
	}
	s.record(ctx, actor, entity.LogEntityProject, p.ID, p.Number, "update", "", "", "")
	s.publish(ctx, sse.CollectionProjects, p.ID, sse.ActionUpdate, p.ID)
	return p, nil
}

// ProposeClosure PM 提出关闭项目
func (s *ProjectService) ProposeClosure(ctx context.Context, actorID, id string, req *ClosureRequest) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "propose_closure", req.Note, func(actor *entity.User, p *entity.Project, now time.Time) error {
		if !workflow.ProjectInScope(actor, p) && p.PMID != actor.ID {
			return workflow.ErrForbidden
		}
		return workflow.ProposeClosure(actor, p, req.Note, now)
	})
}

// CDVerifyClosure CD 确认关闭
func (s *ProjectService) CDVerifyClosure(ctx context.Context, actorID, id string) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "cd_verify_closure", "", func(actor *entity.User, p *entity.Project, now time.Time) error {
		return workflow.CDVerifyClosure(actor, p, now)
	})
}

// CDRejectClosure CD 驳回关闭
func (s *ProjectService) CDRejectClosure(ctx context.Context, actorID, id string, req *ClosureRequest) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "cd_reject_closure", req.Reason, func(actor *entity.User, p *entity.Project, now time.Time) error {
		return workflow.CDRejectClosure(actor, p, req.Reason, now)
	})
}

// MDLock MD 锁定项目
func (s *ProjectService) MDLock(ctx context.Context, actorID, id string) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "md_lock", "", func(actor *entity.User, p *entity.Project, now time.Time) error {
		return workflow.MDLockProject(actor, p, now)
	})
}

// MDRejectClosure MD 驳回关闭
func (s *ProjectService) MDRejectClosure(ctx context.Context, actorID, id string, req *ClosureRequest) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "md_reject_closure", req.Reason, func(actor *entity.User, p *entity.Project, now time.Time) error {
		return workflow.MDRejectClosure(actor, p, req.Reason, now)
	})
}

// Unlock MD 解锁项目
func (s *ProjectService) Unlock(ctx context.Context, actorID, id string) (*entity.Project, error) {
	return s.transition(ctx, actorID, id, "unlock", "", func(actor *entity.User, p *entity.Project, now time.Time) error {
		return workflow.UnlockProject(actor, p, now)
	})
}

func (s *ProjectService) transition(ctx context.Context, actorID, id, action, content string, apply func(*entity.User, *entity.Project, time.Time) error) (*entity.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.project(ctx, id)
	if err != nil {
		return nil, err
	}
	from := closureState(p)
	if err := apply(actor, p, s.now()); err != nil {
		return nil, err
	}
	if err := s.stores.Projects.Update(ctx, p); err != nil {
		return nil, writeErr(action, err)
	}
	s.record(ctx, actor, entity.LogEntityProject, p.ID, p.Number, action, from, closureState(p), strings.TrimSpace(content))
	s.publish(ctx, sse.CollectionProjects, p.ID, sse.ActionUpdate, p.ID)
	return p, nil
}

// assignLeads resolves PM and CM names from their user ids. Nil leaves the
// field unchanged and an empty id clears it.
func (s *ProjectService) assignLeads(ctx context.Context, p *entity.Project, pmID, cmID *string) error {
	if pmID != nil {
		id, name, err := s.lead(ctx, *pmID)
		if err != nil {
			return err
		}
		p.PMID, p.PMName = id, name
	}
	if cmID != nil {
		id, name, err := s.lead(ctx, *cmID)
		if err != nil {
			return err
		}
		p.CMID, p.CMName = id, name
	}
	return nil
}

func (s *ProjectService) lead(ctx context.Context, userID string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", nil
	}
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return "", "", notFound(err, "user "+userID)
	}
	return u.ID, u.Name, nil
}

func closureState(p *entity.Project) string {
	switch {
	case p.Locked:
		return "Locked"
	case p.PendingMD:
		return "Pending MD"
	case p.PendingCD:
		return "Pending CD"
	}
	return "Open"
}

package service

import (
	"context"
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
)

// UserService 用户服务
type UserService struct {
	*base
}

// NewUserService 创建用户服务
func NewUserService(b *base) *UserService {
	return &UserService{base: b}
}

// UpdateProfileRequest 更新个人资料
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Position *string `json:"position"`
}

// List 用户列表 (Admin). Other roles get the approved directory, which
// assignment pickers need.
func (s *UserService) List(ctx context.Context, actorID string, f repository.UserFilter, page, pageSize int) ([]entity.User, int64, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !workflow.Can(actor.Role, workflow.ActManageUsers, "") {
		f.Status = entity.UserStatusApproved
	}
	if f.Role != "" {
		role, ok := entity.NormalizeRole(f.Role)
		if !ok {
			return nil, 0, workflow.Invalid("role", "unknown role "+f.Role)
		}
		f.Role = role
	}
	return s.stores.Users.List(ctx, f, page, pageSize)
}

// Get 用户详情
func (s *UserService) Get(ctx context.Context, actorID, id string) (*entity.User, error) {
	if _, err := s.actor(ctx, actorID); err != nil {
		return nil, err
	}
	u, err := s.stores.Users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user "+id)
	}
	return u, nil
}

// SetRole 设置角色 (Admin). "Administrator" is stored as Admin.
func (s *UserService) SetRole(ctx context.Context, actorID, id, role string) (*entity.User, error) {
	canonical, ok := entity.NormalizeRole(role)
	if !ok {
		return nil, workflow.Invalid("role", "unknown role "+role)
	}
	return s.adminEdit(ctx, actorID, id, "set_role", func(u *entity.User) (string, string) {
		from := u.Role
		u.Role = canonical
		return from, canonical
	})
}

// SetStatus 审批账号 (Admin)
func (s *UserService) SetStatus(ctx context.Context, actorID, id, status string) (*entity.User, error) {
	switch status {
	case entity.UserStatusPending, entity.UserStatusApproved, entity.UserStatusRejected:
	default:
		return nil, workflow.Invalid("status", "must be Pending, Approved or Rejected")
	}
	return s.adminEdit(ctx, actorID, id, "set_status", func(u *entity.User) (string, string) {
		from := u.Status
		u.Status = status
		return from, status
	})
}

// SetAssignedProjects 分配项目 (Admin). Unknown project ids are rejected.
func (s *UserService) SetAssignedProjects(ctx context.Context, actorID, id string, projectIDs []string) (*entity.User, error) {
	seen := make(map[string]bool, len(projectIDs))
	ids := make([]string, 0, len(projectIDs))
	for _, pid := range projectIDs {
		pid = strings.TrimSpace(pid)
		if pid == "" || seen[pid] {
			continue
		}
		if _, err := s.project(ctx, pid); err != nil {
			return nil, err
		}
		seen[pid] = true
		ids = append(ids, pid)
	}
	return s.adminEdit(ctx, actorID, id, "set_assigned_projects", func(u *entity.User) (string, string) {
		u.AssignedProjects = ids
		return "", ""
	})
}

// UpdateProfile 用户更新自己的资料
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*entity.User, error) {
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, workflow.Invalid("name", "is required")
		}
		u.Name = name
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Position != nil {
		u.Position = strings.TrimSpace(*req.Position)
	}
	u.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, u); err != nil {
		return nil, writeErr("update profile", err)
	}
	s.record(ctx, u, entity.LogEntityUser, u.ID, u.Email, "update_profile", "", "", "")
	s.publish(ctx, sse.CollectionUsers, u.ID, sse.ActionUpdate, "")
	return u, nil
}

func (s *UserService) adminEdit(ctx context.Context, actorID, id, action string, apply func(u *entity.User) (from, to string)) (*entity.User, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !workflow.Can(actor.Role, workflow.ActManageUsers, "") {
		return nil, workflow.ErrForbidden
	}
	u, err := s.stores.Users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user "+id)
	}
	from, to := apply(u)
	u.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, u); err != nil {
		return nil, writeErr(action, err)
	}
	s.record(ctx, actor, entity.LogEntityUser, u.ID, u.Email, action, from, to, "")
	s.publish(ctx, sse.CollectionUsers, u.ID, sse.ActionUpdate, "")
	return u, nil
}

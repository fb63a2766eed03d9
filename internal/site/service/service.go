package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/storage"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserStore 用户存储
type UserStore interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByGoogleSubject(ctx context.Context, sub string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	List(ctx context.Context, f repository.UserFilter, page, pageSize int) ([]entity.User, int64, error)
}

// ProjectStore 项目存储
type ProjectStore interface {
	Create(ctx context.Context, p *entity.Project) error
	FindByID(ctx context.Context, id string) (*entity.Project, error)
	Update(ctx context.Context, p *entity.Project) error
	List(ctx context.Context) ([]entity.Project, error)
}

// SWOStore 工单存储
type SWOStore interface {
	Create(ctx context.Context, s *entity.SiteWorkOrder) error
	FindByID(ctx context.Context, id string) (*entity.SiteWorkOrder, error)
	Update(ctx context.Context, s *entity.SiteWorkOrder) error
	ListSWONos(ctx context.Context, projectID string) ([]string, error)
	List(ctx context.Context, f repository.SWOFilter) ([]entity.SiteWorkOrder, error)
}

// ReportStore 日报存储
type ReportStore interface {
	Create(ctx context.Context, r *entity.DailyReport) error
	FindByID(ctx context.Context, id string) (*entity.DailyReport, error)
	FindBySWOAndDate(ctx context.Context, swoID, date string) (*entity.DailyReport, error)
	Update(ctx context.Context, r *entity.DailyReport) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.ReportFilter) ([]entity.DailyReport, error)
}

// ResourceStore 项目资源存储
type ResourceStore interface {
	CreateSupervisor(ctx context.Context, s *entity.ProjectSupervisor) error
	ListSupervisors(ctx context.Context, projectID string) ([]entity.ProjectSupervisor, error)
	CreateEquipment(ctx context.Context, e *entity.ProjectEquipment) error
	ListEquipment(ctx context.Context, projectID string) ([]entity.ProjectEquipment, error)
	CreateWorkerTeam(ctx context.Context, w *entity.ProjectWorkerTeam) error
	ListWorkerTeams(ctx context.Context, projectID string) ([]entity.ProjectWorkerTeam, error)
	Delete(ctx context.Context, kind, projectID, id string) error
}

// ActivityLogStore 操作日志存储
type ActivityLogStore interface {
	Create(ctx context.Context, log *entity.ActivityLog) error
	FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error)
}

// Stores groups the collections services read and write.
type Stores struct {
	Users     UserStore
	Projects  ProjectStore
	SWOs      SWOStore
	Reports   ReportStore
	Resources ResourceStore
	Logs      ActivityLogStore
}

// StoresFrom adapts the gorm repositories.
func StoresFrom(repos *repository.Repositories) Stores {
	return Stores{
		Users:     repos.User,
		Projects:  repos.Project,
		SWOs:      repos.SWO,
		Reports:   repos.Report,
		Resources: repos.Resource,
		Logs:      repos.ActivityLog,
	}
}

// Deps 服务公共依赖
type Deps struct {
	Stores Stores
	Bus    sse.Bus
	Logger *zap.Logger
	// Location is the site's calendar; report dates are days in it.
	Location *time.Location
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Services 服务集合
type Services struct {
	Auth         *AuthService
	User         *UserService
	Project      *ProjectService
	Resource     *ResourceService
	SWO          *SWOService
	Report       *ReportService
	Attachment   *AttachmentService
	Notification *NotificationService
	Export       *ExportService
	ActivityLog  *ActivityLogService
}

// NewServices 创建服务集合
func NewServices(d Deps, rdb *redis.Client, cfg *config.Config, blobs storage.BlobStore, google GoogleIdentity, mailer Mailer) *Services {
	b := newBase(d)
	swos := NewSWOService(b)
	return &Services{
		Auth:         NewAuthService(b, rdb, cfg.JWT, google, mailer, cfg.Server.PublicURL),
		User:         NewUserService(b),
		Project:      NewProjectService(b),
		Resource:     NewResourceService(b),
		SWO:          swos,
		Report:       NewReportService(b),
		Attachment:   NewAttachmentService(b, blobs, cfg.Storage.MaxUpload),
		Notification: NewNotificationService(b),
		Export:       NewExportService(b, swos),
		ActivityLog:  NewActivityLogService(b),
	}
}

// base carries the dependencies every service shares.
type base struct {
	stores Stores
	bus    sse.Bus
	logger *zap.Logger
	loc    *time.Location
	clock  func() time.Time
}

func newBase(d Deps) *base {
	b := &base{stores: d.Stores, bus: d.Bus, logger: d.Logger, loc: d.Location, clock: d.Clock}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

// now returns the current time in the site's calendar.
func (b *base) now() time.Time {
	return b.clock().In(b.loc)
}

// actor loads the signed-in user. Unapproved accounts act as nobody.
func (b *base) actor(ctx context.Context, userID string) (*entity.User, error) {
	u, err := b.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	switch u.Status {
	case entity.UserStatusApproved:
	case entity.UserStatusRejected:
		return nil, workflow.ErrAccountRejected
	default:
		return nil, workflow.ErrPendingApproval
	}
	if role, ok := entity.NormalizeRole(u.Role); ok {
		u.Role = role
	}
	return u, nil
}

func (b *base) project(ctx context.Context, id string) (*entity.Project, error) {
	p, err := b.stores.Projects.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "project "+id)
	}
	return p, nil
}

func (b *base) swo(ctx context.Context, id string) (*entity.SiteWorkOrder, *entity.Project, error) {
	s, err := b.stores.SWOs.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "swo "+id)
	}
	p, err := b.project(ctx, s.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return s, p, nil
}

// publish announces a committed change. Delivery is best effort.
func (b *base) publish(ctx context.Context, collection, id, action, projectID string) {
	if b.bus == nil {
		return
	}
	c := sse.Change{Collection: collection, ID: id, Action: action, ProjectID: projectID, At: b.now()}
	if err := b.bus.Publish(ctx, c); err != nil {
		b.logger.Warn("publish change failed",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
	}
}

// record writes an activity log row. A failed write does not undo the
// mutation it describes.
func (b *base) record(ctx context.Context, actor *entity.User, entityType, entityID, code, action, from, to, content string) {
	log := &entity.ActivityLog{
		EntityType: entityType,
		EntityID:   entityID,
		EntityCode: code,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Content:    content,
		CreatedAt:  b.now(),
	}
	if actor != nil {
		log.OperatorID = actor.ID
		log.OperatorName = actor.Name
	}
	if err := b.stores.Logs.Create(ctx, log); err != nil {
		b.logger.Warn("write activity log failed",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err))
		return
	}
	b.publish(ctx, sse.CollectionLogs, log.ID, sse.ActionCreate, "")
}

// notFound converts a store miss into ErrRecordNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", workflow.ErrRecordNotFound, what)
	}
	return err
}

// writeErr wraps a failed write. Duplicate keys surface as conflicts.
func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %s", workflow.ErrConflict, op)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", workflow.ErrRecordNotFound, op)
	}
	return workflow.WriteFailed(op, err)
}

package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
)

// MemStore is an in-memory implementation of every repository contract,
// including the unique indexes services rely on.
type MemStore struct {
	faults *faults

	Users     *MemUsers
	Projects  *MemProjects
	SWOs      *MemSWOs
	Reports   *MemReports
	Resources *MemResources
	Logs      *MemLogs
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	f := &faults{errs: map[string][]error{}}
	return &MemStore{
		faults:    f,
		Users:     &MemUsers{faults: f, items: map[string]entity.User{}},
		Projects:  &MemProjects{faults: f, items: map[string]entity.Project{}},
		SWOs:      &MemSWOs{faults: f, items: map[string]entity.SiteWorkOrder{}},
		Reports:   &MemReports{faults: f, items: map[string]entity.DailyReport{}},
		Resources: &MemResources{faults: f, sups: map[string]entity.ProjectSupervisor{}, eqs: map[string]entity.ProjectEquipment{}, teams: map[string]entity.ProjectWorkerTeam{}},
		Logs:      &MemLogs{faults: f},
	}
}

// FailNext makes the next call of op return err. op is "<collection>.<method>",
// e.g. "reports.update".
func (m *MemStore) FailNext(op string, err error) {
	m.faults.mu.Lock()
	defer m.faults.mu.Unlock()
	m.faults.errs[op] = append(m.faults.errs[op], err)
}

type faults struct {
	mu   sync.Mutex
	errs map[string][]error
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.errs[op]
	if len(q) == 0 {
		return nil
	}
	f.errs[op] = q[1:]
	return q[0]
}

// ---- users ----

// MemUsers 内存用户存储
type MemUsers struct {
	faults *faults
	mu     sync.RWMutex
	items  map[string]entity.User
}

func (s *MemUsers) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

func (s *MemUsers) Create(ctx context.Context, u *entity.User) error {
	if err := s.faults.take("users.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = repository.NewID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.items {
		if existing.Email == u.Email || existing.ID == u.ID {
			return repository.ErrDuplicate
		}
	}
	s.items[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemUsers) FindByID(ctx context.Context, id string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (s *MemUsers) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u *entity.User) bool { return u.Email == email })
}

func (s *MemUsers) FindByGoogleSubject(ctx context.Context, sub string) (*entity.User, error) {
	if sub == "" {
		return nil, repository.ErrNotFound
	}
	return s.find(func(u *entity.User) bool { return u.GoogleSubject == sub })
}

func (s *MemUsers) find(match func(*entity.User) bool) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.items {
		if match(&u) {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemUsers) Update(ctx context.Context, u *entity.User) error {
	if err := s.faults.take("users.update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemUsers) List(ctx context.Context, f repository.UserFilter, page, pageSize int) ([]entity.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(f.Search)
	var out []entity.User
	for _, u := range s.items {
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	total := int64(len(out))
	return pageOf(out, page, pageSize), total, nil
}

// Put stores u as is, bypassing the bootstrap logic of registration.
func (s *MemUsers) Put(u entity.User) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = repository.NewID()
	}
	u.Email = strings.ToLower(u.Email)
	s.items[u.ID] = cloneUser(u)
	return &u
}

// ---- projects ----

// MemProjects 内存项目存储
type MemProjects struct {
	faults *faults
	mu     sync.RWMutex
	items  map[string]entity.Project
}

func (s *MemProjects) Create(ctx context.Context, p *entity.Project) error {
	if err := s.faults.take("projects.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = repository.NewID()
	}
	for _, existing := range s.items {
		if existing.Number == p.Number || existing.ID == p.ID {
			return repository.ErrDuplicate
		}
	}
	s.items[p.ID] = *p
	return nil
}

func (s *MemProjects) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *MemProjects) Update(ctx context.Context, p *entity.Project) error {
	if err := s.faults.take("projects.update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = *p
	return nil
}

func (s *MemProjects) List(ctx context.Context) ([]entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Project, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Put stores p as is.
func (s *MemProjects) Put(p entity.Project) *entity.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = repository.NewID()
	}
	s.items[p.ID] = p
	return &p
}

// ---- site work orders ----

// MemSWOs 内存工单存储
type MemSWOs struct {
	faults *faults
	mu     sync.RWMutex
	items  map[string]entity.SiteWorkOrder

	// BeforeCreate runs before the unique check of Create, outside the lock.
	BeforeCreate func(s *entity.SiteWorkOrder)
}

func (s *MemSWOs) Create(ctx context.Context, w *entity.SiteWorkOrder) error {
	if err := s.faults.take("swos.create"); err != nil {
		return err
	}
	if s.BeforeCreate != nil {
		s.BeforeCreate(w)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = repository.NewID()
	}
	for _, existing := range s.items {
		if existing.ID == w.ID || (existing.ProjectID == w.ProjectID && existing.SWONo == w.SWONo) {
			return repository.ErrDuplicate
		}
	}
	s.items[w.ID] = cloneSWO(*w)
	return nil
}

func (s *MemSWOs) FindByID(ctx context.Context, id string) (*entity.SiteWorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneSWO(w)
	return &out, nil
}

func (s *MemSWOs) Update(ctx context.Context, w *entity.SiteWorkOrder) error {
	if err := s.faults.take("swos.update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[w.ID] = cloneSWO(*w)
	return nil
}

func (s *MemSWOs) ListSWONos(ctx context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var nos []string
	for _, w := range s.items {
		if w.ProjectID == projectID {
			nos = append(nos, w.SWONo)
		}
	}
	return nos, nil
}

func (s *MemSWOs) List(ctx context.Context, f repository.SWOFilter) ([]entity.SiteWorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.SiteWorkOrder
	for _, w := range s.items {
		if f.ProjectID != "" && w.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if f.ClosureStatus != "" && w.EffectiveClosureStatus() != f.ClosureStatus {
			continue
		}
		if f.SupervisorID != "" && w.SupervisorID != f.SupervisorID {
			continue
		}
		out = append(out, cloneSWO(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].SWONo < out[j].SWONo
	})
	return out, nil
}

// Put stores w as is.
func (s *MemSWOs) Put(w entity.SiteWorkOrder) *entity.SiteWorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = repository.NewID()
	}
	s.items[w.ID] = cloneSWO(w)
	return &w
}

// ---- daily reports ----

// MemReports 内存日报存储
type MemReports struct {
	faults *faults
	mu     sync.RWMutex
	items  map[string]entity.DailyReport
}

func (s *MemReports) Create(ctx context.Context, r *entity.DailyReport) error {
	if err := s.faults.take("reports.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = repository.NewID()
	}
	for _, existing := range s.items {
		if existing.ID == r.ID || (existing.SWOID == r.SWOID && existing.Date == r.Date) {
			return repository.ErrDuplicate
		}
	}
	s.items[r.ID] = cloneReport(*r)
	return nil
}

func (s *MemReports) FindByID(ctx context.Context, id string) (*entity.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneReport(r)
	return &out, nil
}

func (s *MemReports) FindBySWOAndDate(ctx context.Context, swoID, date string) (*entity.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items {
		if r.SWOID == swoID && r.Date == date {
			out := cloneReport(r)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MemReports) Update(ctx context.Context, r *entity.DailyReport) error {
	if err := s.faults.take("reports.update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[r.ID] = cloneReport(*r)
	return nil
}

func (s *MemReports) Delete(ctx context.Context, id string) error {
	if err := s.faults.take("reports.delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemReports) List(ctx context.Context, f repository.ReportFilter) ([]entity.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.DailyReport
	for _, r := range s.items {
		if f.ProjectID != "" && r.ProjectID != f.ProjectID {
			continue
		}
		if f.SWOID != "" && r.SWOID != f.SWOID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.DateFrom != "" && r.Date < f.DateFrom {
			continue
		}
		if f.DateTo != "" && r.Date > f.DateTo {
			continue
		}
		out = append(out, cloneReport(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Put stores r as is.
func (s *MemReports) Put(r entity.DailyReport) *entity.DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = repository.NewID()
	}
	s.items[r.ID] = cloneReport(r)
	return &r
}

// ---- project resources ----

// MemResources 内存项目资源存储
type MemResources struct {
	faults *faults
	mu     sync.RWMutex
	sups   map[string]entity.ProjectSupervisor
	eqs    map[string]entity.ProjectEquipment
	teams  map[string]entity.ProjectWorkerTeam
}

func (s *MemResources) CreateSupervisor(ctx context.Context, v *entity.ProjectSupervisor) error {
	if err := s.faults.take("resources.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = repository.NewID()
	}
	s.sups[v.ID] = *v
	return nil
}

func (s *MemResources) ListSupervisors(ctx context.Context, projectID string) ([]entity.ProjectSupervisor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []entity.ProjectSupervisor{}
	for _, v := range s.sups {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemResources) CreateEquipment(ctx context.Context, v *entity.ProjectEquipment) error {
	if err := s.faults.take("resources.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = repository.NewID()
	}
	s.eqs[v.ID] = *v
	return nil
}

func (s *MemResources) ListEquipment(ctx context.Context, projectID string) ([]entity.ProjectEquipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []entity.ProjectEquipment{}
	for _, v := range s.eqs {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemResources) CreateWorkerTeam(ctx context.Context, v *entity.ProjectWorkerTeam) error {
	if err := s.faults.take("resources.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = repository.NewID()
	}
	s.teams[v.ID] = *v
	return nil
}

func (s *MemResources) ListWorkerTeams(ctx context.Context, projectID string) ([]entity.ProjectWorkerTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []entity.ProjectWorkerTeam{}
	for _, v := range s.teams {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemResources) Delete(ctx context.Context, kind, projectID, id string) error {
	if err := s.faults.take("resources.delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case repository.ResourceSupervisors:
		if v, ok := s.sups[id]; ok && v.ProjectID == projectID {
			delete(s.sups, id)
			return nil
		}
	case repository.ResourceEquipments:
		if v, ok := s.eqs[id]; ok && v.ProjectID == projectID {
			delete(s.eqs, id)
			return nil
		}
	case repository.ResourceWorkerTeams:
		if v, ok := s.teams[id]; ok && v.ProjectID == projectID {
			delete(s.teams, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

// ---- activity logs ----

// MemLogs 内存操作日志存储
type MemLogs struct {
	faults *faults
	mu     sync.RWMutex
	items  []entity.ActivityLog
}

func (s *MemLogs) Create(ctx context.Context, l *entity.ActivityLog) error {
	if err := s.faults.take("logs.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = repository.NewID()
	}
	s.items = append(s.items, *l)
	return nil
}

// FindByEntity returns newest first; entries with equal timestamps keep
// reverse insertion order.
func (s *MemLogs) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.ActivityLog
	for i := len(s.items) - 1; i >= 0; i-- {
		l := s.items[i]
		if l.EntityType == entityType && l.EntityID == entityID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	return pageOf(out, page, pageSize), total, nil
}

// All returns every log entry in insertion order.
func (s *MemLogs) All() []entity.ActivityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entity.ActivityLog{}, s.items...)
}

func pageOf[T any](items []T, page, pageSize int) []T {
	if page <= 0 || pageSize <= 0 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func cloneUser(u entity.User) entity.User {
	u.AssignedProjects = append([]string(nil), u.AssignedProjects...)
	return u
}

func cloneSWO(w entity.SiteWorkOrder) entity.SiteWorkOrder {
	w.Activities = append([]entity.Activity(nil), w.Activities...)
	w.EquipmentRefs = append([]string(nil), w.EquipmentRefs...)
	w.WorkerTeamRefs = append([]string(nil), w.WorkerTeamRefs...)
	return w
}

func cloneReport(r entity.DailyReport) entity.DailyReport {
	r.Progress = append([]entity.ActivityProgress(nil), r.Progress...)
	r.EquipmentUsage = append([]entity.EquipmentUsage(nil), r.EquipmentUsage...)
	r.WorkerCounts = append([]entity.WorkerCount(nil), r.WorkerCounts...)
	r.Attachments = append([]entity.Attachment(nil), r.Attachments...)
	return r
}

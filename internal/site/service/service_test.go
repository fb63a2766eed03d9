package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/storage"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const today = "2024-05-10"

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type recordingMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, to *entity.User, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *recordingMailer) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.links...)
}

type testEnv struct {
	ctx    context.Context
	mem    *testutil.MemStore
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	bus    *sse.LocalBus
	blobs  *storage.LocalStore
	mailer *recordingMailer
	cfg    *config.Config
	deps   Deps
	now    time.Time
	svc    *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := testutil.NewMemStore()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	blobs, err := storage.NewLocalStore(t.TempDir(), "http://site.test/files")
	require.NoError(t, err)

	env := &testEnv{
		ctx:    context.Background(),
		mem:    mem,
		mr:     mr,
		rdb:    rdb,
		bus:    sse.NewLocalBus(256),
		blobs:  blobs,
		mailer: &recordingMailer{},
		now:    testNow,
		cfg:    &config.Config{
			Server: config.ServerConfig{PublicURL: "http://site.test"},
			JWT:    config.JWTConfig{
				Secret:             "service-test-secret",
				AccessTokenExpire:  time.Hour,
				RefreshTokenExpire: 24 * time.Hour,
				ResetTokenExpire:   time.Hour,
				Issuer:             "cmg-site",
			},
			Storage: config.StorageConfig{MaxUpload: 1 << 20},
		},
	}
	env.deps = Deps{
		Stores: Stores{
			Users:     mem.Users,
			Projects:  mem.Projects,
			SWOs:      mem.SWOs,
			Reports:   mem.Reports,
			Resources: mem.Resources,
			Logs:      mem.Logs,
		},
		Bus:      env.bus,
		Location: time.UTC,
		Clock:    func() time.Time { return env.now },
	}
	env.svc = NewServices(env.deps, rdb, env.cfg, blobs, nil, env.mailer)
	return env
}

// site is a project with one SWO and a user per role. pm and cm are
// assigned to the project; the supervisor sees the SWO by identity only.
type site struct {
	admin, md, gm, cd, pm, cm, sup, otherSup, staff *entity.User

	project *entity.Project
	swo     *entity.SiteWorkOrder
}

func seedSite(env *testEnv) *site {
	m := env.mem
	s := &site{
		admin:    testutil.SeedUser(m, "admin", entity.RoleAdmin),
		md:       testutil.SeedUser(m, "md", entity.RoleMD),
		gm:       testutil.SeedUser(m, "gm", entity.RoleGM),
		cd:       testutil.SeedUser(m, "cd", entity.RoleCD),
		sup:      testutil.SeedUser(m, "somchai", entity.RoleSupervisor),
		otherSup: testutil.SeedUser(m, "niran", entity.RoleSupervisor),
		staff:    testutil.SeedUser(m, "staff", entity.RoleStaff),
	}
	s.project = testutil.SeedProject(m, "CMG-2024-015")
	s.pm = testutil.SeedUser(m, "pm", entity.RolePM, s.project.ID)
	s.cm = testutil.SeedUser(m, "cm", entity.RoleCM, s.project.ID)
	s.swo = testutil.SeedSWO(m, s.project, "015-SWO-001", s.sup,
		entity.Activity{ID: "a1", Description: "Excavation", Unit: "m3", RequiredQty: 100},
		entity.Activity{ID: "a2", Description: "Rebar", Unit: "t", RequiredQty: 50},
	)
	return s
}

// approvedReport stores an Approved report for date with the given a1 quantity.
func approvedReport(env *testEnv, s *site, date string, a1 float64) *entity.DailyReport {
	return env.mem.Reports.Put(entity.DailyReport{
		SWOID:          s.swo.ID,
		ProjectID:      s.project.ID,
		Date:           date,
		SupervisorID:   s.sup.ID,
		SupervisorName: s.sup.Name,
		Progress:       []entity.ActivityProgress{{ActivityID: "a1", Today: a1}},
		Status:         entity.ReportStatusApproved,
	})
}

// drain returns the changes published so far.
func drain(ch <-chan sse.Change) []sse.Change {
	var out []sse.Change
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func register(env *testEnv, email, name string) (SignInResult, error) {
	return env.svc.Auth.Register(env.ctx, &RegisterRequest{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            name,
	})
}

func TestAuthService_RegisterBootstrap(t *testing.T) {
	env := newTestEnv(t)

	first, err := register(env, "Owner@CMG.test", "Owner")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, first.Outcome)
	assert.Equal(t, entity.RoleAdmin, first.User.Role)
	assert.Equal(t, entity.UserStatusApproved, first.User.Status)
	assert.Equal(t, "owner@cmg.test", first.User.Email)
	require.NotNil(t, first.Tokens)
	assert.NotEmpty(t, first.Tokens.AccessToken)

	second, err := register(env, "worker@cmg.test", "Worker")
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingApproval, second.Outcome)
	assert.Equal(t, entity.RoleStaff, second.User.Role)
	assert.Equal(t, entity.UserStatusPending, second.User.Status)
	assert.Nil(t, second.Tokens)
	assert.ErrorIs(t, second.Err(), workflow.ErrPendingApproval)

	_, err = register(env, "WORKER@cmg.test", "Again")
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"empty email", RegisterRequest{Name: "A", Password: "secret1", ConfirmPassword: "secret1"}, "email"},
		{"bad email", RegisterRequest{Email: "not-an-email", Name: "A", Password: "secret1", ConfirmPassword: "secret1"}, "email"},
		{"empty name", RegisterRequest{Email: "a@cmg.test", Password: "secret1", ConfirmPassword: "secret1"}, "name"},
		{"short password", RegisterRequest{Email: "a@cmg.test", Name: "A", Password: "abc", ConfirmPassword: "abc"}, "password"},
		{"mismatch", RegisterRequest{Email: "a@cmg.test", Name: "A", Password: "secret1", ConfirmPassword: "secret2"}, "confirm_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Auth.Register(env.ctx, &tt.req)
			var ve *workflow.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	n, _ := env.mem.Users.Count(env.ctx)
	assert.Zero(t, n)
}

func TestAuthService_SignIn(t *testing.T) {
	env := newTestEnv(t)
	_, err := register(env, "admin@cmg.test", "Admin")
	require.NoError(t, err)
	pending, err := register(env, "pending@cmg.test", "Pending")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.svc.Auth.SignIn(env.ctx, "admin@cmg.test", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.svc.Auth.SignIn(env.ctx, "ghost@cmg.test", "secret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("approved", func(t *testing.T) {
		res, err := env.svc.Auth.SignIn(env.ctx, "ADMIN@cmg.test", "secret1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeOK, res.Outcome)
		require.NotNil(t, res.Tokens)
		stored, _ := env.mem.Users.FindByID(env.ctx, res.User.ID)
		require.NotNil(t, stored.LastLoginAt)
		assert.True(t, stored.LastLoginAt.Equal(testNow))
	})

	t.Run("pending gets no tokens", func(t *testing.T) {
		res, err := env.svc.Auth.SignIn(env.ctx, "pending@cmg.test", "secret1")
		require.NoError(t, err)
		assert.Equal(t, OutcomePendingApproval, res.Outcome)
		assert.Nil(t, res.Tokens)
	})

	t.Run("rejected gets no tokens", func(t *testing.T) {
		u, _ := env.mem.Users.FindByID(env.ctx, pending.User.ID)
		u.Status = entity.UserStatusRejected
		require.NoError(t, env.mem.Users.Update(env.ctx, u))

		res, err := env.svc.Auth.SignIn(env.ctx, "pending@cmg.test", "secret1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.Nil(t, res.Tokens)
		assert.ErrorIs(t, res.Err(), workflow.ErrAccountRejected)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	env := newTestEnv(t)
	first, err := register(env, "admin@cmg.test", "Admin")
	require.NoError(t, err)

	rotated, err := env.svc.Auth.RefreshToken(env.ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rotated.Outcome)
	require.NotNil(t, rotated.Tokens)
	assert.NotEqual(t, first.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	// a refresh token is single use
	_, err = env.svc.Auth.RefreshToken(env.ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// access tokens are not refresh tokens
	_, err = env.svc.Auth.RefreshToken(env.ctx, rotated.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.svc.Auth.RefreshToken(env.ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	u, _ := env.mem.Users.FindByID(env.ctx, first.User.ID)
	u.Status = entity.UserStatusRejected
	require.NoError(t, env.mem.Users.Update(env.ctx, u))
	blocked, err := env.svc.Auth.RefreshToken(env.ctx, rotated.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, blocked.Outcome)
	assert.Nil(t, blocked.Tokens)
}

func TestAuthService_SignOut(t *testing.T) {
	env := newTestEnv(t)
	res, err := register(env, "admin@cmg.test", "Admin")
	require.NoError(t, err)

	require.NoError(t, env.svc.Auth.SignOut(env.ctx, res.Tokens.RefreshToken))
	_, err = env.svc.Auth.RefreshToken(env.ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	_, err := register(env, "admin@cmg.test", "Admin")
	require.NoError(t, err)

	require.NoError(t, env.svc.Auth.RequestPasswordReset(env.ctx, "ghost@cmg.test"))
	assert.Empty(t, env.mailer.sent())

	require.NoError(t, env.svc.Auth.RequestPasswordReset(env.ctx, "admin@cmg.test"))
	links := env.mailer.sent()
	require.Len(t, links, 1)
	require.True(t, strings.HasPrefix(links[0], "http://site.test/reset-password?token="), links[0])
	link, err := url.Parse(links[0])
	require.NoError(t, err)
	token := link.Query().Get("token")

	err = env.svc.Auth.ResetPassword(env.ctx, token, "newpass1", "different")
	var ve *workflow.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, env.svc.Auth.ResetPassword(env.ctx, token, "newpass1", "newpass1"))
	assert.ErrorIs(t, env.svc.Auth.ResetPassword(env.ctx, token, "newpass2", "newpass2"), ErrInvalidToken)

	_, err = env.svc.Auth.SignIn(env.ctx, "admin@cmg.test", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	res, err := env.svc.Auth.SignIn(env.ctx, "admin@cmg.test", "newpass1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
}

// fakeGoogle serves the token and userinfo endpoints of the code flow.
func fakeGoogle(t *testing.T, profiles map[string]GoogleProfile) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		code := r.Form.Get("code")
		if _, ok := profiles[code]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-" + code,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer at-")
		p, ok := profiles[code]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthService_SignInWithGoogle(t *testing.T) {
	env := newTestEnv(t)
	srv := fakeGoogle(t, map[string]GoogleProfile{
		"code-owner":  {Subject: "g-1", Email: "owner@cmg.test", Name: "Owner"},
		"code-worker": {Subject: "g-2", Email: "worker@cmg.test", Name: "Worker"},
		"code-linked": {Subject: "g-3", Email: "linked@cmg.test", Name: "Linked"},
	})
	google := newGoogleOAuth(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://site.test/api/v1/auth/google/callback",
		Endpoint:     oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, srv.URL+"/userinfo")
	auth := NewAuthService(newBase(env.deps), env.rdb, env.cfg.JWT, google, env.mailer, env.cfg.Server.PublicURL)

	state := func() string {
		t.Helper()
		raw, err := auth.GoogleLoginURL(env.ctx)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		s := u.Query().Get("state")
		require.NotEmpty(t, s)
		return s
	}

	t.Run("first user becomes admin", func(t *testing.T) {
		res, err := auth.SignInWithGoogle(env.ctx, "code-owner", state())
		require.NoError(t, err)
		assert.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, entity.RoleAdmin, res.User.Role)
		assert.Equal(t, "g-1", res.User.GoogleSubject)
	})

	t.Run("unknown email registers pending", func(t *testing.T) {
		res, err := auth.SignInWithGoogle(env.ctx, "code-worker", state())
		require.NoError(t, err)
		assert.Equal(t, OutcomePendingApproval, res.Outcome)
		assert.Nil(t, res.Tokens)
		n, _ := env.mem.Users.Count(env.ctx)
		assert.EqualValues(t, 2, n)

		again, err := auth.SignInWithGoogle(env.ctx, "code-worker", state())
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, again.User.ID)
		n, _ = env.mem.Users.Count(env.ctx)
		assert.EqualValues(t, 2, n)
	})

	t.Run("existing email is linked", func(t *testing.T) {
		existing := env.mem.Users.Put(entity.User{Email: "linked@cmg.test", Name: "Linked", Role: entity.RolePM, Status: entity.UserStatusApproved})
		res, err := auth.SignInWithGoogle(env.ctx, "code-linked", state())
		require.NoError(t, err)
		assert.Equal(t, OutcomeOK, res.Outcome)
		assert.Equal(t, existing.ID, res.User.ID)
		stored, _ := env.mem.Users.FindByID(env.ctx, existing.ID)
		assert.Equal(t, "g-3", stored.GoogleSubject)
	})

	t.Run("state is single use", func(t *testing.T) {
		s := state()
		_, err := auth.SignInWithGoogle(env.ctx, "code-owner", s)
		require.NoError(t, err)
		_, err = auth.SignInWithGoogle(env.ctx, "code-owner", s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad code", func(t *testing.T) {
		_, err := auth.SignInWithGoogle(env.ctx, "code-unknown", state())
		assert.Error(t, err)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := env.svc.Auth.GoogleLoginURL(env.ctx)
		assert.ErrorIs(t, err, ErrGoogleDisabled)
	})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

// Redis key prefixes
const (
	refreshKeyPrefix = "token:refresh:"
	resetKeyPrefix   = "token:reset:"
	stateKeyPrefix   = "oauth:state:"
)

const oauthStateTTL = 10 * time.Minute

// 认证错误
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
)

// SignInOutcome 登录结果
type SignInOutcome string

const (
	OutcomeOK              SignInOutcome = "ok"
	OutcomePendingApproval SignInOutcome = "pending_approval"
	OutcomeRejected        SignInOutcome = "rejected"
	OutcomeNotFound        SignInOutcome = "not_found"
)

// SignInResult carries tokens only when Outcome is OutcomeOK.
type SignInResult struct {
	Outcome SignInOutcome `json:"outcome"`
	User    *entity.User  `json:"user,omitempty"`
	Tokens  *TokenPair    `json:"tokens,omitempty"`
}

// Err returns the error a blocked sign-in surfaces, nil for OutcomeOK.
func (r SignInResult) Err() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomePendingApproval:
		return workflow.ErrPendingApproval
	case OutcomeRejected:
		return workflow.ErrAccountRejected
	}
	return workflow.ErrRecordNotFound
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Position        string `json:"position"`
}

// AuthService 认证服务
type AuthService struct {
	*base
	rdb       *redis.Client
	jwt       config.JWTConfig
	google    GoogleIdentity
	mailer    Mailer
	publicURL string
}

// NewAuthService 创建认证服务. google may be nil when Google sign-in is off.
func NewAuthService(b *base, rdb *redis.Client, jwtCfg config.JWTConfig, google GoogleIdentity, mailer Mailer, publicURL string) *AuthService {
	if mailer == nil {
		mailer = NewLogMailer(b.logger)
	}
	return &AuthService{
		base:      b,
		rdb:       rdb,
		jwt:       jwtCfg,
		google:    google,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Register creates a Pending Staff account. The first account ever created
// becomes an Approved Admin.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (SignInResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" {
		return SignInResult{}, workflow.Invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return SignInResult{}, workflow.Invalid("email", "is not a valid address")
	}
	if name == "" {
		return SignInResult{}, workflow.Invalid("name", "is required")
	}
	if err := validatePassword(req.Password, req.ConfirmPassword); err != nil {
		return SignInResult{}, err
	}

	if _, err := s.stores.Users.FindByEmail(ctx, email); err == nil {
		return SignInResult{}, fmt.Errorf("%w: email %s is registered", workflow.ErrConflict, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return SignInResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return SignInResult{}, fmt.Errorf("hash password: %w", err)
	}
	user := &entity.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        strings.TrimSpace(req.Phone),
		Position:     strings.TrimSpace(req.Position),
	}
	if err := s.createUser(ctx, user); err != nil {
		return SignInResult{}, err
	}
	return s.complete(ctx, user)
}

// SignIn 邮箱密码登录
func (s *AuthService) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	user, err := s.stores.Users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return SignInResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return SignInResult{}, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return SignInResult{}, ErrInvalidCredentials
	}
	return s.complete(ctx, user)
}

// GoogleLoginURL returns the consent URL with a fresh state value.
func (s *AuthService) GoogleLoginURL(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	state := uuid.New().String()
	if err := s.rdb.Set(ctx, stateKeyPrefix+state, "1", oauthStateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.google.AuthCodeURL(state), nil
}

// SignInWithGoogle completes the code flow. Unknown emails are registered
// under the same bootstrap rule as Register.
func (s *AuthService) SignInWithGoogle(ctx context.Context, code, state string) (SignInResult, error) {
	if s.google == nil {
		return SignInResult{}, ErrGoogleDisabled
	}
	if err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Err(); err != nil {
		return SignInResult{}, fmt.Errorf("%w: oauth state", ErrInvalidToken)
	}
	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return SignInResult{}, fmt.Errorf("google sign-in: %w", err)
	}

	user, err := s.stores.Users.FindByGoogleSubject(ctx, profile.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.stores.Users.FindByEmail(ctx, profile.Email)
		if err == nil && user.GoogleSubject == "" {
			user.GoogleSubject = profile.Subject
			if err := s.stores.Users.Update(ctx, user); err != nil {
				return SignInResult{}, writeErr("link google account", err)
			}
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = profile.Email
		}
		user = &entity.User{Email: profile.Email, GoogleSubject: profile.Subject, Name: name}
		if err := s.createUser(ctx, user); err != nil {
			return SignInResult{}, err
		}
		err = nil
	}
	if err != nil {
		return SignInResult{}, err
	}
	return s.complete(ctx, user)
}

// RefreshToken rotates a refresh token. The user's current status decides
// whether new tokens are issued.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (SignInResult, error) {
	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return SignInResult{}, err
	}
	jti, _ := claims["jti"].(string)
	userID, err := s.rdb.GetDel(ctx, refreshKeyPrefix+jti).Result()
	if err != nil {
		return SignInResult{}, ErrInvalidToken
	}

	user, err := s.stores.Users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return SignInResult{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return SignInResult{}, err
	}
	if outcome := outcomeFor(user); outcome != OutcomeOK {
		return SignInResult{Outcome: outcome, User: user}, nil
	}
	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Outcome: OutcomeOK, User: user, Tokens: tokens}, nil
}

// SignOut revokes a refresh token.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return err
	}
	jti, _ := claims["jti"].(string)
	return s.rdb.Del(ctx, refreshKeyPrefix+jti).Err()
}

// RequestPasswordReset mails a reset link. Unknown emails are ignored.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.stores.Users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("password reset for unknown email", zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.New().String()
	if err := s.rdb.Set(ctx, resetKeyPrefix+token, user.ID, s.jwt.ResetTokenExpire).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := s.publicURL + "/reset-password?token=" + token
	return s.mailer.SendPasswordReset(ctx, user, link)
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	userID, err := s.rdb.GetDel(ctx, resetKeyPrefix+token).Result()
	if err != nil {
		return ErrInvalidToken
	}
	user, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	if err := s.stores.Users.Update(ctx, user); err != nil {
		return writeErr("reset password", err)
	}
	s.record(ctx, user, entity.LogEntityUser, user.ID, user.Email, "reset_password", "", "", "")
	return nil
}

// CurrentUser 当前用户
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// createUser applies the bootstrap rule and persists user. The empty-table
// check and the insert are not atomic.
func (s *AuthService) createUser(ctx context.Context, user *entity.User) error {
	n, err := s.stores.Users.Count(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	user.Role = entity.RoleStaff
	user.Status = entity.UserStatusPending
	if n == 0 {
		user.Role = entity.RoleAdmin
		user.Status = entity.UserStatusApproved
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := s.stores.Users.Create(ctx, user); err != nil {
		return writeErr("create user", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.String("status", user.Status))
	s.record(ctx, user, entity.LogEntityUser, user.ID, user.Email, "register", "", user.Status, "")
	s.publish(ctx, sse.CollectionUsers, user.ID, sse.ActionCreate, "")
	return nil
}

// complete finishes a sign-in. Blocked accounts get no tokens.
func (s *AuthService) complete(ctx context.Context, user *entity.User) (SignInResult, error) {
	if outcome := outcomeFor(user); outcome != OutcomeOK {
		return SignInResult{Outcome: outcome, User: user}, nil
	}
	now := s.now()
	user.LastLoginAt = &now
	if err := s.stores.Users.Update(ctx, user); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Outcome: OutcomeOK, User: user, Tokens: tokens}, nil
}

func outcomeFor(user *entity.User) SignInOutcome {
	switch user.Status {
	case entity.UserStatusApproved:
		return OutcomeOK
	case entity.UserStatusRejected:
		return OutcomeRejected
	}
	return OutcomePendingApproval
}

// generateTokenPair 生成Token对
func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := s.clock()
	role, ok := entity.NormalizeRole(user.Role)
	if !ok {
		role = user.Role
	}

	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"uid":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  role,
		"typ":   "access",
		"iss":   s.jwt.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.jwt.AccessTokenExpire).Unix(),
		"jti":   uuid.New().String(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub": user.ID,
		"typ": "refresh",
		"iss": s.jwt.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.jwt.RefreshTokenExpire).Unix(),
		"jti": refreshJti,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	// 存储Refresh Token到Redis
	if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshJti, user.ID, s.jwt.RefreshTokenExpire).Err(); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.AccessTokenExpire.Seconds()),
	}, nil
}

func (s *AuthService) parse(tokenString, typ string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwt.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid || claims["typ"] != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validatePassword(password, confirm string) error {
	if password == "" {
		return workflow.Invalid("password", "is required")
	}
	if len(password) < minPasswordLen {
		return workflow.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if password != confirm {
		return workflow.Invalid("confirm_password", "passwords do not match")
	}
	return nil
}

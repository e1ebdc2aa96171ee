package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/app/observability/metrics"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	Register(ctx context.Context, req types.RegisterRequest) (types.UserResponse, error)
	RegisterAdmin(ctx context.Context, req types.RegisterRequest) (types.UserResponse, error)
	RegisterAndLogin(ctx context.Context, req types.RegisterRequest) (types.RegisterResponse, error)
	Login(ctx context.Context, login, password string) (types.TokenResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (types.UserResponse, error)
	ChangeLogin(ctx context.Context, userID uuid.UUID, newLogin, currentPassword string) (types.UserResponse, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
}

// RegistrationHook runs after a new user row is committed. Hooks cannot fail the registration.
type RegistrationHook func(ctx context.Context, evt types.UserRegistered)

type AuthServiceImpl struct {
	logger *slog.Logger
	pool   database.Pool
	repo   UserRepo
	hasher PasswordHasher
	tokens TokenIssuer
	hooks  []RegistrationHook

	decoyOnce sync.Once
	decoySalt string
	decoyHash string
}

func NewAuthService(repo UserRepo, pool database.Pool, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		pool:   pool,
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// OnUserRegistered appends a hook. Call it while wiring, before serving requests.
func (s *AuthServiceImpl) OnUserRegistered(hook RegistrationHook) {
	s.hooks = append(s.hooks, hook)
}

// verifyDecoy runs one password comparison against a throwaway hash, so a login
// for an unknown user costs the same bcrypt work as a wrong password.
func (s *AuthServiceImpl) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		salt, err := s.hasher.GenerateSalt()
		if err != nil {
			s.logger.Warn("Failed to prepare decoy credentials", slog.Any("error", err))
			return
		}
		hash, err := s.hasher.Hash(salt, salt)
		if err != nil {
			s.logger.Warn("Failed to prepare decoy credentials", slog.Any("error", err))
			return
		}
		s.decoySalt, s.decoyHash = salt, hash
	})
	s.hasher.Verify(password, s.decoySalt, s.decoyHash)
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return api.BadRequest("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return api.BadRequest("Password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (types.UserResponse, error) {
	return s.register(ctx, req, types.RoleUser)
}

func (s *AuthServiceImpl) RegisterAdmin(ctx context.Context, req types.RegisterRequest) (types.UserResponse, error) {
	return s.register(ctx, req, types.RoleAdmin)
}

func (s *AuthServiceImpl) register(ctx context.Context, req types.RegisterRequest, role types.Role) (types.UserResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.role", string(role)),
	))
	defer span.End()
	start := time.Now()
	m := metrics.Get()

	l := s.logger.With(slog.String("method", "Register"))

	login := strings.TrimSpace(req.Login)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if login == "" {
		return types.UserResponse{}, api.BadRequest("Login is required")
	}
	if email == "" {
		return types.UserResponse{}, api.BadRequest("Email is required")
	}
	if err := validatePassword(req.Password); err != nil {
		return types.UserResponse{}, err
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Salt generation failed")
		return types.UserResponse{}, err
	}
	hash, err := s.hasher.Hash(req.Password, salt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return types.UserResponse{}, err
	}

	user, created, err := s.repo.CreateIfAbsent(ctx, types.User{
		Role:         role,
		Login:        login,
		PasswordHash: hash,
		Salt:         salt,
		Email:        email,
		FullName:     req.FullName,
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		return types.UserResponse{}, err
	}
	if !created {
		l.InfoContext(ctx, "Registration rejected, login or email taken", slog.String("login", login))
		span.SetStatus(codes.Error, "Already exists")
		m.RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "conflict")))
		return types.UserResponse{}, api.AlreadyExists("Login or email already exists")
	}

	m.RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "created")))
	m.RegisterDurationSeconds.Record(ctx, time.Since(start).Seconds())
	l.InfoContext(ctx, "Registered user", slog.String("role", string(user.Role)), slog.String("userID", user.ID.String()), slog.String("login", user.Login))
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	span.SetStatus(codes.Ok, "")

	s.runHooks(ctx, types.UserRegistered{UserID: user.ID, Login: user.Login, Email: user.Email, Role: user.Role})
	return types.ToUserResponse(user), nil
}

func (s *AuthServiceImpl) runHooks(ctx context.Context, evt types.UserRegistered) {
	for i, hook := range s.hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.logger.ErrorContext(ctx, "Registration hook panicked", slog.Int("hook", i), slog.Any("panic", p))
				}
			}()
			hook(ctx, evt)
		}()
	}
}

func (s *AuthServiceImpl) RegisterAndLogin(ctx context.Context, req types.RegisterRequest) (types.RegisterResponse, error) {
	user, err := s.Register(ctx, req)
	if err != nil {
		return types.RegisterResponse{}, err
	}
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return types.RegisterResponse{}, err
	}
	return types.RegisterResponse{User: user, Token: token}, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, login, password string) (types.TokenResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()
	m := metrics.Get()

	l := s.logger.With(slog.String("method", "Login"))

	fail := func(reason string, err error) (types.TokenResponse, error) {
		m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", reason)))
		span.SetStatus(codes.Error, reason)
		return types.TokenResponse{}, err
	}

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return fail("invalid_credentials", api.Unauthorized("Invalid credentials"))
	}

	user, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.verifyDecoy(password)
			l.InfoContext(ctx, "Login for unknown user")
			return fail("invalid_credentials", api.Unauthorized("Invalid credentials"))
		}
		span.RecordError(err)
		return fail("error", err)
	}

	if !s.hasher.Verify(password, user.Salt, user.PasswordHash) {
		l.InfoContext(ctx, "Login with wrong password", slog.String("userID", user.ID.String()))
		return fail("invalid_credentials", api.Unauthorized("Invalid credentials"))
	}
	if user.IsDeleted {
		return fail("deleted", api.NotFound("User not found"))
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		span.RecordError(err)
		return fail("error", err)
	}

	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "")
	return token, nil
}

func (s *AuthServiceImpl) activeUser(ctx context.Context, repo UserRepo, userID uuid.UUID, lock bool) (types.User, error) {
	var (
		user types.User
		err  error
	)
	if lock {
		user, err = repo.GetByIDForUpdate(ctx, userID)
	} else {
		user, err = repo.GetByID(ctx, userID)
	}
	if err != nil {
		return types.User{}, err
	}
	if user.IsDeleted {
		return types.User{}, api.NotFound("User not found")
	}
	return user, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (types.UserResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Me", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	user, err := s.activeUser(ctx, s.repo, userID, false)
	if err != nil {
		span.RecordError(err)
		return types.UserResponse{}, err
	}
	return types.ToUserResponse(user), nil
}

func (s *AuthServiceImpl) ChangeLogin(ctx context.Context, userID uuid.UUID, newLogin, currentPassword string) (types.UserResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ChangeLogin", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangeLogin"), slog.String("userID", userID.String()))

	newLogin = strings.TrimSpace(newLogin)
	if newLogin == "" {
		return types.UserResponse{}, api.BadRequest("New login is required")
	}

	user, err := s.activeUser(ctx, s.repo, userID, false)
	if err != nil {
		return types.UserResponse{}, err
	}
	if newLogin == user.Login {
		return types.UserResponse{}, api.BadRequest("New login must differ from the current one")
	}
	if !s.hasher.Verify(currentPassword, user.Salt, user.PasswordHash) {
		span.SetStatus(codes.Error, "Wrong password")
		return types.UserResponse{}, api.Unauthorized("Invalid credentials")
	}

	ok, err := s.repo.UpdateLoginIfAvailable(ctx, userID, newLogin)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update login", slog.Any("error", err))
		span.RecordError(err)
		return types.UserResponse{}, err
	}
	if !ok {
		span.SetStatus(codes.Error, "Login taken")
		return types.UserResponse{}, api.AlreadyExists("Login already exists")
	}

	l.InfoContext(ctx, "Login changed", slog.String("old", user.Login), slog.String("new", newLogin))
	user.Login = newLogin
	span.SetStatus(codes.Ok, "")
	return types.ToUserResponse(user), nil
}

// ChangePassword replaces salt and hash together while holding the user row lock.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ChangePassword", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	l := s.logger.With(slog.String("method", "ChangePassword"), slog.String("userID", userID.String()))

	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == currentPassword {
		return api.BadRequest("New password must differ from the current one")
	}

	err := database.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		user, err := s.activeUser(ctx, repo, userID, true)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(currentPassword, user.Salt, user.PasswordHash) {
			return api.Unauthorized("Invalid credentials")
		}

		salt, err := s.hasher.GenerateSalt()
		if err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword, salt)
		if err != nil {
			return err
		}
		return repo.UpdateCredentials(ctx, userID, hash, salt)
	})
	if err != nil {
		l.WarnContext(ctx, "Password change failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password change failed")
		return fmt.Errorf("change password: %w", err)
	}

	l.InfoContext(ctx, "Password changed")
	span.SetStatus(codes.Ok, "")
	return nil
}

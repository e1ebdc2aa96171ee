package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService manages accounts on behalf of administrators and of the users themselves.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (types.UserResponse, error)
	ListUsers(ctx context.Context, includeDeleted bool, page types.PageRequest) (types.PagedResult[types.UserResponse], error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req types.UpdateProfileRequest) (types.UserResponse, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   auth.UserRepo
}

func NewUserService(repo auth.UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetUser", trace.WithAttributes(attribute.String("user.id", id.String())))
	defer span.End()

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Fetch failed")
		return types.UserResponse{}, err
	}
	return types.ToUserResponse(u), nil
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, includeDeleted bool, page types.PageRequest) (types.PagedResult[types.UserResponse], error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()

	result, err := s.repo.List(ctx, includeDeleted, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		return types.PagedResult[types.UserResponse]{}, err
	}
	return types.MapPage(result, types.ToUserResponse), nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, id uuid.UUID, req types.UpdateProfileRequest) (types.UserResponse, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateProfile", trace.WithAttributes(attribute.String("user.id", id.String())))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", id.String()))

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			return types.UserResponse{}, api.BadRequest("Email must not be blank")
		}
		req.Email = &email
	}

	u, err := s.repo.UpdateProfile(ctx, id, req.Email, req.FullName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		return types.UserResponse{}, err
	}

	l.InfoContext(ctx, "Updated profile")
	span.SetStatus(codes.Ok, "")
	return types.ToUserResponse(u), nil
}

func (s *UserServiceImpl) change(ctx context.Context, name string, id uuid.UUID, fn func(context.Context, uuid.UUID) (bool, error)) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, name, trace.WithAttributes(attribute.String("user.id", id.String())))
	defer span.End()

	ok, err := fn(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	if !ok {
		span.SetStatus(codes.Error, "User not found")
		return api.NotFound("User not found")
	}
	s.logger.InfoContext(ctx, "User state changed", slog.String("method", name), slog.String("userID", id.String()))
	return nil
}

func (s *UserServiceImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return s.change(ctx, "SoftDelete", id, s.repo.SoftDelete)
}

func (s *UserServiceImpl) Restore(ctx context.Context, id uuid.UUID) error {
	return s.change(ctx, "Restore", id, s.repo.Restore)
}

func (s *UserServiceImpl) HardDelete(ctx context.Context, id uuid.UUID) error {
	return s.change(ctx, "HardDelete", id, s.repo.HardDelete)
}

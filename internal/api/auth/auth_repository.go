package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/internal/api"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo persists users. Lookups that match nothing return api.ErrNotFound.
type UserRepo interface {
	// WithTx returns a repo bound to tx.
	WithTx(tx database.DBTX) UserRepo

	// CreateIfAbsent inserts u unless its login or email is taken, in which
	// case the owner of the key is returned with created=false.
	CreateIfAbsent(ctx context.Context, u types.User) (types.User, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	UpdateCredentials(ctx context.Context, id uuid.UUID, passwordHash, salt string) error
	UpdateLoginIfAvailable(ctx context.Context, id uuid.UUID, login string) (bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, email, fullName *string) (types.User, error)

	List(ctx context.Context, includeDeleted bool, page types.PageRequest) (types.PagedResult[types.User], error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Restore(ctx context.Context, id uuid.UUID) (bool, error)
	HardDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

const userColumns = "id, role, login, password_hash, salt, email, full_name, is_deleted, created_at, updated_at"

func userFields(u *types.User) []any {
	return []any{&u.ID, &u.Role, &u.Login, &u.PasswordHash, &u.Salt, &u.Email, &u.FullName, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt}
}

type PostgresUserRepo struct {
	logger *slog.Logger
	db     database.DBTX
}

func NewPostgresUserRepo(db database.DBTX, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresUserRepo) WithTx(tx database.DBTX) UserRepo {
	return &PostgresUserRepo{logger: r.logger, db: tx}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, semconv.DBSystemPostgreSQL, attribute.String("db.sql.table", "users"))
	return otel.Tracer("UserRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *PostgresUserRepo) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	var u types.User
	err := r.db.QueryRow(ctx, query, arg).Scan(userFields(&u)...)
	return u, err
}

func (r *PostgresUserRepo) CreateIfAbsent(ctx context.Context, u types.User) (types.User, bool, error) {
	ctx, span := startSpan(ctx, "CreateIfAbsent", attribute.String("user.login", u.Login))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateIfAbsent"), slog.String("login", u.Login))

	insert := func(ctx context.Context) (types.User, error) {
		var created types.User
		err := r.db.QueryRow(ctx, `
			INSERT INTO users (role, login, password_hash, salt, email, full_name)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
			RETURNING `+userColumns,
			string(u.Role), u.Login, u.PasswordHash, u.Salt, u.Email, u.FullName,
		).Scan(userFields(&created)...)
		return created, err
	}
	refetch := func(ctx context.Context) (types.User, error) {
		existing, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE login = $1", u.Login)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", u.Email)
		}
		return existing, err
	}

	user, created, err := database.CreateIfAbsent(ctx, insert, refetch)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return types.User{}, false, fmt.Errorf("database error creating user: %w", err)
	}

	span.SetAttributes(attribute.Bool("user.created", created))
	if created {
		l.InfoContext(ctx, "User inserted", slog.String("userID", user.ID.String()))
	} else {
		l.DebugContext(ctx, "Login or email already taken", slog.String("existingID", user.ID.String()))
	}
	span.SetStatus(codes.Ok, "")
	return user, created, nil
}

func (r *PostgresUserRepo) lookup(ctx context.Context, method, query string, arg any) (types.User, error) {
	ctx, span := startSpan(ctx, method)
	defer span.End()

	u, err := r.getOne(ctx, query, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "User not found")
			return types.User{}, api.NotFound("User not found")
		}
		r.logger.ErrorContext(ctx, "Failed to fetch user", slog.String("method", method), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.User{}, fmt.Errorf("database error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return u, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return r.lookup(ctx, "GetByID", "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (r *PostgresUserRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (types.User, error) {
	return r.lookup(ctx, "GetByIDForUpdate", "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
}

func (r *PostgresUserRepo) GetByLogin(ctx context.Context, login string) (types.User, error) {
	return r.lookup(ctx, "GetByLogin", "SELECT "+userColumns+" FROM users WHERE login = $1", login)
}

func (r *PostgresUserRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, "Exists", attribute.String("user.id", id.String()))
	defer span.End()

	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_deleted = FALSE)", id).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return false, fmt.Errorf("database error checking user: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, passwordHash, salt string) error {
	ctx, span := startSpan(ctx, "UpdateCredentials", attribute.String("user.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx,
		"UPDATE users SET password_hash = $2, salt = $3, updated_at = NOW() WHERE id = $1",
		id, passwordHash, salt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update credentials", slog.String("userID", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("database error updating credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "User not found")
		return api.NotFound("User not found")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateLoginIfAvailable reports false when another user already holds login.
func (r *PostgresUserRepo) UpdateLoginIfAvailable(ctx context.Context, id uuid.UUID, login string) (bool, error) {
	ctx, span := startSpan(ctx, "UpdateLoginIfAvailable", attribute.String("user.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, `
		UPDATE users SET login = $2, updated_at = NOW()
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM users WHERE login = $2 AND id <> $1)`,
		id, login)
	if err != nil {
		if database.IsUniqueViolation(err) {
			span.SetStatus(codes.Error, "Login taken")
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Failed to update login", slog.String("userID", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return false, fmt.Errorf("database error updating login: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, email, fullName *string) (types.User, error) {
	ctx, span := startSpan(ctx, "UpdateProfile", attribute.String("user.id", id.String()))
	defer span.End()

	var u types.User
	err := r.db.QueryRow(ctx, `
		UPDATE users SET email = COALESCE($2, email), full_name = COALESCE($3, full_name), updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, email, fullName,
	).Scan(userFields(&u)...)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			span.SetStatus(codes.Error, "User not found")
			return types.User{}, api.NotFound("User not found")
		case database.IsUniqueViolation(err):
			span.SetStatus(codes.Error, "Email taken")
			return types.User{}, api.AlreadyExists("Email already registered")
		}
		r.logger.ErrorContext(ctx, "Failed to update profile", slog.String("userID", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return types.User{}, fmt.Errorf("database error updating profile: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return u, nil
}

func (r *PostgresUserRepo) List(ctx context.Context, includeDeleted bool, page types.PageRequest) (types.PagedResult[types.User], error) {
	ctx, span := startSpan(ctx, "List", attribute.Bool("include_deleted", includeDeleted))
	defer span.End()

	from := "users WHERE is_deleted = FALSE"
	if includeDeleted {
		from = "users"
	}
	result, err := database.QueryPage(ctx, r.db, database.PageQuery{
		Columns: userColumns,
		From:    from,
		OrderBy: "created_at DESC, id DESC",
	}, page, userFields)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.PagedResult[types.User]{}, fmt.Errorf("database error listing users: %w", err)
	}
	span.SetAttributes(attribute.Int64("result.total", result.Total))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (r *PostgresUserRepo) execByID(ctx context.Context, method, query string, id uuid.UUID) (bool, error) {
	ctx, span := startSpan(ctx, method, attribute.String("user.id", id.String()))
	defer span.End()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "User statement failed", slog.String("method", method), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB statement failed")
		return false, fmt.Errorf("database error in %s: %w", method, err)
	}
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresUserRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.execByID(ctx, "SoftDelete", "UPDATE users SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1", id)
}

func (r *PostgresUserRepo) Restore(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.execByID(ctx, "Restore", "UPDATE users SET is_deleted = FALSE, updated_at = NOW() WHERE id = $1", id)
}

func (r *PostgresUserRepo) HardDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.execByID(ctx, "HardDelete", "DELETE FROM users WHERE id = $1", id)
}

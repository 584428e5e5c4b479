package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/rei-deal-drop/internal/database"
	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
)

const userColumns = `id, email, password_hash, role, created_at, updated_at`

// userRepository implements UserRepository
type userRepository struct {
	db      dbExecutor
	dialect database.Dialect
}

// NewUserRepository creates a new user repository
func NewUserRepository(db dbExecutor, dialect database.Dialect) UserRepository {
	return &userRepository{db: db, dialect: dialect}
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := database.Rebind(r.dialect, `SELECT `+userColumns+` FROM users WHERE id = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "user not found")
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := database.Rebind(r.dialect, `SELECT `+userColumns+` FROM users WHERE email = ?`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, normalizeEmail(email)), "user with email "+email+" not found")
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.Email = normalizeEmail(user.Email)
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.Role.Valid() {
		return errors.ValidationError("unknown role", nil).WithDetails(string(user.Role))
	}

	query := database.Rebind(r.dialect, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.Conflict("email already registered", err)
		}
		return errors.DatabaseError("failed to create user", err)
	}

	return nil
}

func (r *userRepository) scanOne(row *sql.Row, notFound string) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound(notFound, err)
		}
		return nil, errors.DatabaseError("failed to get user", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

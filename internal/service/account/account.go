package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursehub/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("email or username already registered")
	ErrNotFound           = errors.New("user not found")
)

// Service handles user registration, login and lookup.
type Service struct {
	db *sql.DB
}

// NewService builds a new account service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      models.Role `json:"role"`
}

func (in *RegisterInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Email == "" || in.Password == "" || in.Username == "" || in.FirstName == "" || in.LastName == "" {
		return errors.New("please fill in all fields")
	}
	if !strings.Contains(in.Email, "@") {
		return errors.New("invalid email")
	}
	if len(in.Password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	// admins are provisioned out of band
	if in.Role != models.RoleStudent && in.Role != models.RoleInstructor {
		return fmt.Errorf("role %q cannot be self-registered", in.Role)
	}
	return nil
}

// Register creates a user with the supplied credentials.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? OR username = ?)`,
		in.Email, in.Username,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin provisions an admin account; used by bootstrap, never by the HTTP API.
func (s *Service) CreateAdmin(ctx context.Context, email, username, password string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FirstName:    "Site",
		LastName:     "Admin",
		Role:         models.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) insert(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, profile_image, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), u.ProfileImage, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login validates credentials and returns the user profile.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("please fill in all fields")
	}
	user, err := s.scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// hide whether the account exists
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

// DeleteUser removes a user and cascaded data.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectUser = `SELECT id, username, email, password_hash, first_name, last_name, role, profile_image, created_at, updated_at FROM users`

func (s *Service) scanUser(row *sql.Row) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.ProfileImage, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

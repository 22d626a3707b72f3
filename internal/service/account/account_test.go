package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"coursehub/internal/config"
	"coursehub/internal/models"
	"coursehub/internal/storage"
)

func init() {
	hashCost = bcrypt.MinCost
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:     "Alice@Example.com",
		Password:  "secret1",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	user, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == "" || user.Role != models.RoleStudent {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "secret1" {
		t.Fatalf("password stored in plaintext")
	}

	got, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}
	if _, err := svc.Login(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	loaded, err := svc.GetUser(ctx, user.ID)
	if err != nil || loaded.Username != "alice" {
		t.Fatalf("GetUser: %+v %v", loaded, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	short := validInput()
	short.Password = "12345"
	if _, err := svc.Register(ctx, short); err == nil {
		t.Fatalf("expected short password error")
	}

	admin := validInput()
	admin.Role = models.RoleAdmin
	if _, err := svc.Register(ctx, admin); err == nil {
		t.Fatalf("expected admin self-registration to fail")
	}

	missing := validInput()
	missing.FirstName = " "
	if _, err := svc.Register(ctx, missing); err == nil {
		t.Fatalf("expected missing field error")
	}

	instructor := validInput()
	instructor.Role = models.RoleInstructor
	if _, err := svc.Register(ctx, instructor); err != nil {
		t.Fatalf("Register instructor: %v", err)
	}
	dup := validInput()
	dup.Username = "someone-else"
	if _, err := svc.Register(ctx, dup); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	user, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := svc.GetUser(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteUser(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db)

	admin, err := svc.CreateAdmin(context.Background(), "root@example.com", "root", "rootpass")
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

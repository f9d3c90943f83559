// Package auth is the authentication collaborator: it stores credentials in
// its own sqlite database and hands the application a library.Session
// (username plus privilege flag). The lending core never imports this
// package.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/library"
)

// Roles a user can hold. Admins are privileged: they may change the catalog,
// students may only borrow and return.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password, without distinguishing the two.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service provides register/login/reset-password over a sqlite user table.
type Service struct {
	db *sql.DB
}

// Open opens (or creates) the user database at dbPath and applies the schema.
func Open(dbPath string) (*Service, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS users (
        username TEXT PRIMARY KEY,
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL DEFAULT 'student',
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error { return s.db.Close() }

// Register creates a user with a bcrypt-hashed password. An empty role means
// student.
func (s *Service) Register(username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if len(password) < 4 {
		return fmt.Errorf("password must be at least 4 characters")
	}
	if role == "" {
		role = RoleStudent
	}
	if role != RoleAdmin && role != RoleStudent {
		return fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO users(username, password_hash, role) VALUES(?,?,?)`,
		username, string(hash), role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("username %q is already taken", username)
		}
		return err
	}
	return nil
}

// Login verifies the credentials and returns the session identity the
// Coordinator expects at session start.
func (s *Service) Login(username, password string) (library.Session, error) {
	var hash, role string
	err := s.db.QueryRow(`SELECT password_hash, role FROM users WHERE username=?`, username).
		Scan(&hash, &role)
	if err == sql.ErrNoRows {
		return library.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return library.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return library.Session{}, ErrInvalidCredentials
	}
	return library.Session{Username: username, Privileged: role == RoleAdmin}, nil
}

// ResetPassword replaces the password after verifying the current one.
func (s *Service) ResetPassword(username, oldPassword, newPassword string) error {
	if _, err := s.Login(username, oldPassword); err != nil {
		return err
	}
	if len(newPassword) < 4 {
		return fmt.Errorf("password must be at least 4 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(`UPDATE users SET password_hash=? WHERE username=?`, string(hash), username)
	return err
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store is the PostgreSQL persistence layer. Lookups that match no
// row return nil, nil; unique violations surface as ErrDuplicate.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"broadcaster/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("store: duplicate record")

// APIKeyLen is the length of generated API secret keys.
const APIKeyLen = 13

const userColumns = `id, email, password_hash, api_secret_key, default_container_id, created_at, updated_at`

// UserStore persists users, their API keys and CMS settings.
type UserStore struct {
	db *sql.DB
}

// NewUserStore returns a UserStore on db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.APISecretKey, &u.DefaultContainerID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *UserStore) findOne(op, where string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// normalizeEmail makes addresses compare case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// update runs a single-user UPDATE of set and bumps updated_at. The user
// id is always the last placeholder.
func (s *UserStore) update(op string, userID uuid.UUID, set string, args ...any) (int64, error) {
	args = append(args, userID)
	res, err := s.db.Exec(
		fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d`, set, len(args)), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FindByEmail looks a user up by address, ignoring case.
func (s *UserStore) FindByEmail(email string) (*models.User, error) {
	return s.findOne("find user by email", "email", normalizeEmail(email))
}

// FindByID looks a user up by id.
func (s *UserStore) FindByID(id uuid.UUID) (*models.User, error) {
	return s.findOne("find user by id", "id", id)
}

// FindByAPIKey resolves an API secret key to its owner. Returns nil if no
// user holds the key.
func (s *UserStore) FindByAPIKey(key string) (*models.User, error) {
	if key == "" {
		return nil, nil
	}
	return s.findOne("find user by api key", "api_secret_key", key)
}

// Create inserts a new user. An empty password leaves the account
// password-less.
func (s *UserStore) Create(email, password string) (*models.User, error) {
	var hash *string
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hs := string(h)
		hash = &hs
	}

	u, err := scanUser(s.db.QueryRow(`
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING `+userColumns, normalizeEmail(email), hash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindOrCreate returns the user with email, creating a password-less one
// on first sight.
func (s *UserStore) FindOrCreate(email string) (*models.User, bool, error) {
	u, err := s.FindByEmail(email)
	if err != nil || u != nil {
		return u, false, err
	}
	u, err = s.Create(email, "")
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent login.
		u, err = s.FindByEmail(email)
		return u, false, err
	}
	return u, err == nil, err
}

// SetPassword replaces the user's password hash.
func (s *UserStore) SetPassword(userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.update("set password", userID, "password_hash = $1", string(hash))
	return err
}

// CheckPassword reports whether password matches the stored hash.
// Password-less users never match.
func (s *UserStore) CheckPassword(user *models.User, password string) bool {
	if !user.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) == nil
}

// RotateAPIKey generates and stores a new API secret key for the user.
func (s *UserStore) RotateAPIKey(userID uuid.UUID) (string, error) {
	key, err := NewAPIKey()
	if err != nil {
		return "", err
	}
	n, err := s.update("set api key", userID, "api_secret_key = $1", key)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("set api key: user %s not found", userID)
	}
	return key, nil
}

// NewAPIKey returns a random lowercase hex key of APIKeyLen characters.
func NewAPIKey() (string, error) {
	b := make([]byte, (APIKeyLen+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b)[:APIKeyLen], nil
}

// GetOptimizelyConfig returns the user's stored CMS credentials. Returns
// nil if the user does not exist.
func (s *UserStore) GetOptimizelyConfig(userID uuid.UUID) (*models.OptimizelyConfig, error) {
	c := &models.OptimizelyConfig{}
	err := s.db.QueryRow(`
		SELECT optimizely_client_id, optimizely_client_secret, optimizely_api_url,
		       optimizely_graphql_endpoint, optimizely_auth_token
		FROM users WHERE id = $1
	`, userID).Scan(&c.ClientID, &c.ClientSecret, &c.APIURL, &c.GraphQLEndpoint, &c.AuthToken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get optimizely config: %w", err)
	}
	return c, nil
}

// SaveOptimizelyConfig overwrites the user's CMS credentials.
func (s *UserStore) SaveOptimizelyConfig(userID uuid.UUID, c models.OptimizelyConfig) error {
	_, err := s.update("save optimizely config", userID, `
			optimizely_client_id = $1,
			optimizely_client_secret = $2,
			optimizely_api_url = $3,
			optimizely_graphql_endpoint = $4,
			optimizely_auth_token = $5`,
		c.ClientID, c.ClientSecret, c.APIURL, c.GraphQLEndpoint, c.AuthToken)
	return err
}

// SetDefaultContainer stores the container used when API publishes omit one.
// An empty id clears it.
func (s *UserStore) SetDefaultContainer(userID uuid.UUID, containerID string) error {
	_, err := s.update("set default container", userID, "default_container_id = $1", models.NullIfEmpty(containerID))
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

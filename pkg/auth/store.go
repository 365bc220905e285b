package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"calendar-service/pkg/resources"
)

var (
	ErrUsernameTaken = errors.New("username is already taken")
	ErrUserNotFound  = errors.New("user not found")
)

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type UserStore interface {
	CreateUser(ctx context.Context, username string, passwordHash string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

type userStore struct {
	pool resources.DBInstance
}

func NewUserStore(pool resources.DBInstance) UserStore {
	return &userStore{pool: pool}
}

func (s *userStore) CreateUser(ctx context.Context, username string, passwordHash string) (*User, error) {
	var user User

	err := s.pool.QueryRow(ctx,
		"INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3) "+
			"RETURNING id, username, password_hash, created_at",
		uuid.NewString(), username, passwordHash).
		Scan(&user.Id, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}

		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

func (s *userStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User

	err := s.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1",
		username).
		Scan(&user.Id, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &user, nil
}

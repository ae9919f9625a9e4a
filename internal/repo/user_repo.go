package repo

import (
	"context"
	"errors"
	"sync"

	"github.com/andrewabdallah/taskmanager/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepo provides user persistence.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	Create(ctx context.Context, username, passwordHash string) (domain.User, error)
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

// GetByUsername returns the user by username.
func (r *PGUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash, is_staff, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Staff, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// Create inserts a new non-staff user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, username, passwordHash string) (domain.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, is_staff, created_at`
	var u domain.User
	err := r.db.QueryRow(ctx, query, username, passwordHash).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Staff, &u.CreatedAt,
	)
	return u, err
}

// ErrUsernameExists is returned by MemoryUserRepo on duplicate usernames.
var ErrUsernameExists = errors.New("username already exists")

// MemoryUserRepo is an in-process UserRepo for tests.
type MemoryUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]domain.User
}

// NewMemoryUserRepo returns an empty in-memory user repo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) Create(_ context.Context, username, passwordHash string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[username]; exists {
		return domain.User{}, ErrUsernameExists
	}
	r.nextID++
	u := domain.User{ID: r.nextID, Username: username, PasswordHash: passwordHash}
	r.users[username] = u
	return u, nil
}

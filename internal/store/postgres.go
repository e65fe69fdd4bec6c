package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishant/auction-app/backend/internal/apperrors"
	"github.com/nishant/auction-app/backend/internal/models"
)

// PostgresStore handles user records, their auction-relation lists and the
// activity log against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the user tables if they don't exist.
//
// Posted auctions are a plain append list; participated and won lists have
// add-if-absent semantics, enforced by the partial unique index.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			full_name  VARCHAR(100) NOT NULL,
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255) NOT NULL,
			phone      VARCHAR(30)  NOT NULL DEFAULT '',
			location   VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ  DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_auctions (
			id         BIGSERIAL PRIMARY KEY,
			user_id    UUID NOT NULL REFERENCES users(id),
			auction_id TEXT NOT NULL,
			relation   TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS user_auctions_unique
			ON user_auctions (user_id, auction_id, relation)
			WHERE relation <> 'posted';

		CREATE TABLE IF NOT EXISTS user_activity (
			id          BIGSERIAL PRIMARY KEY,
			user_id     UUID NOT NULL REFERENCES users(id),
			description TEXT NOT NULL,
			created_at  TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	var created models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, password, phone, location)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, full_name, email, phone, location, created_at`,
		u.FullName, u.Email, u.Password, u.Phone, u.Location,
	).Scan(&created.ID, &created.FullName, &created.Email, &created.Phone, &created.Location, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("create user: email taken: %w", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, email, password, phone, location, created_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.Password, &u.Phone, &u.Location, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", email, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, email, phone, location, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Location, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

// GetSellerInfo returns the public identity fields of a user.
func (s *PostgresStore) GetSellerInfo(ctx context.Context, id string) (*models.SellerInfo, error) {
	var info models.SellerInfo
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&info.ID, &info.FullName, &info.Email, &info.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("seller %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &info, nil
}

// AddAuctionRelation records an auction under one of the user's lists.
// Participated and won inserts are add-if-absent; posted appends.
func (s *PostgresStore) AddAuctionRelation(ctx context.Context, userID, auctionID, relation string) error {
	query := `INSERT INTO user_auctions (user_id, auction_id, relation) VALUES ($1, $2, $3)`
	if relation != models.RelationPosted {
		query += ` ON CONFLICT DO NOTHING`
	}
	if _, err := s.pool.Exec(ctx, query, userID, auctionID, relation); err != nil {
		return fmt.Errorf("add %s auction for user %s: %w", relation, userID, err)
	}
	return nil
}

// AuctionIDsByRelation returns the auction ids in one of the user's lists,
// oldest first.
func (s *PostgresStore) AuctionIDsByRelation(ctx context.Context, userID, relation string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id FROM user_auctions
		 WHERE user_id = $1 AND relation = $2 ORDER BY id`, userID, relation)
	if err != nil {
		return nil, fmt.Errorf("list %s auctions for user %s: %w", relation, userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveAuctionRelations retracts a deleted auction from every user's lists.
func (s *PostgresStore) RemoveAuctionRelations(ctx context.Context, auctionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_auctions WHERE auction_id = $1`, auctionID)
	if err != nil {
		return fmt.Errorf("retract auction %s: %w", auctionID, err)
	}
	return nil
}

// AppendActivity adds an entry to the user's activity log.
func (s *PostgresStore) AppendActivity(ctx context.Context, userID, description string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_activity (user_id, description) VALUES ($1, $2)`, userID, description)
	if err != nil {
		return fmt.Errorf("append activity for user %s: %w", userID, err)
	}
	return nil
}

// RecentActivity returns the user's activity log, newest first.
func (s *PostgresStore) RecentActivity(ctx context.Context, userID string) ([]models.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT description, created_at FROM user_activity
		 WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("activity for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.Description, &a.Date); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

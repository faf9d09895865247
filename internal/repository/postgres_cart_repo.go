package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresCartRepo はPostgreSQLを使用したカートリポジトリ。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// Load は指定オーナーのカートデータを取得する。見つからない場合はnilを返す。
func (r *PostgresCartRepo) Load(ctx context.Context, ownerID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM carts WHERE owner_id = $1`,
		ownerID,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return data, nil
}

// Save は指定オーナーのカートデータをUPSERTする。
func (r *PostgresCartRepo) Save(ctx context.Context, ownerID string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO carts (owner_id, data)
		 VALUES ($1, $2)
		 ON CONFLICT (owner_id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = now()`,
		ownerID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Delete は指定オーナーのカートデータを削除する。
func (r *PostgresCartRepo) Delete(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM carts WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// DeleteIdleBefore は指定日時より前に最終更新されたカートを削除し、件数を返す。
func (r *PostgresCartRepo) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM carts WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle carts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted carts: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ CartRepository = (*PostgresCartRepo)(nil)

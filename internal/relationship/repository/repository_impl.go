package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vouchnet/vouchnet/internal/relationship/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertPending(ctx context.Context, db *gorm.DB, edgeID, a, b snowflake.ID) error {
	low, high, err := domain.NormalizePair(a, b)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO relationship_edges (id, user_low, user_high, status, weight, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT (user_low, user_high) DO NOTHING`,
		edgeID,
		low,
		high,
		domain.EdgeStatusPending,
		time.Now().UTC(),
	).Error
}

func (r *repo) Confirm(ctx context.Context, db *gorm.DB, a, b snowflake.ID, weight int64) (bool, error) {
	low, high, err := domain.NormalizePair(a, b)
	if err != nil {
		return false, err
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE relationship_edges
		 SET status = ?, weight = ?, confirmed_at = ?
		 WHERE user_low = ? AND user_high = ? AND status = ?`,
		domain.EdgeStatusConfirmed,
		weight,
		time.Now().UTC(),
		low,
		high,
		domain.EdgeStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindPair(ctx context.Context, db *gorm.DB, a, b snowflake.ID) (*domain.Edge, error) {
	low, high, err := domain.NormalizePair(a, b)
	if err != nil {
		return nil, err
	}
	var edge domain.Edge
	scanErr := db.WithContext(ctx).Raw(
		`SELECT id, user_low, user_high, status, weight, created_at, confirmed_at
		 FROM relationship_edges
		 WHERE user_low = ? AND user_high = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		low,
		high,
	).Scan(&edge).Error
	if scanErr != nil {
		return nil, scanErr
	}
	if edge.ID == 0 {
		return nil, nil
	}
	return &edge, nil
}

func (r *repo) ListConfirmed(ctx context.Context, db *gorm.DB) ([]domain.Edge, error) {
	var edges []domain.Edge
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_low, user_high, status, weight, created_at, confirmed_at
		 FROM relationship_edges WHERE status = ?`,
		domain.EdgeStatusConfirmed,
	).Scan(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repo) ListDuplicatePairs(ctx context.Context, db *gorm.DB) ([]domain.Edge, error) {
	var edges []domain.Edge
	err := db.WithContext(ctx).Raw(
		`SELECT e.id, e.user_low, e.user_high, e.status, e.weight, e.created_at, e.confirmed_at
		 FROM relationship_edges e
		 JOIN (
		   SELECT user_low, user_high
		   FROM relationship_edges
		   GROUP BY user_low, user_high
		   HAVING COUNT(*) > 1
		 ) dup ON dup.user_low = e.user_low AND dup.user_high = e.user_high
		 ORDER BY e.user_low, e.user_high, e.created_at ASC, e.id ASC`,
	).Scan(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, edgeID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM relationship_edges WHERE id = ?`, edgeID,
	).Error
}

func (r *repo) AppendJournal(ctx context.Context, db *gorm.DB, entryID snowflake.ID, changeType string, edgeID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO graph_change_journal (id, change_type, edge_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		entryID,
		changeType,
		edgeID,
		time.Now().UTC(),
	).Error
}

func (r *repo) JournalWatermark(ctx context.Context, db *gorm.DB) (int64, error) {
	var watermark int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(id), 0) FROM graph_change_journal`,
	).Scan(&watermark).Error
	if err != nil {
		return 0, err
	}
	return watermark, nil
}

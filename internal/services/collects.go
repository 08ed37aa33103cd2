package services

import (
	"context"
	"database/sql"

	"github.com/giftmind/giftmind-backend/internal/models"
)

// CollectStatus reports whether an item is in the user's collection.
type CollectStatus struct {
	IsCollected bool   `json:"isCollected"`
	CollectID   *int64 `json:"collectId"`
}

// CollectStats summarizes the user's collection.
type CollectStats struct {
	TotalCount int `json:"totalCount"`
}

// CollectsService owns the user's collected CMS items.
type CollectsService struct {
	db *sql.DB
}

func NewCollectsService(db *sql.DB) *CollectsService {
	return &CollectsService{db: db}
}

// Add collects an item. Adding an already collected item returns the
// existing record unchanged.
func (s *CollectsService) Add(ctx context.Context, userID int64, itemID int64) (*models.Collect, error) {
	c := &models.Collect{UserID: userID, ItemID: itemID}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO collects (user_id, item_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, item_id) DO UPDATE SET item_id = EXCLUDED.item_id
		RETURNING id, created_at
	`, userID, itemID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Remove deletes the collect and reports whether a row existed.
func (s *CollectsService) Remove(ctx context.Context, userID int64, itemID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM collects WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns one page of the user's collects, newest first.
func (s *CollectsService) List(ctx context.Context, userID int64, page, pageSize int) ([]models.Collect, models.PageMeta, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collects WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, models.PageMeta{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item_id, created_at FROM collects
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	defer rows.Close()

	collects := []models.Collect{}
	for rows.Next() {
		var c models.Collect
		if err := rows.Scan(&c.ID, &c.UserID, &c.ItemID, &c.CreatedAt); err != nil {
			return nil, models.PageMeta{}, err
		}
		collects = append(collects, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, err
	}

	meta := models.PageMeta{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		PageCount: (total + pageSize - 1) / pageSize,
	}
	return collects, meta, nil
}

// Status reports whether an item is collected and, if so, the collect id.
func (s *CollectsService) Status(ctx context.Context, userID int64, itemID int64) (*CollectStatus, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM collects WHERE user_id = $1 AND item_id = $2`,
		userID, itemID).Scan(&id)
	if err == sql.ErrNoRows {
		return &CollectStatus{IsCollected: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CollectStatus{IsCollected: true, CollectID: &id}, nil
}

// Stats returns collection totals for the user.
func (s *CollectsService) Stats(ctx context.Context, userID int64) (*CollectStats, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collects WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, err
	}
	return &CollectStats{TotalCount: total}, nil
}

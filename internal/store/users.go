package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/giftmind/giftmind-backend/internal/models"
)

const userColumns = `id, phone, nickname, gender, avatar_url, login_provider,
	wechat_open_id, wechat_union_id, wechat_session_key, created_at, updated_at`

// Users is the PostgreSQL-backed user store.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (s *Users) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Users) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
	return scanUser(row)
}

// FindByWechat matches by unionId OR openId when a unionId is present, so an
// account first seen through another app in the same WeChat subject is
// reused rather than duplicated.
func (s *Users) FindByWechat(ctx context.Context, openID, unionID string) (*models.User, error) {
	var row *sql.Row
	if unionID != "" {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users
			 WHERE wechat_union_id = $1 OR wechat_open_id = $2
			 ORDER BY id LIMIT 1`, unionID, openID)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE wechat_open_id = $1`, openID)
	}
	return scanUser(row)
}

func (s *Users) Create(ctx context.Context, u *models.User) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO users (phone, nickname, gender, avatar_url, login_provider,
			wechat_open_id, wechat_union_id, wechat_session_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, u.Phone, u.Nickname, u.Gender, u.AvatarURL, u.LoginProvider,
		u.WechatOpenID, u.WechatUnionID, u.WechatSessionKey,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// Update applies the non-nil patch fields and returns the updated row, or
// (nil, nil) when the user does not exist.
func (s *Users) Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Nickname != nil {
		sets = append(sets, "nickname = "+arg(*patch.Nickname))
	}
	if patch.AvatarURL != nil {
		sets = append(sets, "avatar_url = "+arg(*patch.AvatarURL))
	}
	if patch.Gender != nil {
		sets = append(sets, "gender = "+arg(*patch.Gender))
	}
	if patch.Phone != nil {
		if *patch.Phone == "" {
			sets = append(sets, "phone = NULL")
		} else {
			sets = append(sets, "phone = "+arg(*patch.Phone))
		}
	}
	if patch.LoginProvider != nil {
		sets = append(sets, "login_provider = "+arg(*patch.LoginProvider))
	}
	if patch.WechatUnionID != nil {
		sets = append(sets, "wechat_union_id = "+arg(*patch.WechatUnionID))
	}
	if patch.WechatSessionKey != nil {
		sets = append(sets, "wechat_session_key = "+arg(*patch.WechatSessionKey))
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + arg(id) + ` RETURNING ` + userColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var phone, openID, unionID, sessionKey sql.NullString
	var gender sql.NullBool

	err := row.Scan(&u.ID, &phone, &u.Nickname, &gender, &u.AvatarURL,
		&u.LoginProvider, &openID, &unionID, &sessionKey,
		&u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		u.Phone = &phone.String
	}
	if gender.Valid {
		u.Gender = &gender.Bool
	}
	if openID.Valid {
		u.WechatOpenID = &openID.String
	}
	if unionID.Valid {
		u.WechatUnionID = &unionID.String
	}
	if sessionKey.Valid {
		u.WechatSessionKey = &sessionKey.String
	}
	return &u, nil
}

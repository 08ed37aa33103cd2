package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
	"github.com/giftmind/giftmind-backend/pkg/utils"
)

// Code accepted on the SMS login path when STUB_PHONE/STUB_CODE are not
// configured (development fallback).
const fallbackSmsCode = "123456"

// UserStore is the persistence surface the auth service needs. Lookups
// return (nil, nil) when no row matches.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByWechat(ctx context.Context, openID, unionID string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
}

// WechatExchanger exchanges a login code for a provider session.
type WechatExchanger interface {
	Code2Session(ctx context.Context, code string) (*WechatSession, error)
}

// WechatProfile carries the optional nickname/avatar hints the client sends
// along with a WeChat login.
type WechatProfile struct {
	Nickname  string
	AvatarURL string
}

// LoginResult is what both login paths hand back to the client.
type LoginResult struct {
	User         models.UserPayload `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

// AuthService orchestrates login, token issuance, refresh, logout and
// profile reads/updates against the user store.
type AuthService struct {
	users      UserStore
	tokens     *TokenService
	wechat     WechatExchanger
	cfg        *config.Config
	now        func() time.Time
	signAccess func(models.UserPayload) (string, error)
}

func NewAuthService(users UserStore, tokens *TokenService, wechat WechatExchanger, cfg *config.Config) *AuthService {
	s := &AuthService{users: users, tokens: tokens, wechat: wechat, cfg: cfg, now: time.Now}
	s.signAccess = tokens.SignAccessToken
	return s
}

// Tokens exposes the token service for the request gate.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// LoginWithCode validates the phone+code pair and issues a token pair for
// the upserted user. Validation failures collapse to ErrInvalidCredentials.
func (s *AuthService) LoginWithCode(ctx context.Context, phone, code string) (*LoginResult, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)

	if err := utils.ValidatePhone(phone); err != nil {
		return nil, ErrInvalidCredentials
	}
	if code == "" {
		return nil, ErrInvalidCredentials
	}

	loginPhone := phone
	if s.cfg.StubConfigured() {
		if phone != s.cfg.StubPhone || code != s.cfg.StubCode {
			return nil, ErrInvalidCredentials
		}
		loginPhone = s.cfg.StubPhone
	} else if code != fallbackSmsCode {
		return nil, ErrInvalidCredentials
	}

	user, err := s.ensureUserByPhone(ctx, loginPhone)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(user)
}

// LoginWithWechat exchanges the login code with the provider and issues a
// token pair for the matched-or-created user.
func (s *AuthService) LoginWithWechat(ctx context.Context, code string, profile WechatProfile) (*LoginResult, error) {
	session, err := s.wechat.Code2Session(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.ensureUserByWechat(ctx, session, profile)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(user)
}

// RefreshAccessToken mints a new access token from a valid refresh token.
// The refresh token itself is not rotated. Only verification failures read as
// ErrInvalidRefreshToken; a signing failure is a server-side error and is
// returned as-is.
func (s *AuthService) RefreshAccessToken(refreshToken string) (string, error) {
	payload, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	accessToken, err := s.signAccess(*payload)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// Logout blacklists the presented access token and best-effort removes the
// refresh store entry. It never fails: the client must always observe a
// successful logout, so internal errors are logged and swallowed.
func (s *AuthService) Logout(accessToken, refreshToken string) {
	if accessToken != "" {
		s.tokens.RevokeAccessToken(accessToken)
	}
	if refreshToken == "" {
		return
	}
	payload, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		log.Printf("logout: refresh token rejected, store entry left as-is: %v", err)
		return
	}
	s.tokens.DropRefreshToken(payload.ID)
}

// GetUserByID returns the fresh session payload for a user.
func (s *AuthService) GetUserByID(ctx context.Context, userID int64) (*models.UserPayload, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	payload := s.userPayload(user)
	return &payload, nil
}

// UpdateProfile applies a whitelisted partial update and returns the fresh
// payload. Fields is the decoded JSON body; values of the wrong primitive
// type are ignored rather than rejected.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, fields map[string]interface{}) (*models.UserPayload, error) {
	var patch models.UserPatch
	if v, ok := fields["nickname"].(string); ok {
		patch.Nickname = &v
	}
	if v, ok := fields["avatarUrl"].(string); ok {
		patch.AvatarURL = &v
	}
	if v, ok := fields["gender"].(bool); ok {
		patch.Gender = &v
	}
	if v, ok := fields["phone"].(string); ok {
		trimmed := strings.TrimSpace(v)
		patch.Phone = &trimmed // empty clears the column
	}

	if patch.Empty() {
		return s.GetUserByID(ctx, userID)
	}

	user, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	payload := s.userPayload(user)
	return &payload, nil
}

// ComputeMeetDays counts days since registration, inclusive of the
// registration day itself, and never returns less than 1.
func (s *AuthService) ComputeMeetDays(createdAt time.Time) int {
	days := int(s.now().Sub(createdAt) / (24 * time.Hour))
	if days+1 < 1 {
		return 1
	}
	return days + 1
}

func (s *AuthService) ensureUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &models.User{
			Phone:         &phone,
			Nickname:      models.DefaultNickname,
			AvatarURL:     "",
			LoginProvider: models.LoginProviderSms,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if user.LoginProvider != models.LoginProviderSms {
		provider := models.LoginProviderSms
		return s.users.Update(ctx, user.ID, models.UserPatch{LoginProvider: &provider})
	}
	return user, nil
}

// ensureUserByWechat matches by unionId OR openId and merges only fields the
// row is missing: a present-but-empty hint never clobbers an existing
// nickname or avatar.
func (s *AuthService) ensureUserByWechat(ctx context.Context, session *WechatSession, profile WechatProfile) (*models.User, error) {
	if session.OpenID == "" {
		return nil, ErrMissingIdentifier
	}

	nickname := strings.TrimSpace(profile.Nickname)
	avatarURL := strings.TrimSpace(profile.AvatarURL)

	existing, err := s.users.FindByWechat(ctx, session.OpenID, session.UnionID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		var patch models.UserPatch
		if session.SessionKey != "" && (existing.WechatSessionKey == nil || *existing.WechatSessionKey != session.SessionKey) {
			patch.WechatSessionKey = &session.SessionKey
		}
		if session.UnionID != "" && existing.WechatUnionID == nil {
			patch.WechatUnionID = &session.UnionID
		}
		if existing.LoginProvider != models.LoginProviderWechat {
			provider := models.LoginProviderWechat
			patch.LoginProvider = &provider
		}
		if nickname != "" && existing.Nickname == "" {
			patch.Nickname = &nickname
		}
		if avatarURL != "" && existing.AvatarURL == "" {
			patch.AvatarURL = &avatarURL
		}
		if patch.Empty() {
			return existing, nil
		}
		return s.users.Update(ctx, existing.ID, patch)
	}

	user := &models.User{
		Nickname:      models.DefaultNickname,
		AvatarURL:     avatarURL,
		LoginProvider: models.LoginProviderWechat,
		WechatOpenID:  &session.OpenID,
	}
	if nickname != "" {
		user.Nickname = nickname
	}
	if session.UnionID != "" {
		user.WechatUnionID = &session.UnionID
	}
	if session.SessionKey != "" {
		user.WechatSessionKey = &session.SessionKey
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*LoginResult, error) {
	payload := s.userPayload(user)

	accessToken, err := s.tokens.SignAccessToken(payload)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.SignRefreshToken(payload)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: payload, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// userPayload derives the session payload from the user row.
func (s *AuthService) userPayload(user *models.User) models.UserPayload {
	payload := models.UserPayload{
		ID:            user.ID,
		Nickname:      user.Nickname,
		Gender:        user.Gender,
		MeetDays:      s.ComputeMeetDays(user.CreatedAt),
		AvatarURL:     user.AvatarURL,
		LoginProvider: user.LoginProvider,
	}
	if payload.Nickname == "" {
		payload.Nickname = models.DefaultNickname
	}
	if user.Phone != nil {
		payload.Phone = *user.Phone
	}
	if user.WechatOpenID != nil {
		payload.WechatOpenID = *user.WechatOpenID
	}
	if user.WechatUnionID != nil {
		payload.WechatUnionID = *user.WechatUnionID
	}
	return payload
}

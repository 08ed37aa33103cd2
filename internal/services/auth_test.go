package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
)

// fakeUserStore is an in-memory UserStore for tests.
type fakeUserStore struct {
	users  map[int64]*models.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]*models.User{}, nextID: 1}
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserStore) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	for _, u := range f.users {
		if u.Phone != nil && *u.Phone == phone {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByWechat(_ context.Context, openID, unionID string) (*models.User, error) {
	for _, u := range f.users {
		if unionID != "" && u.WechatUnionID != nil && *u.WechatUnionID == unionID {
			copied := *u
			return &copied, nil
		}
		if u.WechatOpenID != nil && *u.WechatOpenID == openID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User) error {
	u.ID = f.nextID
	f.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserStore) Update(_ context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	if patch.Nickname != nil {
		u.Nickname = *patch.Nickname
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = *patch.AvatarURL
	}
	if patch.Gender != nil {
		u.Gender = patch.Gender
	}
	if patch.Phone != nil {
		if *patch.Phone == "" {
			u.Phone = nil
		} else {
			u.Phone = patch.Phone
		}
	}
	if patch.LoginProvider != nil {
		u.LoginProvider = *patch.LoginProvider
	}
	if patch.WechatUnionID != nil {
		u.WechatUnionID = patch.WechatUnionID
	}
	if patch.WechatSessionKey != nil {
		u.WechatSessionKey = patch.WechatSessionKey
	}
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

// fakeWechat returns a fixed session for any code.
type fakeWechat struct {
	session *WechatSession
	err     error
}

func (f *fakeWechat) Code2Session(context.Context, string) (*WechatSession, error) {
	return f.session, f.err
}

func testAuthService(users UserStore, wechat WechatExchanger, cfg *config.Config) *AuthService {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.JWTAccessSecret = "test-access-secret"
	cfg.JWTRefreshSecret = "test-refresh-secret"
	cfg.JWTAccessTTL = 2 * time.Hour
	cfg.JWTRefreshTTL = 30 * 24 * time.Hour
	return NewAuthService(users, NewTokenService(cfg), wechat, cfg)
}

func TestLoginWithCodeFallback(t *testing.T) {
	users := newFakeUserStore()
	svc := testAuthService(users, &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "18988889999", result.User.Phone)
	assert.Equal(t, models.DefaultNickname, result.User.Nickname)
	assert.Equal(t, models.LoginProviderSms, result.User.LoginProvider)
	assert.Equal(t, 1, result.User.MeetDays)
}

func TestLoginWithCodeRejectsBadPhones(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	for _, phone := range []string{"12345", "2198888889", "1898888999", " ", "a8988889999"} {
		_, err := svc.LoginWithCode(context.Background(), phone, "123456")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "phone %q", phone)
	}
}

func TestLoginWithCodeRejectsWrongFallbackCode(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	_, err := svc.LoginWithCode(context.Background(), "18988889999", "000000")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWithCodeStubPair(t *testing.T) {
	cfg := &config.Config{StubPhone: "13100001111", StubCode: "8888"}
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, cfg)

	// Only the exact configured pair is accepted.
	_, err := svc.LoginWithCode(context.Background(), "13100001111", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LoginWithCode(context.Background(), "18988889999", "8888")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := svc.LoginWithCode(context.Background(), "13100001111", "8888")
	require.NoError(t, err)
	assert.Equal(t, "13100001111", result.User.Phone)
}

func TestLoginWithCodeReusesExistingUser(t *testing.T) {
	users := newFakeUserStore()
	svc := testAuthService(users, &fakeWechat{}, nil)

	first, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	second, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, users.users, 1)
}

func TestLoginWithWechatCreatesAndMerges(t *testing.T) {
	users := newFakeUserStore()
	wechat := &fakeWechat{session: &WechatSession{OpenID: "open-1", UnionID: "union-1", SessionKey: "key-1"}}
	svc := testAuthService(users, wechat, nil)

	result, err := svc.LoginWithWechat(context.Background(), "code", WechatProfile{Nickname: "小明"})
	require.NoError(t, err)
	assert.Equal(t, "小明", result.User.Nickname)
	assert.Equal(t, "open-1", result.User.WechatOpenID)
	assert.Equal(t, "union-1", result.User.WechatUnionID)

	// Second login with an empty nickname hint must not clobber the stored one.
	wechat.session.SessionKey = "key-2"
	again, err := svc.LoginWithWechat(context.Background(), "code", WechatProfile{})
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)
	assert.Equal(t, "小明", again.User.Nickname)
	assert.Len(t, users.users, 1)

	stored := users.users[result.User.ID]
	require.NotNil(t, stored.WechatSessionKey)
	assert.Equal(t, "key-2", *stored.WechatSessionKey)
}

func TestLoginWithWechatRequiresOpenID(t *testing.T) {
	wechat := &fakeWechat{session: &WechatSession{}}
	svc := testAuthService(newFakeUserStore(), wechat, nil)

	_, err := svc.LoginWithWechat(context.Background(), "code", WechatProfile{})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestRefreshDoesNotRotate(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	access1, err := svc.RefreshAccessToken(result.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access1)

	// The same refresh token keeps working: no rotation.
	access2, err := svc.RefreshAccessToken(result.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access2)
}

func TestRefreshSigningFailureIsNotACredentialsError(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	signErr := errors.New("signer unavailable")
	svc.signAccess = func(models.UserPayload) (string, error) { return "", signErr }

	_, err = svc.RefreshAccessToken(result.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, signErr)
	assert.NotErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	_, err := svc.RefreshAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutFlow(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	svc.Logout(result.AccessToken, result.RefreshToken)

	assert.True(t, svc.Tokens().IsAccessTokenRevoked(result.AccessToken))
	_, err = svc.RefreshAccessToken(result.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	// No tokens at all still succeeds.
	svc.Logout("", "")
	// Garbage tokens still succeed.
	svc.Logout("garbage", "garbage")
}

func TestUpdateProfileIgnoresWrongTypes(t *testing.T) {
	users := newFakeUserStore()
	svc := testAuthService(users, &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	payload, err := svc.UpdateProfile(context.Background(), result.User.ID, map[string]interface{}{
		"nickname":  123,          // wrong type, ignored
		"gender":    "female",     // wrong type, ignored
		"avatarUrl": "https://cdn.example.com/a.png",
		"role":      "admin",      // not whitelisted
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNickname, payload.Nickname)
	assert.Nil(t, payload.Gender)
	assert.Equal(t, "https://cdn.example.com/a.png", payload.AvatarURL)
}

func TestUpdateProfileClearsPhone(t *testing.T) {
	users := newFakeUserStore()
	svc := testAuthService(users, &fakeWechat{}, nil)

	result, err := svc.LoginWithCode(context.Background(), "18988889999", "123456")
	require.NoError(t, err)

	payload, err := svc.UpdateProfile(context.Background(), result.User.ID, map[string]interface{}{
		"phone": "",
	})
	require.NoError(t, err)
	assert.Empty(t, payload.Phone)
	assert.Nil(t, users.users[result.User.ID].Phone)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)

	_, err := svc.UpdateProfile(context.Background(), 999, map[string]interface{}{"nickname": "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestComputeMeetDays(t *testing.T) {
	svc := testAuthService(newFakeUserStore(), &fakeWechat{}, nil)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// Registration day counts as day 1.
	assert.Equal(t, 1, svc.ComputeMeetDays(now))
	assert.Equal(t, 1, svc.ComputeMeetDays(now.Add(-time.Hour)))
	assert.Equal(t, 4, svc.ComputeMeetDays(now.Add(-3*24*time.Hour)))
	// A clock-skewed future createdAt still reads 1.
	assert.Equal(t, 1, svc.ComputeMeetDays(now.Add(48*time.Hour)))
}

package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/services"
)

type loginSmsRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// LoginSms handles phone+code login. Any validation failure is reported as
// the same generic credentials error.
func LoginSms(w http.ResponseWriter, r *http.Request) {
	var req loginSmsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := authService.LoginWithCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "手机号或验证码错误")
			return
		}
		log.Printf("loginSms failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	respondOK(w, result)
}

type loginWechatRequest struct {
	Code      string `json:"code"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// LoginWechat exchanges a mini-program login code for a session.
func LoginWechat(w http.ResponseWriter, r *http.Request) {
	var req loginWechatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := authService.LoginWithWechat(r.Context(), req.Code, services.WechatProfile{
		Nickname:  req.Nickname,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProviderError), errors.Is(err, services.ErrMissingIdentifier):
			respondError(w, http.StatusUnauthorized, "微信登录失败，请重试")
		default:
			log.Printf("loginWechat failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}
	respondOK(w, result)
}

// Me returns the fresh profile of the authenticated user.
func Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payload, err := authService.GetUserByID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("me failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respondOK(w, payload)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh mints a new access token. Rejected refresh tokens read as 401;
// anything else is a server error.
func Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accessToken, err := authService.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRefreshToken) {
			respondError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		log.Printf("refresh failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	respondOK(w, map[string]string{"accessToken": accessToken})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout always succeeds. The access token is taken from the Authorization
// header; no valid session is required.
func Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// Body is optional; decode errors are ignored.
	_ = decodeOptionalBody(r, &req)

	authService.Logout(middleware.BearerToken(r), req.RefreshToken)
	respondOK(w, map[string]bool{"loggedOut": true})
}

// UpdateProfile applies a whitelisted partial profile update. Unknown fields
// and wrong-typed values are silently ignored.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var fields map[string]interface{}
	if !decodeBody(w, r, &fields) {
		return
	}

	payload, err := authService.UpdateProfile(r.Context(), user.ID, fields)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("updateProfile failed for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	respondOK(w, payload)
}

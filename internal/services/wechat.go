package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/giftmind/giftmind-backend/internal/config"
)

const defaultWechatAPIBase = "https://api.weixin.qq.com"

// WechatSession is the provider's answer to a code exchange.
type WechatSession struct {
	OpenID     string
	UnionID    string
	SessionKey string
}

// WechatService exchanges a mini-program login code for a provider session
// via the jscode2session endpoint.
type WechatService struct {
	httpClient *http.Client
	appID      string
	secret     string
	apiBase    string
}

func NewWechatService(cfg *config.Config) *WechatService {
	return &WechatService{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		appID:      cfg.WechatAppID,
		secret:     cfg.WechatSecret,
		apiBase:    defaultWechatAPIBase,
	}
}

type code2SessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Code2Session exchanges the opaque login code. Any transport or provider
// error surfaces as ErrProviderError; callers treat this as a login failure.
func (s *WechatService) Code2Session(ctx context.Context, code string) (*WechatSession, error) {
	if s.appID == "" || s.secret == "" {
		return nil, errors.New("WECHAT_MINI_APPID or WECHAT_MINI_SECRET not configured")
	}

	params := url.Values{}
	params.Set("appid", s.appID)
	params.Set("secret", s.secret)
	params.Set("js_code", code)
	params.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/sns/jscode2session?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	var body code2SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderError, err)
	}

	if body.ErrCode != 0 {
		return nil, fmt.Errorf("%w: code2Session failed: %s (%d)", ErrProviderError, body.ErrMsg, body.ErrCode)
	}
	if body.OpenID == "" || body.SessionKey == "" {
		return nil, fmt.Errorf("%w: code2Session response missing openid/session_key", ErrProviderError)
	}

	return &WechatSession{
		OpenID:     body.OpenID,
		UnionID:    body.UnionID,
		SessionKey: body.SessionKey,
	}, nil
}

package services

import "errors"

// Error taxonomy surfaced to handlers. Refresh failures are deliberately
// undifferentiated: callers must not learn whether a token was expired,
// revoked or superseded.
var (
	ErrInvalidCredentials  = errors.New("invalid phone or code")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrMissingIdentifier   = errors.New("missing wechat openId")
	ErrUserNotFound        = errors.New("user not found")
	ErrProviderError       = errors.New("upstream provider failure")
)

package models

import (
	"time"
)

// Login providers recorded on the user row.
const (
	LoginProviderSms    = "sms"
	LoginProviderWechat = "wechat"
)

// DefaultNickname is assigned when a user is created without a nickname.
const DefaultNickname = "心礼用户"

// User is the persisted identity record. Optional columns are pointers so a
// missing value is distinguishable from an empty one.
type User struct {
	ID               int64     `json:"id"`
	Phone            *string   `json:"phone,omitempty"`
	Nickname         string    `json:"nickname"`
	Gender           *bool     `json:"gender,omitempty"`
	AvatarURL        string    `json:"avatarUrl"`
	LoginProvider    string    `json:"loginProvider,omitempty"`
	WechatOpenID     *string   `json:"wechatOpenId,omitempty"`
	WechatUnionID    *string   `json:"wechatUnionId,omitempty"`
	WechatSessionKey *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UserPayload is the session payload carried in both token classes and
// returned to the client. It is rebuilt from the user row on every token
// issuance and never persisted as-is.
type UserPayload struct {
	ID            int64  `json:"id"`
	Phone         string `json:"phone,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Gender        *bool  `json:"gender,omitempty"`
	MeetDays      int    `json:"meetDays,omitempty"`
	AvatarURL     string `json:"avatarUrl"`
	LoginProvider string `json:"loginProvider,omitempty"`
	WechatOpenID  string `json:"wechatOpenId,omitempty"`
	WechatUnionID string `json:"wechatUnionId,omitempty"`
}

// UserSettings holds the per-user notification toggles.
type UserSettings struct {
	ImportantDateReminder bool `json:"importantDateReminder"`
	InspirationPush       bool `json:"inspirationPush"`
}

// DefaultSettings returns the settings applied before a user ever saves them.
func DefaultSettings() UserSettings {
	return UserSettings{ImportantDateReminder: true, InspirationPush: false}
}

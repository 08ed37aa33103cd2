package models

// UserPatch is a partial update of a user row. Nil fields are untouched.
// Phone set to an empty string clears the column rather than storing "".
type UserPatch struct {
	Nickname         *string
	AvatarURL        *string
	Gender           *bool
	Phone            *string
	LoginProvider    *string
	WechatUnionID    *string
	WechatSessionKey *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Nickname == nil && p.AvatarURL == nil && p.Gender == nil &&
		p.Phone == nil && p.LoginProvider == nil &&
		p.WechatUnionID == nil && p.WechatSessionKey == nil
}

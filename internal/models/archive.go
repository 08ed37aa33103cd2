package models

import (
	"strings"
	"time"
)

// Relationship labels are stored in their canonical form as used by the
// mini-program UI. English aliases from older clients are mapped on input.
const (
	RelationshipFamily    = "亲人"
	RelationshipFriend    = "朋友"
	RelationshipLover     = "恋人"
	RelationshipColleague = "同事"
	RelationshipOther     = "其他"
)

var relationshipAliases = map[string]string{
	"family":    RelationshipFamily,
	"friend":    RelationshipFriend,
	"lover":     RelationshipLover,
	"colleague": RelationshipColleague,
	"other":     RelationshipOther,
}

// CanonicalRelationship maps an english alias (case-insensitive) to its
// canonical label. Unknown values pass through unchanged.
func CanonicalRelationship(s string) string {
	if canonical, ok := relationshipAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return canonical
	}
	return strings.TrimSpace(s)
}

// EventItem is a named date on an archive, with the date normalized to
// "MM-DD" (year-independent, e.g. birthdays and anniversaries).
type EventItem struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// Archive is a gift-recipient profile owned by a single user.
type Archive struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"userId"`
	Name         string      `json:"name"`
	Relationship string      `json:"relationship"`
	Events       []EventItem `json:"events"`
	Tag          []string    `json:"tag"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// PageMeta describes one page of a list response.
type PageMeta struct {
	Total     int `json:"total"`
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
}

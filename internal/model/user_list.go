// internal/model/user_list.go
package model

import "time"

// MaxListLength bounds the viewed and favorites lists.
const MaxListLength = 20

// AnonymousUser owns the view list of visitors that are not signed in.
const AnonymousUser = "anonymous"

type ListKind string

const (
	ListViewed    ListKind = "viewed"
	ListFavorites ListKind = "favorites"
	ListFunded    ListKind = "funded"
)

// UserList is an ordered, most-recent-first, de-duplicated set of campaign ids.
type UserList struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Kind        ListKind  `json:"kind"`
	CampaignIDs []string  `json:"campaignIds"`
	Origin      Origin    `json:"origin,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserListID is the record id of a user's list of the given kind.
func UserListID(kind ListKind, userID string) string {
	return string(kind) + ":" + userID
}

func (l UserList) Contains(id string) bool {
	for _, existing := range l.CampaignIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// MoveToFront inserts id at the head, removing any earlier occurrence and
// dropping the oldest entries beyond MaxListLength.
func (l *UserList) MoveToFront(id string) {
	l.Prepend(id)
	if len(l.CampaignIDs) > MaxListLength {
		l.CampaignIDs = l.CampaignIDs[:MaxListLength]
	}
}

// Prepend inserts id at the head and removes any earlier occurrence. The
// list is not bounded.
func (l *UserList) Prepend(id string) {
	ids := make([]string, 0, len(l.CampaignIDs)+1)
	ids = append(ids, id)
	for _, existing := range l.CampaignIDs {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	l.CampaignIDs = ids
}

func (l *UserList) Remove(id string) {
	ids := l.CampaignIDs[:0]
	for _, existing := range l.CampaignIDs {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	l.CampaignIDs = ids
}

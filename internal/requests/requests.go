package requests

import "linkup/internal/domain"

// Buckets splits the raw request list into the three views the meeting
// screens render.
type Buckets struct {
	// PendingInvites are invites waiting on the current user.
	PendingInvites []domain.RequestItem
	// PendingRequests are join requests waiting on the current user as
	// organizer.
	PendingRequests []domain.RequestItem
	// SentInvites are invites the current user sent that are still open.
	SentInvites []domain.RequestItem
}

// Bucket routes each pending item by direction: IsRequest=true means the
// from-user asked to join, IsRequest=false means the organizer invited
// the to-user. Non-pending rows are dropped.
func Bucket(items []domain.RequestItem, currentUserID int64) Buckets {
	var b Buckets
	for _, item := range items {
		if item.Status != domain.RequestPending {
			continue
		}
		switch {
		case !item.IsRequest && item.ToUserID == currentUserID:
			b.PendingInvites = append(b.PendingInvites, item)
		case item.IsRequest && item.ToUserID == currentUserID:
			b.PendingRequests = append(b.PendingRequests, item)
		case !item.IsRequest && item.FromUserID == currentUserID:
			b.SentInvites = append(b.SentInvites, item)
		}
	}
	return b
}

package requests_test

import (
	"testing"

	"linkup/internal/domain"
	"linkup/internal/requests"
)

func TestBucket(t *testing.T) {
	me := int64(9)
	items := []domain.RequestItem{
		// invite to me
		{ID: 1, MeetID: 7, FromUserID: 2, ToUserID: 9, Status: domain.RequestPending, IsRequest: false},
		// join request for my meeting
		{ID: 2, MeetID: 7, FromUserID: 3, ToUserID: 9, Status: domain.RequestPending, IsRequest: true},
		// invite I sent
		{ID: 3, MeetID: 8, FromUserID: 9, ToUserID: 4, Status: domain.RequestPending, IsRequest: false},
		// accepted rows never show up as pending
		{ID: 4, MeetID: 7, FromUserID: 5, ToUserID: 9, Status: domain.RequestAccepted, IsRequest: true},
		// someone else's traffic
		{ID: 5, MeetID: 9, FromUserID: 2, ToUserID: 3, Status: domain.RequestPending, IsRequest: true},
	}

	b := requests.Bucket(items, me)
	if len(b.PendingInvites) != 1 || b.PendingInvites[0].ID != 1 {
		t.Fatalf("pending invites: %+v", b.PendingInvites)
	}
	if len(b.PendingRequests) != 1 || b.PendingRequests[0].ID != 2 {
		t.Fatalf("pending requests: %+v", b.PendingRequests)
	}
	if len(b.SentInvites) != 1 || b.SentInvites[0].ID != 3 {
		t.Fatalf("sent invites: %+v", b.SentInvites)
	}
}

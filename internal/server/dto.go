package server

// Request payloads

type CreateMeetRequest struct {
	Name    string `json:"name"`
	EventID int64  `json:"event_id,omitempty"`
}

type InviteUsersRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

type SettleRequestRequest struct {
	MeetID     int64 `json:"meet_id"`
	FromUserID int64 `json:"from_user_id"`
}

type DevLoginRequest struct {
	UserID int64 `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// itemsResponse is the list envelope every collection endpoint uses.
type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

func items[T any](xs []T) itemsResponse[T] {
	if xs == nil {
		xs = []T{}
	}
	return itemsResponse[T]{Items: xs}
}

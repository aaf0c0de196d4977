package domain

// ItemType discriminates inventory entries.
type ItemType string

const (
	ItemCase   ItemType = "case"
	ItemKey    ItemType = "key"
	ItemTicket ItemType = "ticket"
)

// TradeStatus follows the server-side trade lifecycle.
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeRejected TradeStatus = "rejected"
)

// RequestStatus is the lifecycle of a meeting join request or invite.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Surname   string  `json:"surname,omitempty"`
	Login     string  `json:"login,omitempty"`
	PhotoURL  string  `json:"photo_url,omitempty"`
	Balance   int     `json:"balance"`
	FriendIDs []int64 `json:"friend_ids,omitempty"`
}

// InventoryEntry is one concrete owned item. Entries are created and
// destroyed by the inventory service; the client only reads them.
// CaseID and EventID are zero when absent.
type InventoryEntry struct {
	ID        int64    `json:"id"`
	OwnerID   int64    `json:"owner_id,omitempty"`
	Type      ItemType `json:"type"`
	CaseID    int64    `json:"case_id,omitempty"`
	EventID   int64    `json:"event_id,omitempty"`
	EventType string   `json:"event_type,omitempty"`
	Name      string   `json:"name,omitempty"`
	IsActive  bool     `json:"is_active,omitempty"`
	IsInTrade bool     `json:"is_in_trade,omitempty"`
}

// GroupedItem aggregates inventory entries that share an identity key.
// Count always equals len(Items); Items keeps encounter order.
type GroupedItem struct {
	Type    ItemType         `json:"type"`
	CaseID  int64            `json:"case_id,omitempty"`
	EventID int64            `json:"event_id,omitempty"`
	Name    string           `json:"name,omitempty"`
	Count   int              `json:"count"`
	Items   []InventoryEntry `json:"items"`
}

// ItemDisplay is resolved presentation data for a grouped item.
type ItemDisplay struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Price int    `json:"price,omitempty"`
}

type Case struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Price int    `json:"price,omitempty"`
}

// EventInfo is a catalog event; Category pairs with an entry's Name for
// ticket resolution.
type EventInfo struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Price    int    `json:"price,omitempty"`
}

// TradeOffer is what the wizard submits: concrete item ids from the target
// user's inventory plus a points request.
type TradeOffer struct {
	ToUserID int64   `json:"to_user_id"`
	ItemIDs  []int64 `json:"item_ids,omitempty"`
	Points   int     `json:"points,omitempty"`
}

type Trade struct {
	ID         int64       `json:"id"`
	FromUserID int64       `json:"from_user_id"`
	ToUserID   int64       `json:"to_user_id"`
	ItemIDs    []int64     `json:"item_ids,omitempty"`
	Points     int         `json:"points,omitempty"`
	Status     TradeStatus `json:"status"`
	CreatedAt  string      `json:"created_at,omitempty"`
}

// RequestItem is one join request or invite row. IsRequest=true means the
// from-user asked to join; false means the organizer invited the to-user.
// The same shape backs the participants cache, where Status turns accepted.
type RequestItem struct {
	ID         int64         `json:"id"`
	MeetID     int64         `json:"meet_id"`
	FromUserID int64         `json:"from_user_id"`
	ToUserID   int64         `json:"to_user_id"`
	Status     RequestStatus `json:"status"`
	IsRequest  bool          `json:"is_request"`
}

type Meeting struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	OwnerID        int64   `json:"owner_id"`
	EventID        int64   `json:"event_id,omitempty"`
	ParticipantIDs []int64 `json:"participant_ids,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// Catalogs bundles the reference data the resolver matches against.
type Catalogs struct {
	Events []EventInfo `json:"events"`
	Cases  []Case      `json:"cases"`
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkup/internal/domain"
)

// Client is the Linkup HTTP API client. Every call is a plain JSON
// request/response; caching and optimistic reconciliation live above it
// in the bridge.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// Users returns every platform user.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var resp itemsEnvelope[domain.User]
	err := c.do(ctx, http.MethodGet, "v0/users", nil, &resp)
	return resp.Items, err
}

// UsersByIDs returns the users with the given ids.
func (c *Client) UsersByIDs(ctx context.Context, ids []int64) ([]domain.User, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	var resp itemsEnvelope[domain.User]
	err := c.do(ctx, http.MethodGet, "v0/users?ids="+strings.Join(parts, ","), nil, &resp)
	return resp.Items, err
}

// Friends returns the authenticated user's friends.
func (c *Client) Friends(ctx context.Context) ([]domain.User, error) {
	var resp itemsEnvelope[domain.User]
	err := c.do(ctx, http.MethodGet, "v0/me/friends", nil, &resp)
	return resp.Items, err
}

// UserInventory returns a user's inventory entries.
func (c *Client) UserInventory(ctx context.Context, userID int64) ([]domain.InventoryEntry, error) {
	var resp itemsEnvelope[domain.InventoryEntry]
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/users/%d/inventory", userID), nil, &resp)
	return resp.Items, err
}

// Cases returns the case catalog.
func (c *Client) Cases(ctx context.Context) ([]domain.Case, error) {
	var resp itemsEnvelope[domain.Case]
	err := c.do(ctx, http.MethodGet, "v0/cases", nil, &resp)
	return resp.Items, err
}

// Events returns the event catalog.
func (c *Client) Events(ctx context.Context) ([]domain.EventInfo, error) {
	var resp itemsEnvelope[domain.EventInfo]
	err := c.do(ctx, http.MethodGet, "v0/events", nil, &resp)
	return resp.Items, err
}

// CreateTrade submits a trade offer.
func (c *Client) CreateTrade(ctx context.Context, offer domain.TradeOffer) (domain.Trade, error) {
	var resp domain.Trade
	err := c.do(ctx, http.MethodPost, "v0/trades", offer, &resp)
	return resp, err
}

// ApproveTrade accepts an incoming trade.
func (c *Client) ApproveTrade(ctx context.Context, id int64) (domain.Trade, error) {
	var resp domain.Trade
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/trades/%d/approve", id), nil, &resp)
	return resp, err
}

// RejectTrade declines an incoming trade.
func (c *Client) RejectTrade(ctx context.Context, id int64) (domain.Trade, error) {
	var resp domain.Trade
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/trades/%d/reject", id), nil, &resp)
	return resp, err
}

// MyTrades returns trades involving the authenticated user.
func (c *Client) MyTrades(ctx context.Context) ([]domain.Trade, error) {
	var resp itemsEnvelope[domain.Trade]
	err := c.do(ctx, http.MethodGet, "v0/trades/my", nil, &resp)
	return resp.Items, err
}

// Participants returns accepted participant rows across meetings.
func (c *Client) Participants(ctx context.Context) ([]domain.RequestItem, error) {
	var resp itemsEnvelope[domain.RequestItem]
	err := c.do(ctx, http.MethodGet, "v0/participants", nil, &resp)
	return resp.Items, err
}

// Requests returns pending join requests and invites for the user.
func (c *Client) Requests(ctx context.Context) ([]domain.RequestItem, error) {
	var resp itemsEnvelope[domain.RequestItem]
	err := c.do(ctx, http.MethodGet, "v0/requests", nil, &resp)
	return resp.Items, err
}

// AcceptRequest accepts a join request or invite, keyed by its natural
// identity rather than the row id.
func (c *Client) AcceptRequest(ctx context.Context, meetID, fromUserID int64) error {
	body := map[string]any{"meet_id": meetID, "from_user_id": fromUserID}
	return c.do(ctx, http.MethodPost, "v0/requests/accept", body, nil)
}

// DeclineRequest declines a join request or invite.
func (c *Client) DeclineRequest(ctx context.Context, meetID, fromUserID int64) error {
	body := map[string]any{"meet_id": meetID, "from_user_id": fromUserID}
	return c.do(ctx, http.MethodPost, "v0/requests/decline", body, nil)
}

// Meetings returns the visible meetings.
func (c *Client) Meetings(ctx context.Context) ([]domain.Meeting, error) {
	var resp itemsEnvelope[domain.Meeting]
	err := c.do(ctx, http.MethodGet, "v0/meets", nil, &resp)
	return resp.Items, err
}

// CreateMeeting creates a meeting owned by the caller.
func (c *Client) CreateMeeting(ctx context.Context, name string, eventID int64) (domain.Meeting, error) {
	var resp domain.Meeting
	body := map[string]any{"name": name, "event_id": eventID}
	err := c.do(ctx, http.MethodPost, "v0/meets", body, &resp)
	return resp, err
}

// JoinMeeting joins a meeting directly.
func (c *Client) JoinMeeting(ctx context.Context, meetID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("v0/meets/%d/join", meetID), nil, nil)
}

// RequestJoin files a join request for the meeting owner to settle.
func (c *Client) RequestJoin(ctx context.Context, meetID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("v0/meets/%d/request", meetID), nil, nil)
}

// LeaveMeeting leaves a meeting.
func (c *Client) LeaveMeeting(ctx context.Context, meetID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("v0/meets/%d/leave", meetID), nil, nil)
}

// InviteUsers invites users to a meeting the caller organizes.
func (c *Client) InviteUsers(ctx context.Context, meetID int64, userIDs []int64) error {
	body := map[string]any{"user_ids": userIDs}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("v0/meets/%d/invite", meetID), body, nil)
}

// DevLogin mints a development bearer token for the given user.
func (c *Client) DevLogin(ctx context.Context, userID int64) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"user_id": userID}
	err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", body, &resp)
	return resp.Token, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

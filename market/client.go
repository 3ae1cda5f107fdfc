package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/hirayaph/subasta-bot/models"
)

// Auth carries the caller-supplied token pair. Tokens are attached to every
// request both as a bearer header and as cookies; the backend accepts either.
type Auth struct {
	AccessToken  string
	RefreshToken string
}

// APIError is a non-2xx or success:false response from the marketplace.
// Message holds the server-provided error string when one was present; it is
// surfaced to the user verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.Status)
}

// envelope is the standard { success, data, error } response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client wraps the marketplace REST API
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient initializes a marketplace API client
func NewClient(baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

// do sends one authenticated request and decodes the response envelope.
// Any non-2xx status or success:false body is returned as *APIError.
func (c *Client) do(a Auth, method, path string, body interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.AccessToken)
		req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: a.AccessToken})
	}
	if a.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: "sb-refresh-token", Value: a.RefreshToken})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if envErr != nil {
		return nil, errors.Wrap(envErr, "failed to decode response")
	}

	// Envelope semantics only apply when the body actually carries the
	// envelope; success:false with no error string is still a failure.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err == nil {
		if _, ok := keys["success"]; ok {
			if !env.Success {
				return nil, &APIError{Status: resp.StatusCode, Message: env.Error}
			}
			return env.Data, nil
		}
		if _, ok := keys["data"]; ok {
			return env.Data, nil
		}
	}
	// Some routes (notably the singular my-bid fallback) reply with the bare
	// payload instead of the envelope.
	return raw, nil
}

// GetAuction fetches one auction's detail payload.
func (c *Client) GetAuction(a Auth, auctionID string) (*models.Auction, error) {
	data, err := c.do(a, http.MethodGet, "/auctions/"+auctionID, nil)
	if err != nil {
		return nil, err
	}
	var auction models.Auction
	if err := json.Unmarshal(data, &auction); err != nil {
		return nil, errors.Wrap(err, "failed to decode auction")
	}
	if auction.ID == "" {
		auction.ID = auctionID
	}
	return &auction, nil
}

// ListAddresses fetches the caller's shipping addresses.
func (c *Client) ListAddresses(a Auth) ([]models.Address, error) {
	data, err := c.do(a, http.MethodGet, "/marketplace/addresses", nil)
	if err != nil {
		return nil, err
	}
	var addresses []models.Address
	if err := json.Unmarshal(data, &addresses); err != nil {
		return nil, errors.Wrap(err, "failed to decode addresses")
	}
	return addresses, nil
}

// CreateAddress persists a new shipping address and returns it.
func (c *Client) CreateAddress(a Auth, addr models.Address) (*models.Address, error) {
	data, err := c.do(a, http.MethodPost, "/marketplace/addresses", addr)
	if err != nil {
		return nil, err
	}
	var created models.Address
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, errors.Wrap(err, "failed to decode created address")
	}
	return &created, nil
}

// UpdateAddress edits an existing shipping address.
func (c *Client) UpdateAddress(a Auth, addr models.Address) error {
	_, err := c.do(a, http.MethodPut, "/marketplace/addresses/"+addr.UserAddressID, addr)
	return err
}

// DeleteAddress removes a shipping address.
func (c *Client) DeleteAddress(a Auth, userAddressID string) error {
	_, err := c.do(a, http.MethodDelete, "/marketplace/addresses/"+userAddressID, nil)
	return err
}

// PlaceBid submits one sealed bid. The server deduplicates retries of the
// identical submission attempt via the idempotency key; the response never
// carries competing bid amounts.
func (c *Client) PlaceBid(a Auth, auctionID string, req models.BidRequest) error {
	_, err := c.do(a, http.MethodPost, "/auctions/"+auctionID+"/bids", req)
	return err
}

// MyBids fetches the caller's own bids for one auction.
func (c *Client) MyBids(a Auth, auctionID string) ([]models.Bid, error) {
	data, err := c.do(a, http.MethodGet, "/auctions/"+auctionID+"/my-bids", nil)
	if err != nil {
		return nil, err
	}
	var bids []models.Bid
	if err := json.Unmarshal(data, &bids); err != nil {
		return nil, errors.Wrap(err, "failed to decode bids")
	}
	return bids, nil
}

// MyLatestBid fetches the caller's single most recent bid for one auction.
// It backs MyBids up on deployments that only expose the singular route.
func (c *Client) MyLatestBid(a Auth, auctionID string) (*models.Bid, error) {
	data, err := c.do(a, http.MethodGet, "/auctions/"+auctionID+"/my-bid", nil)
	if err != nil {
		return nil, err
	}
	var bid models.Bid
	if err := json.Unmarshal(data, &bid); err != nil {
		return nil, errors.Wrap(err, "failed to decode bid")
	}
	return &bid, nil
}

package models

import (
	"encoding/json"
	"time"
)

// Auction represents a sealed-bid auction as served by the marketplace API.
// The backend is inconsistent about field names (startPrice vs startingPrice
// vs start_price and so on), so all aliases are coalesced once in
// UnmarshalJSON and the rest of the client only ever sees the canonical
// fields below.
type Auction struct {
	ID           string
	Title        string
	Description  string
	Medium       string
	Dimensions   string
	Year         string
	SellerUserID string

	StartPrice   float64
	MinIncrement float64 // informational only; the floor check uses StartPrice

	StartAt *time.Time
	EndAt   *time.Time
	Status  string

	SingleBidOnly   bool
	AllowBidUpdates bool
}

// UnmarshalJSON normalizes every known alias of each logical field.
func (a *Auction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ID = pickString(raw, "auctionId", "id")
	a.Title = pickString(raw, "title")
	a.Description = pickString(raw, "description")
	a.Medium = pickString(raw, "medium")
	a.Dimensions = pickString(raw, "dimensions")
	a.Year = pickString(raw, "year")
	a.Status = pickString(raw, "status")

	a.StartPrice = pickNumber(raw, "startPrice", "startingPrice", "start_price")
	a.MinIncrement = pickNumber(raw, "minIncrement", "min_increment")

	a.StartAt = pickTime(raw, "startAt", "start_time")
	a.EndAt = pickTime(raw, "endAt", "endTime", "endsAt")

	a.SingleBidOnly = pickBool(raw, "singleBidOnly", "single_bid_only")
	a.AllowBidUpdates = pickBool(raw, "allowBidUpdates", "allow_bid_updates")

	a.SellerUserID = pickString(raw, "sellerUserId", "seller_id", "sellerId")
	if a.SellerUserID == "" {
		// Seller may arrive as a nested object instead of a flat id.
		if sellerRaw, ok := raw["seller"]; ok {
			var seller map[string]json.RawMessage
			if err := json.Unmarshal(sellerRaw, &seller); err == nil {
				a.SellerUserID = pickString(seller, "userId", "id")
			}
		}
	}

	return nil
}

// Bid represents one of the caller's own bids on an auction. Sealed auctions
// never expose competing bids, so every Bid the client sees is its own.
type Bid struct {
	ID        string
	AuctionID string
	Amount    float64
	CreatedAt time.Time
}

// UnmarshalJSON accepts both created_at and createdAt spellings.
func (b *Bid) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.ID = pickString(raw, "bidId", "id")
	b.AuctionID = pickString(raw, "auctionId", "auction_id")
	b.Amount = pickNumber(raw, "amount")
	if t := pickTime(raw, "created_at", "createdAt"); t != nil {
		b.CreatedAt = *t
	}
	return nil
}

// BidRequest is the body of POST /auctions/:auctionId/bids. The idempotency
// key is generated per submission attempt; a user retry is a new attempt with
// a new key, never a replay.
type BidRequest struct {
	Amount         float64 `json:"amount"`
	UserAddressID  string  `json:"userAddressId"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

// Address is a shipping address belonging to the caller.
type Address struct {
	UserAddressID        string `json:"userAddressId"`
	FullName             string `json:"fullName"`
	PhoneNumber          string `json:"phoneNumber"`
	AddressLine1         string `json:"addressLine1"`
	AddressLine2         string `json:"addressLine2,omitempty"`
	BarangayName         string `json:"barangayName"`
	CityMunicipalityName string `json:"cityMunicipalityName"`
	ProvinceName         string `json:"provinceName"`
	PostalCode           string `json:"postalCode"`
	IsDefault            bool   `json:"isDefault"`
}

// Session is a stored marketplace login for one Telegram user.
type Session struct {
	TelegramUserID int64
	MarketUserID   string
	AccessToken    string
	RefreshToken   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// pickString returns the first alias that decodes to a non-empty string.
func pickString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
		// Some deployments send numeric ids and years.
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

// pickNumber returns the first alias that decodes to a number. String-encoded
// numbers ("500.00") are accepted as well.
func pickNumber(raw map[string]json.RawMessage, keys ...string) float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			var n json.Number = json.Number(s)
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
	}
	return 0
}

// pickBool returns the first alias that decodes to a bool.
func pickBool(raw map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			return b
		}
	}
	return false
}

// pickTime returns the first alias that decodes to a timestamp. RFC 3339
// strings and epoch milliseconds are both seen in the wild.
func pickTime(raw map[string]json.RawMessage, keys ...string) *time.Time {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s == "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return &t
			}
			continue
		}
		var ms int64
		if err := json.Unmarshal(v, &ms); err == nil && ms > 0 {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
	}
	return nil
}

package auction

import (
	"errors"
	"fmt"
	"math"
	mrand "math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirayaph/subasta-bot/market"
	"github.com/hirayaph/subasta-bot/models"
)

// PreconditionReason identifies which client-side check rejected a bid.
type PreconditionReason string

const (
	// ReasonLoginRequired means no resolvable user id is available
	ReasonLoginRequired PreconditionReason = "login_required"
	// ReasonOwnAuction means the caller is the auction's seller
	ReasonOwnAuction PreconditionReason = "own_auction"
	// ReasonNoAddress means no shipping address is selected
	ReasonNoAddress PreconditionReason = "no_address"
	// ReasonBadAmount means the amount is unparseable or below the floor
	ReasonBadAmount PreconditionReason = "bad_amount"
	// ReasonNotLive means the auction phase does not allow bidding
	ReasonNotLive PreconditionReason = "not_live"
)

// PreconditionError is a client-detected rejection, produced before any
// network call. It is non-fatal and immediately recoverable by the user.
type PreconditionError struct {
	Reason  PreconditionReason
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// ErrSubmitInFlight is returned when a submission is attempted while another
// one is still outstanding.
var ErrSubmitInFlight = errors.New("a bid is already being submitted, hang on")

// NewIdempotencyKey generates the per-attempt idempotency token. Uniqueness,
// not unpredictability, is the requirement; the timestamp fallback only runs
// if the system's randomness source is unavailable.
func NewIdempotencyKey() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("bid-%d-%06d", time.Now().UnixNano(), mrand.Intn(1000000))
}

// Controller gates, validates and submits exactly one sealed bid per user
// action. It never refetches the auction after a bid: sealed auctions do not
// reveal competing amounts, so there is nothing to refresh.
type Controller struct {
	client    *market.Client
	auth      market.Auth
	userID    string
	auction   *models.Auction
	addresses *AddressStore

	// swapped out by tests
	now    func() time.Time
	newKey func() string

	mu       sync.Mutex
	inFlight bool
}

// NewController creates a bid controller for one open auction view.
// userID may be empty when the caller is not logged in; every submit will
// then fail the login precondition.
func NewController(client *market.Client, auth market.Auth, userID string, a *models.Auction, addresses *AddressStore) *Controller {
	return &Controller{
		client:    client,
		auth:      auth,
		userID:    userID,
		auction:   a,
		addresses: addresses,
		now:       time.Now,
		newKey:    NewIdempotencyKey,
	}
}

// ParseAmount parses a user-entered peso amount. Currency signs, commas and
// whitespace are tolerated; the result must be a finite number.
func ParseAmount(text string) (float64, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "₱")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	return amount, true
}

func formatPeso(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// check runs the ordered preconditions; the first failing one wins and each
// produces a distinct user-facing message.
func (c *Controller) check(amountText string) (amount float64, addressID string, err error) {
	if c.userID == "" {
		return 0, "", &PreconditionError{ReasonLoginRequired, "login required — use /login first"}
	}
	if c.auction.SellerUserID != "" && c.auction.SellerUserID == c.userID {
		return 0, "", &PreconditionError{ReasonOwnAuction, "not allowed to bid on your own auction"}
	}
	addressID = c.addresses.SelectedID()
	if addressID == "" {
		return 0, "", &PreconditionError{ReasonNoAddress, "select a shipping address"}
	}
	amount, ok := ParseAmount(amountText)
	if !ok || amount < c.auction.StartPrice {
		return 0, "", &PreconditionError{ReasonBadAmount,
			fmt.Sprintf("invalid bid, must be at least ₱%s", formatPeso(c.auction.StartPrice))}
	}
	now := c.now()
	if PhaseAt(now, c.auction.StartAt, c.auction.EndAt, c.auction.Status) != PhaseLive {
		msg := StatusLine(now, c.auction)
		if msg == "" {
			msg = "bidding is not open right now"
		}
		return 0, "", &PreconditionError{ReasonNotLive, msg}
	}
	return amount, addressID, nil
}

// SubmitEnabled reports whether the submit control should be live for the
// given candidate amount: no submission in flight, a valid amount, a selected
// address and a live auction.
func (c *Controller) SubmitEnabled(amountText string) bool {
	c.mu.Lock()
	inFlight := c.inFlight
	c.mu.Unlock()
	if inFlight {
		return false
	}
	amount, ok := ParseAmount(amountText)
	if !ok || amount < c.auction.StartPrice {
		return false
	}
	if c.addresses.SelectedID() == "" {
		return false
	}
	return PhaseAt(c.now(), c.auction.StartAt, c.auction.EndAt, c.auction.Status) == PhaseLive
}

// Submit validates and places one bid. A nil return means the backend
// accepted the submission; any error is terminal for this attempt and the
// user may retry, which generates a fresh idempotency key.
func (c *Controller) Submit(amountText string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	amount, addressID, err := c.check(amountText)
	if err != nil {
		return err
	}

	return c.client.PlaceBid(c.auth, c.auction.ID, models.BidRequest{
		Amount:         amount,
		UserAddressID:  addressID,
		IdempotencyKey: c.newKey(),
	})
}

package auction

import (
	"sort"

	"github.com/hirayaph/subasta-bot/market"
	"github.com/hirayaph/subasta-bot/models"
)

// FetchMyBids returns the caller's own bids for one auction, newest first.
// If the list endpoint is unavailable it falls back to the single-latest-bid
// endpoint and presents the result as a one-element list. A nil error with an
// empty slice means the caller genuinely has no bids yet; callers must keep
// that state distinct from a fetch error.
func FetchMyBids(client *market.Client, auth market.Auth, auctionID string) ([]models.Bid, error) {
	bids, err := client.MyBids(auth, auctionID)
	if err != nil {
		latest, fbErr := client.MyLatestBid(auth, auctionID)
		if fbErr != nil {
			// Report the primary failure; the fallback was best effort.
			return nil, err
		}
		return []models.Bid{*latest}, nil
	}

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
	return bids, nil
}

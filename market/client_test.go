package market

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirayaph/subasta-bot/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestAuthTransport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		access, err := r.Cookie("sb-access-token")
		require.NoError(t, err)
		assert.Equal(t, "access-1", access.Value)

		refresh, err := r.Cookie("sb-refresh-token")
		require.NoError(t, err)
		assert.Equal(t, "refresh-1", refresh.Value)

		fmt.Fprint(w, `{"success":true,"data":[]}`)
	})

	_, err := client.ListAddresses(Auth{AccessToken: "access-1", RefreshToken: "refresh-1"})
	require.NoError(t, err)
}

func TestServerErrorMessageSurfacedVerbatim(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"error":"Bid must be at least the starting price"}`)
	})

	err := client.PlaceBid(Auth{}, "auc-1", models.BidRequest{Amount: 100})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bid must be at least the starting price", err.Error())
}

func TestServerErrorWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.PlaceBid(Auth{}, "auc-1", models.BidRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "request failed (HTTP 502)", err.Error())
}

func TestSuccessFalseWithOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":"auction not found"}`)
	})

	_, err := client.GetAuction(Auth{}, "auc-404")
	require.Error(t, err)
	assert.Equal(t, "auction not found", err.Error())
}

func TestSuccessFalseWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 200 with a rejection and no error string at all.
		fmt.Fprint(w, `{"success":false}`)
	})

	err := client.PlaceBid(Auth{}, "auc-1", models.BidRequest{Amount: 600})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "request failed (HTTP 200)", err.Error())
}

func TestGetAuctionNormalizesPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auctions/auc-1", r.URL.Path)
		fmt.Fprint(w, `{"success":true,"data":{
			"title":"Untitled No. 7",
			"starting_price_ignored":1,
			"startingPrice":2500,
			"start_time":"2026-03-01T10:00:00Z",
			"endsAt":"2026-03-02T10:00:00Z",
			"single_bid_only":true,
			"seller":{"userId":"seller-9"},
			"status":"active"
		}}`)
	})

	auction, err := client.GetAuction(Auth{}, "auc-1")
	require.NoError(t, err)
	assert.Equal(t, "auc-1", auction.ID, "missing id falls back to the requested one")
	assert.Equal(t, 2500.0, auction.StartPrice)
	assert.Equal(t, "seller-9", auction.SellerUserID)
	assert.True(t, auction.SingleBidOnly)
	require.NotNil(t, auction.StartAt)
	require.NotNil(t, auction.EndAt)
}

func TestMyLatestBidAcceptsBarePayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// No envelope at all on this deployment.
		fmt.Fprint(w, `{"amount":900,"created_at":"2026-03-01T12:00:00Z"}`)
	})

	bid, err := client.MyLatestBid(Auth{}, "auc-1")
	require.NoError(t, err)
	assert.Equal(t, 900.0, bid.Amount)
}

func TestMyLatestBidAcceptsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"amount":901}}`)
	})

	bid, err := client.MyLatestBid(Auth{}, "auc-1")
	require.NoError(t, err)
	assert.Equal(t, 901.0, bid.Amount)
}

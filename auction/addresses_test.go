package auction

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirayaph/subasta-bot/market"
)

func addressesHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/marketplace/addresses", r.URL.Path)
		fmt.Fprint(w, body)
	}
}

func TestRefreshSelectsDefaultAddress(t *testing.T) {
	client := testClient(t, addressesHandler(t, `{"success":true,"data":[
		{"userAddressId":"a1","fullName":"Ana","isDefault":false},
		{"userAddressId":"a2","fullName":"Ben","isDefault":true}
	]}`))

	store := NewAddressStore(client, market.Auth{})
	store.Refresh()

	assert.Equal(t, "a2", store.SelectedID())
	assert.Len(t, store.Addresses(), 2)
	assert.NoError(t, store.LoadErr())
}

func TestRefreshFallsBackToFirstAddress(t *testing.T) {
	client := testClient(t, addressesHandler(t, `{"success":true,"data":[
		{"userAddressId":"a1"},
		{"userAddressId":"a2"}
	]}`))

	store := NewAddressStore(client, market.Auth{})
	store.Refresh()
	assert.Equal(t, "a1", store.SelectedID())
}

func TestRefreshEmptyListSelectsNothing(t *testing.T) {
	client := testClient(t, addressesHandler(t, `{"success":true,"data":[]}`))

	store := NewAddressStore(client, market.Auth{})
	store.Refresh()
	assert.Equal(t, "", store.SelectedID())
	assert.Empty(t, store.Addresses())
}

func TestRefreshPreservesExistingSelection(t *testing.T) {
	client := testClient(t, addressesHandler(t, `{"success":true,"data":[
		{"userAddressId":"a1","isDefault":true},
		{"userAddressId":"a2"}
	]}`))

	store := NewAddressStore(client, market.Auth{})
	store.selectedID = "a2"
	store.Refresh()

	// The default does not steal an existing, still-valid selection.
	assert.Equal(t, "a2", store.SelectedID())
}

func TestRefreshResetsVanishedSelection(t *testing.T) {
	client := testClient(t, addressesHandler(t, `{"success":true,"data":[
		{"userAddressId":"a1"}
	]}`))

	store := NewAddressStore(client, market.Auth{})
	store.selectedID = "gone"
	store.Refresh()
	assert.Equal(t, "a1", store.SelectedID())
}

func TestRefreshFailsOpenOnError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := NewAddressStore(client, market.Auth{})
	store.selectedID = "a1"
	store.Refresh()

	assert.Empty(t, store.Addresses())
	assert.Equal(t, "", store.SelectedID())
	assert.Error(t, store.LoadErr())
}

func TestSelect(t *testing.T) {
	store := storeWith("", "a1", "a2")

	assert.True(t, store.Select("a2"))
	assert.Equal(t, "a2", store.SelectedID())

	assert.False(t, store.Select("nope"))
	assert.Equal(t, "a2", store.SelectedID(), "failed select must not clobber the current one")
}

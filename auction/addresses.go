package auction

import (
	"sync"

	"github.com/hirayaph/subasta-bot/market"
	"github.com/hirayaph/subasta-bot/models"
)

// AddressStore supplies the bidding flow with at most one selected shipping
// address. A failed refresh fails open to an empty list: the submit control
// simply stays disabled instead of the view erroring out.
type AddressStore struct {
	client *market.Client
	auth   market.Auth

	mu         sync.Mutex
	addresses  []models.Address
	selectedID string
	loadErr    error
}

// NewAddressStore creates an address store bound to one caller's session.
func NewAddressStore(client *market.Client, auth market.Auth) *AddressStore {
	return &AddressStore{client: client, auth: auth}
}

// Refresh fetches the caller's addresses. A previously selected address keeps
// its selection if it survived the refresh; otherwise the flagged default is
// selected, then the first address, then none.
func (s *AddressStore) Refresh() {
	addresses, err := s.client.ListAddresses(s.auth)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.addresses = nil
		s.selectedID = ""
		s.loadErr = err
		return
	}

	s.addresses = addresses
	s.loadErr = nil

	if s.selectedID != "" {
		for _, a := range addresses {
			if a.UserAddressID == s.selectedID {
				return
			}
		}
	}

	s.selectedID = ""
	for _, a := range addresses {
		if a.IsDefault {
			s.selectedID = a.UserAddressID
			return
		}
	}
	if len(addresses) > 0 {
		s.selectedID = addresses[0].UserAddressID
	}
}

// Select marks the given address as the one a bid will ship to. Returns false
// if the id is not in the current list.
func (s *AddressStore) Select(userAddressID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addresses {
		if a.UserAddressID == userAddressID {
			s.selectedID = userAddressID
			return true
		}
	}
	return false
}

// Addresses returns the current list.
func (s *AddressStore) Addresses() []models.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Address, len(s.addresses))
	copy(out, s.addresses)
	return out
}

// SelectedID returns the selected address id, or "" when none is selected.
func (s *AddressStore) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// LoadErr reports the error from the last refresh, if it failed. The UI shows
// it as a soft notice; the rest of the view stays usable.
func (s *AddressStore) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

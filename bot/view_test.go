package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirayaph/subasta-bot/auction"
	"github.com/hirayaph/subasta-bot/models"
)

func stoppedClockView() *auctionView {
	a := &models.Auction{Status: "active"}
	return &auctionView{
		auction: a,
		clock:   auction.NewClock(a, func(auction.Phase, string) {}),
	}
}

func TestDelayedCloseSkipsReplacedView(t *testing.T) {
	b := &Bot{views: make(map[int64]*auctionView)}

	bidOn := stoppedClockView()
	b.views[1] = bidOn

	// The user opened another auction before the post-bid timer fired.
	replacement := stoppedClockView()
	b.views[1] = replacement

	b.closeViewIf(1, bidOn)
	assert.Same(t, replacement, b.view(1), "the replacement view must survive the stale timer")
	assert.False(t, replacement.closed)

	// The timer for the still-open view closes it as usual.
	b.closeViewIf(1, replacement)
	assert.Nil(t, b.view(1))
	assert.True(t, replacement.closed)
}

func TestCloseViewStopsClock(t *testing.T) {
	b := &Bot{views: make(map[int64]*auctionView)}
	view := stoppedClockView()
	b.views[7] = view

	b.closeView(7)
	require.Nil(t, b.view(7))
	assert.True(t, view.closed)

	// Closing an already-closed chat is a no-op.
	b.closeView(7)
}

func TestCardTextEscapesServerText(t *testing.T) {
	v := &auctionView{auction: &models.Auction{
		ID:          "auc-1",
		Title:       "Unti*tled_No.7",
		Medium:      "oil_on_canvas",
		Description: "has [brackets] and `ticks`",
		StartPrice:  500,
	}}

	text := v.cardText("")
	assert.Contains(t, text, `Unti\*tled\_No.7`)
	assert.Contains(t, text, `oil\_on\_canvas`)
	assert.Contains(t, text, `\[brackets]`)
	assert.Contains(t, text, "\\`ticks\\`")
	assert.NotContains(t, text, "Unti*tled_No.7")
}

package bot

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/tucnak/telebot.v2"

	"github.com/hirayaph/subasta-bot/auction"
	"github.com/hirayaph/subasta-bot/market"
	"github.com/hirayaph/subasta-bot/models"
)

// closeDelay is how long the success confirmation stays on screen before the
// auction view closes itself.
const closeDelay = 1200 * time.Millisecond

// auctionView is the per-chat state of one open auction: the card message
// being live-edited, the countdown clock, the address store and the bid
// controller. Its lifetime is exactly the view's open duration; closing the
// view stops the clock on every exit path.
type auctionView struct {
	bot        *Bot
	sender     *telebot.User
	auction    *models.Auction
	store      *auction.AddressStore
	controller *auction.Controller
	clock      *auction.Clock
	msg        *telebot.Message
	menu       *telebot.ReplyMarkup

	mu       sync.Mutex
	lastLine string
	closed   bool
}

// openAuction fetches the auction, opens a fresh view for the chat and starts
// the countdown. Any previously open view in the same chat is closed first.
func (b *Bot) openAuction(sender *telebot.User, auctionID string) error {
	b.closeView(sender.ID)

	a, userID := b.session(sender.ID)

	auc, err := b.market.GetAuction(a, auctionID)
	if err != nil {
		b.teleBot.Send(sender, fmt.Sprintf("Couldn't load that auction: %s", err.Error()))
		return fmt.Errorf("failed to fetch auction %s: %v", auctionID, err)
	}

	store := auction.NewAddressStore(b.market, a)
	store.Refresh()

	view := &auctionView{
		bot:        b,
		sender:     sender,
		auction:    auc,
		store:      store,
		controller: auction.NewController(b.market, a, userID, auc, store),
	}

	line := auction.StatusLine(time.Now(), auc)
	view.lastLine = line

	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{*b.btnMyBids, *b.btnAddresses},
		{*b.btnClose},
	}

	msg, err := b.teleBot.Send(sender, view.cardText(line), menu, telebot.ModeMarkdown)
	if err != nil {
		return fmt.Errorf("failed to send auction card: %v", err)
	}
	view.msg = msg
	view.menu = menu

	if userID == "" {
		b.teleBot.Send(sender, "You're browsing logged out — /login before placing a bid.")
	} else if store.LoadErr() != nil {
		b.teleBot.Send(sender, "⚠️ Couldn't load your shipping addresses right now. You can keep watching; retry with /addresses before bidding.")
	}

	view.clock = auction.NewClock(auc, view.onTick)

	b.mu.Lock()
	b.views[sender.ID] = view
	b.mu.Unlock()

	view.clock.Start()
	return nil
}

// view returns the open auction view for a chat, if any.
func (b *Bot) view(userID int64) *auctionView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.views[userID]
}

// closeView tears down the chat's open view and cancels its countdown.
func (b *Bot) closeView(userID int64) {
	b.mu.Lock()
	view := b.views[userID]
	delete(b.views, userID)
	b.mu.Unlock()

	if view == nil {
		return
	}
	view.teardown()
}

// closeViewIf tears down the chat's view only if the given view is still the
// open one. Delayed closes go through here so a view opened inside the delay
// window doesn't get torn down by its predecessor's timer.
func (b *Bot) closeViewIf(userID int64, view *auctionView) {
	b.mu.Lock()
	if b.views[userID] != view {
		b.mu.Unlock()
		return
	}
	delete(b.views, userID)
	b.mu.Unlock()

	view.teardown()
}

func (v *auctionView) teardown() {
	v.clock.Stop()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}

// onTick runs on the clock goroutine once per second. The card is only
// re-edited when the rendered countdown line actually changed, which keeps
// the edit volume inside Telegram's limits.
func (v *auctionView) onTick(_ auction.Phase, line string) {
	v.mu.Lock()
	if v.closed || line == v.lastLine {
		v.mu.Unlock()
		return
	}
	v.lastLine = line
	v.mu.Unlock()

	// Keep the keyboard: an edit without it would strip the buttons.
	if _, err := v.bot.teleBot.Edit(v.msg, v.cardText(line), v.menu, telebot.ModeMarkdown); err != nil {
		log.Printf("Failed to edit auction card: %v", err)
	}
}

// markdownEscaper neutralizes Telegram markdown metacharacters so a stray *
// or _ in server-provided text can't break the message parse.
var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// cardText renders the auction card with the given countdown line.
func (v *auctionView) cardText(line string) string {
	a := v.auction

	var b strings.Builder
	title := a.Title
	if title == "" {
		title = "Auction " + a.ID
	}
	fmt.Fprintf(&b, "🎨 *%s*", escapeMarkdown(title))
	if a.Year != "" {
		fmt.Fprintf(&b, " (%s)", escapeMarkdown(a.Year))
	}
	b.WriteString("\n")

	if a.Medium != "" || a.Dimensions != "" {
		details := a.Medium
		if a.Dimensions != "" {
			if details != "" {
				details += ", "
			}
			details += a.Dimensions
		}
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdown(details))
	}
	if a.Description != "" {
		fmt.Fprintf(&b, "%s\n", escapeMarkdown(a.Description))
	}

	fmt.Fprintf(&b, "\n💰 Floor price: ₱%s\n", strconv.FormatFloat(a.StartPrice, 'f', -1, 64))
	if a.MinIncrement > 0 {
		fmt.Fprintf(&b, "📈 Min increment: ₱%s\n", strconv.FormatFloat(a.MinIncrement, 'f', -1, 64))
	}
	if a.SingleBidOnly {
		b.WriteString("🔒 Single bid only\n")
	}
	if a.AllowBidUpdates {
		b.WriteString("✏️ Bid updates allowed\n")
	}

	if line != "" {
		fmt.Fprintf(&b, "\n⏱ %s\n", line)
	}

	b.WriteString("\nThis is a *sealed* auction — amounts stay hidden.\nPlace your bid with /bid <amount>")
	return b.String()
}

// placeBid runs the submission flow for the chat's open view.
func (b *Bot) placeBid(sender *telebot.User, amountText string) {
	view := b.view(sender.ID)
	if view == nil {
		b.teleBot.Send(sender, "Open an auction first with /auction <id>.")
		return
	}

	err := view.controller.Submit(amountText)
	if err == nil {
		b.teleBot.Send(sender, "✅ *Bid placed!* Your sealed bid is in — you'll be notified if you win.", telebot.ModeMarkdown)
		// Let the user read the confirmation, then close this view — and
		// only this view, in case another auction was opened meanwhile.
		time.AfterFunc(closeDelay, func() { b.closeViewIf(sender.ID, view) })
		return
	}

	var pre *auction.PreconditionError
	if errors.As(err, &pre) {
		b.teleBot.Send(sender, "⚠️ "+pre.Message)
		if pre.Reason == auction.ReasonNoAddress {
			// Put the address keyboard in front of the user right away.
			b.showAddresses(sender)
		}
		return
	}
	if err == auction.ErrSubmitInFlight {
		b.teleBot.Send(sender, "⏳ "+err.Error())
		return
	}

	// Transport or server rejection: surface the server's message verbatim
	// and leave the view open for a retry (which uses a fresh key).
	b.teleBot.Send(sender, "❌ "+bidFailureMessage(err))
}

// bidFailureMessage renders a server-side bid failure for the user.
func bidFailureMessage(err error) string {
	if apiErr, ok := err.(*market.APIError); ok && apiErr.Message == "" {
		return fmt.Sprintf("failed to place bid (HTTP %d)", apiErr.Status)
	}
	return err.Error()
}

// showMyBids lists the caller's own bids for the open auction, newest first.
func (b *Bot) showMyBids(sender *telebot.User) error {
	view := b.view(sender.ID)
	if view == nil {
		b.teleBot.Send(sender, "Open an auction first with /auction <id>.")
		return nil
	}

	a, _ := b.session(sender.ID)
	bids, err := auction.FetchMyBids(b.market, a, view.auction.ID)
	if err != nil {
		b.teleBot.Send(sender, "⚠️ Couldn't load your bids right now, try again in a moment.")
		return fmt.Errorf("failed to fetch bids: %v", err)
	}

	if len(bids) == 0 {
		b.teleBot.Send(sender, "You haven't placed any bids yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("📜 *Your bids on this auction:*\n\n")
	for i, bid := range bids {
		tag := ""
		if i == 0 {
			tag = " — *Latest*"
		}
		when := ""
		if !bid.CreatedAt.IsZero() {
			when = bid.CreatedAt.Local().Format(time.RFC822)
		}
		fmt.Fprintf(&sb, "₱%s  %s%s\n", strconv.FormatFloat(bid.Amount, 'f', -1, 64), when, tag)
	}
	b.teleBot.Send(sender, sb.String(), telebot.ModeMarkdown)
	return nil
}

// showAddresses lists the caller's shipping addresses with selection and
// deletion buttons. Works against the open view's store when there is one, so
// selection feeds straight into the bid gate.
func (b *Bot) showAddresses(sender *telebot.User) {
	view := b.view(sender.ID)

	var store *auction.AddressStore
	if view != nil {
		store = view.store
		store.Refresh()
	} else {
		a, _ := b.session(sender.ID)
		store = auction.NewAddressStore(b.market, a)
		store.Refresh()
	}

	if store.LoadErr() != nil {
		b.teleBot.Send(sender, "⚠️ Couldn't load your addresses right now. Add one with /addaddress or try again.")
		return
	}

	addresses := store.Addresses()
	if len(addresses) == 0 {
		b.teleBot.Send(sender, "No shipping addresses yet. Add one with:\n/addaddress name|phone|line1|line2|barangay|city|province|postal")
		return
	}

	selected := store.SelectedID()
	for _, addr := range addresses {
		marker := "📍"
		if addr.UserAddressID == selected {
			marker = "✅"
		}
		text := fmt.Sprintf("%s *%s*\n%s\n%s%s, %s, %s %s\n☎️ %s",
			marker, escapeMarkdown(addr.FullName),
			escapeMarkdown(addr.AddressLine1),
			escapeMarkdown(addressLine2(addr)), escapeMarkdown(addr.BarangayName),
			escapeMarkdown(addr.CityMunicipalityName), escapeMarkdown(addr.ProvinceName),
			escapeMarkdown(addr.PostalCode),
			escapeMarkdown(addr.PhoneNumber))
		if addr.IsDefault {
			text += "\n⭐ default"
		}

		menu := &telebot.ReplyMarkup{}
		menu.InlineKeyboard = [][]telebot.InlineButton{{
			{Text: "Ship here", Unique: cbSelectAddress + addr.UserAddressID},
			{Text: "🗑 Delete", Unique: cbDeleteAddress + addr.UserAddressID},
		}}
		b.teleBot.Send(sender, text, menu, telebot.ModeMarkdown)
	}
}

func addressLine2(addr models.Address) string {
	if addr.AddressLine2 == "" {
		return ""
	}
	return addr.AddressLine2 + "\n"
}

// selectAddress handles the "Ship here" button.
func (b *Bot) selectAddress(c *telebot.Callback, userAddressID string) {
	view := b.view(c.Sender.ID)
	if view == nil {
		b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "Open an auction first", ShowAlert: true})
		return
	}
	if !view.store.Select(userAddressID) {
		b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "That address is gone — refresh with /addresses", ShowAlert: true})
		return
	}
	b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "Shipping address selected"})
}

// deleteAddress handles the delete button.
func (b *Bot) deleteAddress(c *telebot.Callback, userAddressID string) {
	a, _ := b.session(c.Sender.ID)
	if err := b.market.DeleteAddress(a, userAddressID); err != nil {
		b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "Failed to delete address", ShowAlert: true})
		log.Printf("Failed to delete address %s: %v", userAddressID, err)
		return
	}
	if view := b.view(c.Sender.ID); view != nil {
		view.store.Refresh()
	}
	b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "Address deleted"})
}

// addAddress creates a shipping address from a pipe-separated command.
func (b *Bot) addAddress(m *telebot.Message) error {
	addr, ok := parseAddressArgs(strings.TrimSpace(strings.TrimPrefix(m.Text, "/addaddress")))
	if !ok {
		b.teleBot.Send(m.Sender, "Usage:\n/addaddress name|phone|line1|line2|barangay|city|province|postal\n(leave line2 empty if you don't need it)")
		return nil
	}

	a, _ := b.session(m.Sender.ID)
	created, err := b.market.CreateAddress(a, addr)
	if err != nil {
		b.teleBot.Send(m.Sender, "Failed to add address: "+err.Error())
		return fmt.Errorf("failed to create address: %v", err)
	}

	if view := b.view(m.Sender.ID); view != nil {
		view.store.Refresh()
		if created.UserAddressID != "" {
			view.store.Select(created.UserAddressID)
		}
	}
	b.teleBot.Send(m.Sender, "✅ Address added.")
	return nil
}

// editAddress updates an existing address from a pipe-separated command.
func (b *Bot) editAddress(m *telebot.Message) error {
	rest := strings.TrimSpace(strings.TrimPrefix(m.Text, "/editaddress"))
	parts := strings.SplitN(rest, "|", 2)
	if len(parts) != 2 {
		b.teleBot.Send(m.Sender, "Usage:\n/editaddress id|name|phone|line1|line2|barangay|city|province|postal")
		return nil
	}
	addr, ok := parseAddressArgs(parts[1])
	if !ok {
		b.teleBot.Send(m.Sender, "Usage:\n/editaddress id|name|phone|line1|line2|barangay|city|province|postal")
		return nil
	}
	addr.UserAddressID = strings.TrimSpace(parts[0])

	a, _ := b.session(m.Sender.ID)
	if err := b.market.UpdateAddress(a, addr); err != nil {
		b.teleBot.Send(m.Sender, "Failed to update address: "+err.Error())
		return fmt.Errorf("failed to update address: %v", err)
	}

	if view := b.view(m.Sender.ID); view != nil {
		view.store.Refresh()
	}
	b.teleBot.Send(m.Sender, "✅ Address updated.")
	return nil
}

// parseAddressArgs splits "name|phone|line1|line2|barangay|city|province|postal".
func parseAddressArgs(args string) (models.Address, bool) {
	parts := strings.Split(args, "|")
	if len(parts) != 8 {
		return models.Address{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	addr := models.Address{
		FullName:             parts[0],
		PhoneNumber:          parts[1],
		AddressLine1:         parts[2],
		AddressLine2:         parts[3],
		BarangayName:         parts[4],
		CityMunicipalityName: parts[5],
		ProvinceName:         parts[6],
		PostalCode:           parts[7],
	}
	if addr.FullName == "" || addr.PhoneNumber == "" || addr.AddressLine1 == "" {
		return models.Address{}, false
	}
	return addr, true
}

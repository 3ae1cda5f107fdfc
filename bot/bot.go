package bot

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gopkg.in/tucnak/telebot.v2"

	"github.com/hirayaph/subasta-bot/auth"
	"github.com/hirayaph/subasta-bot/config"
	"github.com/hirayaph/subasta-bot/db"
	"github.com/hirayaph/subasta-bot/market"
	"github.com/hirayaph/subasta-bot/models"
)

// Button identifiers
const (
	btnMyBidsID    = "my_bids"
	btnAddressesID = "addresses"
	btnCloseID     = "close_view"
	btnHelpID      = "help"

	// Callback prefixes
	cbSelectAddress = "selectaddr:"
	cbDeleteAddress = "deladdr:"
)

// Bot represents the Telegram bot with its dependencies
type Bot struct {
	teleBot  *telebot.Bot
	database *db.Database
	market   *market.Client
	config   *config.Config

	// Button instances
	btnMyBids    *telebot.InlineButton
	btnAddresses *telebot.InlineButton
	btnClose     *telebot.InlineButton
	btnHelp      *telebot.InlineButton

	// One open auction view per chat; guarded by mu
	mu    sync.Mutex
	views map[int64]*auctionView
}

// NewBot creates a new Bot instance
func NewBot(cfg *config.Config) (*Bot, error) {
	database, err := db.NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}

	btnMyBids := telebot.InlineButton{Unique: btnMyBidsID, Text: "📜 My Bids"}
	btnAddresses := telebot.InlineButton{Unique: btnAddressesID, Text: "📍 Shipping Address"}
	btnClose := telebot.InlineButton{Unique: btnCloseID, Text: "✖️ Close"}
	btnHelp := telebot.InlineButton{Unique: btnHelpID, Text: "❓ Help"}

	return &Bot{
		teleBot:      bot,
		database:     database,
		market:       market.NewClient(cfg.MarketAPIURL),
		config:       cfg,
		btnMyBids:    &btnMyBids,
		btnAddresses: &btnAddresses,
		btnClose:     &btnClose,
		btnHelp:      &btnHelp,
		views:        make(map[int64]*auctionView),
	}, nil
}

// session returns the stored marketplace login for a Telegram user, or a
// zero-value auth and empty user id when the user never logged in.
func (b *Bot) session(userID int64) (market.Auth, string) {
	s, err := b.database.GetSession(userID)
	if err != nil {
		log.Printf("Failed to load session for user %d: %v", userID, err)
		return market.Auth{}, ""
	}
	if s == nil {
		return market.Auth{}, ""
	}
	return market.Auth{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}, s.MarketUserID
}

// login stores the token pair and resolves the marketplace user id from it
func (b *Bot) login(m *telebot.Message) error {
	args := strings.Fields(m.Text)
	if len(args) != 3 {
		b.teleBot.Send(m.Sender, "Usage: /login <access_token> <refresh_token>")
		return nil
	}

	marketUserID, err := auth.UserIDFromToken(args[1])
	if err != nil {
		b.teleBot.Send(m.Sender, "That access token doesn't look valid. Copy both tokens from the app and try again.")
		return fmt.Errorf("failed to resolve user id: %v", err)
	}

	if err := b.database.SaveSession(models.Session{
		TelegramUserID: m.Sender.ID,
		MarketUserID:   marketUserID,
		AccessToken:    args[1],
		RefreshToken:   args[2],
	}); err != nil {
		b.teleBot.Send(m.Sender, "Failed to save your login")
		return fmt.Errorf("failed to save session: %v", err)
	}

	b.teleBot.Send(m.Sender, "✅ Logged in! You can now open an auction with /auction <id>.\n\nTip: delete your /login message so your tokens don't linger in the chat.")
	return nil
}

// logout deletes the stored login
func (b *Bot) logout(m *telebot.Message) error {
	b.closeView(m.Sender.ID)
	if err := b.database.DeleteSession(m.Sender.ID); err != nil {
		b.teleBot.Send(m.Sender, "Failed to log out")
		return fmt.Errorf("failed to delete session: %v", err)
	}
	b.teleBot.Send(m.Sender, "Logged out.")
	return nil
}

// showHelp displays help information
func (b *Bot) showHelp(m *telebot.Message) {
	helpText := `*Hiraya Market Auction Bot*

*Available Commands:*
/login <access> <refresh> - Connect your marketplace account
/auction <id> - Open an auction and watch the countdown
/bid <amount> - Place a sealed bid on the open auction
/addresses - Manage your shipping addresses
/addaddress <name|phone|line1|line2|barangay|city|province|postal> - Add an address
/close - Close the open auction view
/logout - Forget your login
/help - Show this help message

*How bidding works:*
1. Log in with your marketplace tokens
2. Open an auction with /auction
3. Pick a shipping address
4. Place your bid while the auction is live

Bids are *sealed*: nobody sees anyone else's amounts, and neither do you. The highest valid bid at closing wins.`

	b.teleBot.Send(m.Sender, helpText, telebot.ModeMarkdown)
}

// sendMainMenu sends the main menu with buttons to the user
func (b *Bot) sendMainMenu(m *telebot.Message) {
	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{*b.btnAddresses},
		{*b.btnHelp},
	}
	b.teleBot.Send(m.Sender, "Welcome to Hiraya Market auctions! Open an auction with /auction <id>, or choose an option:", menu)
}

// Start starts the bot and registers command handlers
func (b *Bot) Start() {
	// Register button handlers
	b.teleBot.Handle(&telebot.InlineButton{Unique: btnMyBidsID}, func(c *telebot.Callback) {
		b.teleBot.Respond(c, &telebot.CallbackResponse{})
		if err := b.showMyBids(c.Sender); err != nil {
			log.Printf("Error showing bids: %v", err)
		}
	})

	b.teleBot.Handle(&telebot.InlineButton{Unique: btnAddressesID}, func(c *telebot.Callback) {
		b.teleBot.Respond(c, &telebot.CallbackResponse{})
		b.showAddresses(c.Sender)
	})

	b.teleBot.Handle(&telebot.InlineButton{Unique: btnCloseID}, func(c *telebot.Callback) {
		b.teleBot.Respond(c, &telebot.CallbackResponse{Text: "View closed"})
		b.closeView(c.Sender.ID)
	})

	b.teleBot.Handle(&telebot.InlineButton{Unique: btnHelpID}, func(c *telebot.Callback) {
		b.teleBot.Respond(c, &telebot.CallbackResponse{})
		b.showHelp(&telebot.Message{Sender: c.Sender})
	})

	// Address selection and deletion callbacks carry the address id
	b.teleBot.Handle(telebot.OnCallback, func(c *telebot.Callback) {
		data := strings.TrimPrefix(c.Data, "\f")
		if strings.HasPrefix(data, cbSelectAddress) {
			b.selectAddress(c, strings.TrimPrefix(data, cbSelectAddress))
		} else if strings.HasPrefix(data, cbDeleteAddress) {
			b.deleteAddress(c, strings.TrimPrefix(data, cbDeleteAddress))
		}
	})

	// Register command handlers
	b.teleBot.Handle("/start", func(m *telebot.Message) {
		b.sendMainMenu(m)
	})

	b.teleBot.Handle("/login", func(m *telebot.Message) {
		if err := b.login(m); err != nil {
			log.Printf("Error logging in: %v", err)
		}
	})

	b.teleBot.Handle("/logout", func(m *telebot.Message) {
		if err := b.logout(m); err != nil {
			log.Printf("Error logging out: %v", err)
		}
	})

	b.teleBot.Handle("/auction", func(m *telebot.Message) {
		args := strings.Fields(m.Text)
		if len(args) != 2 {
			b.teleBot.Send(m.Sender, "Usage: /auction <id>")
			return
		}
		if err := b.openAuction(m.Sender, args[1]); err != nil {
			log.Printf("Error opening auction: %v", err)
		}
	})

	b.teleBot.Handle("/bid", func(m *telebot.Message) {
		args := strings.SplitN(m.Text, " ", 2)
		if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
			b.teleBot.Send(m.Sender, "Usage: /bid <amount>")
			return
		}
		b.placeBid(m.Sender, args[1])
	})

	b.teleBot.Handle("/addresses", func(m *telebot.Message) {
		b.showAddresses(m.Sender)
	})

	b.teleBot.Handle("/addaddress", func(m *telebot.Message) {
		if err := b.addAddress(m); err != nil {
			log.Printf("Error adding address: %v", err)
		}
	})

	b.teleBot.Handle("/editaddress", func(m *telebot.Message) {
		if err := b.editAddress(m); err != nil {
			log.Printf("Error editing address: %v", err)
		}
	})

	b.teleBot.Handle("/close", func(m *telebot.Message) {
		b.closeView(m.Sender.ID)
		b.teleBot.Send(m.Sender, "View closed.")
	})

	b.teleBot.Handle("/help", func(m *telebot.Message) {
		b.showHelp(m)
	})

	// Handle unknown commands
	b.teleBot.Handle(telebot.OnText, func(m *telebot.Message) {
		// If message doesn't start with a command, show the main menu
		if !strings.HasPrefix(m.Text, "/") {
			b.sendMainMenu(m)
		}
	})

	log.Println("Bot started and ready to accept commands...")
	b.teleBot.Start()
}

package main

import (
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hirayaph/subasta-bot/bot"
	"github.com/hirayaph/subasta-bot/config"
)

func main() {
	// Load configuration
	cfg := config.NewConfig()

	// Initialize and start the bot
	auctionBot, err := bot.NewBot(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize bot: %v", err)
	}

	log.Println("Bot started...")
	auctionBot.Start()
}

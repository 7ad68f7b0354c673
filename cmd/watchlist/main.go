package main

import (
	"log"

	"github.com/MrSnakeDoc/watchlist/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ watchlist failed to start: %v", err)
	}
}

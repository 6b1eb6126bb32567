package main

import (
	"log"

	_ "github.com/joho/godotenv/autoload"

	"osis_bot/internal/recruitbot"
)

func main() {
	if err := recruitbot.Run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"

	_ "github.com/joho/godotenv/autoload"

	"github.com/Ankesh-007/peft-studio-sub003/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}

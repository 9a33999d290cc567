package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/snaplink/snaplink/internal/app"
	"github.com/snaplink/snaplink/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	if err := app.Run(ctx, cfg); err != nil {
		panic(err)
	}
}

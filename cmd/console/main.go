package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chinbo/chinbo-server/internal/client/config"
	"github.com/chinbo/chinbo-server/internal/client/console"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app := console.NewApp(cfg)

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}

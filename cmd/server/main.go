package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"showdown-arena/internal/api"
	"showdown-arena/internal/config"
	"showdown-arena/internal/room"
	"showdown-arena/internal/sim"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	log.Println("================================")
	log.Println(" SHOWDOWN ARENA - GO ENGINE")
	log.Println("================================")

	appConfig := config.Load()

	seed := uint32(rand.Int63() & 0xffffffff)
	rm := room.NewRoom(seed, appConfig.Room, sim.DefaultConfig())

	server := api.NewServer(rm)

	addr := fmt.Sprintf(":%d", appConfig.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Stop(ctx)
	log.Println("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"mindmate/internal/api"
	"mindmate/internal/config"
	"mindmate/internal/db"
	"mindmate/internal/remind"
	"mindmate/pkg/activity"
	"mindmate/pkg/escalation"
	"mindmate/pkg/notify"
	"mindmate/pkg/suggest"
	"mindmate/pkg/task"
	"mindmate/pkg/user"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)
	users := user.NewPgStore(pool)
	prompts := escalation.NewPgStore(pool)
	events := activity.NewPgStore(pool)

	// Ensure tables exist
	if err := tasks.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure tasks table: %v", err)
	}
	if err := users.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure users table: %v", err)
	}
	if err := prompts.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure escalation table: %v", err)
	}
	if err := events.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure activity table: %v", err)
	}

	bus := activity.NewBus(events)
	engine := suggest.New(tasks, prompts, bus)

	digest := remind.New(users, tasks, notify.Logger{}, bus, cfg.DigestSchedule)
	if err := digest.Start(); err != nil {
		log.Fatalf("start reminder digest: %v", err)
	}
	defer digest.Stop()

	server := api.New(tasks, users, engine, prompts, bus, []byte(cfg.JWTSecret))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(server),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		log.Printf("server: received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		cancel()
	}()

	log.Printf("mindmate listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}

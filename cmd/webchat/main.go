package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petasbytes/chatloop/internal/app"
	"github.com/petasbytes/chatloop/internal/runner"
	"github.com/petasbytes/chatloop/internal/webchat"
)

func main() {
	env, err := app.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := webchat.NewServer(
		func() *runner.Runner { return env.NewRunner() },
		webchat.WithMaxSessions(env.Config.MaxSessions),
		webchat.WithSessionTTL(env.Config.SessionTTL),
	)
	hs := &http.Server{
		Addr:              env.Config.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	fmt.Printf("webchat listening on %s (%s)\n", hs.Addr, env.Describe())
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

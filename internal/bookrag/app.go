package bookrag

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/bookrag/pkg/app"
)

const (
	// Name is the server binary name.
	Name = "bookrag-server"

	commandDesc = `Bookrag Server

Answers questions about a fixed set of books over HTTP. Each book's
PDF is chunked and embedded into a vector index at startup; queries
retrieve the most relevant chunks and a local LLM generates the
answer, optionally streamed token by token over SSE.`
)

// NewApp creates the bookrag server application.
func NewApp() *app.App {
	opts := NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *ServerOptions) app.RunFunc {
	return func() error {
		if err := opts.LogOptions.Init(); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ctx := setupSignalContext()

		srv, err := NewServer(ctx, opts)
		if err != nil {
			return fmt.Errorf("create server: %w", err)
		}
		return srv.Run(ctx)
	}
}

// setupSignalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}

package infrastructure

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server is anything with a blocking Start and a graceful Stop: the HTTP
// server and the collector worker both qualify.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App runs a set of servers until the context is cancelled, then stops them
// all with a bounded shutdown window.
type App struct {
	servers []Server
}

func NewApp(servers []Server) *App {
	return &App{servers: servers}
}

func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range a.servers {
		srv := srv
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range a.servers {
		if err := srv.Stop(stopCtx); err != nil {
			slog.Error("server stop failed", "error", err)
		}
	}

	return g.Wait()
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/filealchemy/internal/server"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the local HTTP API over one conversion session until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := r.newSession(ctx, sessionOpts{mock: cmd.Bool("mock"), remote: true, previews: true})
	defer s.Close()

	events := server.NewBroadcaster()
	go events.Run(ctx, s.progress)

	opts := server.APIOpts{
		Orchestrator:   s.orch,
		Notifications:  s.sink,
		Backend:        s.smart,
		Events:         events,
		Logger:         r.logger,
		MaxUploadBytes: cmd.Int64("max-upload"),
	}
	if s.history != nil {
		opts.History = s.history
	}

	ready := make(chan string, 1)
	go func() {
		select {
		case bound := <-ready:
			url := fmt.Sprintf("http://%s/session", bound)
			r.writePlain("Serving FileAlchemy on http://%s (Ctrl+C to stop)\n", bound)
			if cmd.Bool("open") {
				if err := shared.OpenURL(url); err != nil {
					r.logger.Warn("could not open browser", "error", err)
				}
			}
		case <-ctx.Done():
		}
	}()

	return server.Serve(ctx, addr, server.NewHandler(ctx, opts), r.logger, ready)
}

// Package dashboard serves the operator console's local HTTP API: JSON
// views over the desk engine's state, operator actions (select, send,
// typing, retry), transcript archive search, and a server-sent-events
// feed of state changes.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blackfroglabs/shopdesk/internal/archive"
	"github.com/blackfroglabs/shopdesk/internal/chat"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Desk    *chat.Desk
	Archive *archive.Store // optional; enables /api/archive routes
	Port    int
	Out     io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Desk == nil {
		return fmt.Errorf("dashboard: desk is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := newRouter(opts.Desk, opts.Archive)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Console running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter builds the Gin router with all routes registered.
func newRouter(desk *chat.Desk, store *archive.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, desk, store)
	return router
}

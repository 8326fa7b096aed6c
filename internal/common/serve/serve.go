package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// ShutdownTimeout bounds how long in-flight requests may take once ctx is cancelled.
const ShutdownTimeout = 5 * time.Second

// ListenAndServe calls server.ListenAndServe and gracefully shuts server down once ctx is cancelled.
// It returns nil after a shutdown caused by ctx.
func ListenAndServe(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.WithStack(err)
		}
		return nil
	}
}

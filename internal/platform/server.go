package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Component is a long-running part of the process that stops when its context is cancelled
type Component func(ctx context.Context) error

// ServeHTTP runs server until ctx is cancelled, then drains it within drainTimeout
func ServeHTTP(server *http.Server, drainTimeout time.Duration, logger *logrus.Logger) Component {
	return func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", server.Addr).Info("HTTP server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Run starts every component and waits for all of them. The first error
// cancels the rest.
func Run(ctx context.Context, components ...Component) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, component := range components {
		component := component
		group.Go(func() error {
			return component(groupCtx)
		})
	}
	return group.Wait()
}

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/multierr"
)

// Back moves one entry back in history and restores it.
func (c *Controller) Back(ctx context.Context) error {
	if !c.history.Back() {
		return ErrHistoryBoundary
	}
	return c.PopState(ctx)
}

// Forward moves one entry forward in history and restores it.
func (c *Controller) Forward(ctx context.Context) error {
	if !c.history.Forward() {
		return ErrHistoryBoundary
	}
	return c.PopState(ctx)
}

// PopState restores the current history entry. Entries recorded by a fluid
// navigation are fetched again as fragments; any other entry is reloaded
// as a whole document. A failed fetch falls back to a reload.
func (c *Controller) PopState(ctx context.Context) error {
	state, location := c.history.State(), c.history.URL()

	if !state.Fluid {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "restoring native history entry",
			slog.String("url", location.String()),
		)
		return c.window.Reload(ctx)
	}

	c.mu.Lock()
	nav := &navigation{
		method:  http.MethodGet,
		target:  location,
		version: c.version,
		gen:     c.generation.Add(1),
	}
	c.mu.Unlock()

	c.indicator.Start()
	resp, err := c.fetch(ctx, nav)
	c.indicator.Stop()

	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "restoring history entry failed, reloading",
			slog.String("url", location.String()),
			slog.String("error", err.Error()),
		)
		err = fmt.Errorf("client: restore %s: %w", location, err)
		if rerr := c.window.Reload(ctx); rerr != nil {
			return multierr.Append(err, rerr)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if nav.gen != c.generation.Load() {
		return ErrSuperseded
	}
	return c.apply(ctx, resp)
}

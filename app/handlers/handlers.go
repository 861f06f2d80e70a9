// Package handlers contains the HTTP endpoints the delivery provider calls
// back into: status callbacks and inbound texts. Both are translated into
// queue events so the consumer remains the single entry point for all work.
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

func createRequestContext(_ fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ticket-market/internal/apperr"
	"ticket-market/internal/client"
	"ticket-market/internal/clock"
	"ticket-market/internal/expiration"
	"ticket-market/models"
)

func watchCmd() *cobra.Command {
	var apiURL, token string
	cmd := &cobra.Command{
		Use:   "watch <orderId>",
		Short: "Show a live countdown for an order until it is paid, cancelled or expired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("TICKET_TOKEN")
			}
			c, err := client.New(apiURL, token)
			if err != nil {
				return err
			}
			return watchOrder(cmd.Context(), cmd.OutOrStdout(), clock.Real(), c, args[0])
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8090", "API base URL")
	cmd.Flags().StringVar(&token, "token", "", "session token (defaults to $TICKET_TOKEN)")
	return cmd
}

type orderGetter interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

// watchOrder prints one line per tick and returns once the order is
// resolved or ctx is done.
func watchOrder(ctx context.Context, out io.Writer, clk clock.Clock, c orderGetter, orderID string) error {
	o, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	var final error
	cd := expiration.NewCountdown(clk, o, func(ctx context.Context) (*models.Order, error) {
		return c.GetOrder(ctx, orderID)
	}, func(t expiration.Tick) {
		fmt.Fprintln(out, formatTick(t))
		if t.Err != nil {
			final = t.Err
		}
	})
	if err := cd.Start(ctx); err != nil {
		return err
	}
	defer cd.Stop()

	select {
	case <-cd.Done():
	case <-ctx.Done():
	}
	if errors.Is(final, apperr.ErrRelayUnavailable) {
		return fmt.Errorf("could not confirm expiry: %w", final)
	}
	return final
}

func formatTick(t expiration.Tick) string {
	switch {
	case t.Final != nil && t.Final.Status == models.OrderComplete:
		return fmt.Sprintf("order %s is paid", t.OrderID)
	case t.Final != nil && t.Final.CancelReason == models.ReasonExpired:
		return fmt.Sprintf("order %s expired", t.OrderID)
	case t.Final != nil:
		return fmt.Sprintf("order %s was cancelled", t.OrderID)
	case t.Err != nil:
		return fmt.Sprintf("order %s: could not refresh: %v", t.OrderID, t.Err)
	case t.Expired:
		return "time is up, checking with the server..."
	}
	secs := int(t.Remaining / time.Second)
	return fmt.Sprintf("%02d:%02d remaining", secs/60, secs%60)
}

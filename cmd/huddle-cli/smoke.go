package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle-server/internal/client"
	"github.com/vovakirdan/huddle-server/internal/log"
	"github.com/vovakirdan/huddle-server/internal/proto"
)

func newSmokeCmd(flags *globalFlags) *cobra.Command {
	var (
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Connect, send one message and wait for it to come back live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSmoke(cmd.Context(), flags, text, timeout)
		},
	}
	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func runSmoke(parent context.Context, flags *globalFlags, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	level := "disabled"
	if flags.verbose {
		level = "debug"
	}

	// Only messages newer than the history window count as the echo.
	var after atomic.Int64
	after.Store(math.MaxInt64)

	live := make(chan struct{}, 1)
	echoed := make(chan proto.EventMessage, 1)
	c, err := client.New(client.Options{
		BaseURL:  flags.server,
		Identity: flags.identity,
		Logger:   log.NewWithWriter(os.Stderr, level, false),
		OnStateChange: func(s client.State) {
			if s == client.StateLive {
				select {
				case live <- struct{}{}:
				default:
				}
			}
		},
		OnMessage: func(m proto.EventMessage) {
			if m.ID > after.Load() && m.Username == flags.identity && m.Message == text {
				select {
				case echoed <- m:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-runErr
	}()

	select {
	case <-live:
	case <-ctx.Done():
		return fmt.Errorf("never went live: %w", ctx.Err())
	}
	msgs := c.Messages()
	var last int64
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].ID
	}
	after.Store(last)
	fmt.Printf("live, %d messages in history, online: %v\n", len(msgs), c.Online())

	if err := c.Send(ctx, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	select {
	case m := <-echoed:
		fmt.Printf("EventMessage: id=%d user=%s text=%q ts=%s\n", m.ID, m.Username, m.Message, m.Timestamp)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("message not echoed: %w", ctx.Err())
	}
}

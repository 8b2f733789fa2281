package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle-server/internal/client"
	"github.com/vovakirdan/huddle-server/internal/log"
	"github.com/vovakirdan/huddle-server/internal/proto"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join the room interactively; type /nick <name> to rename",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), flags, history)
		},
	}
	cmd.Flags().IntVar(&history, "history", client.DefaultHistoryLimit, "messages fetched on every (re)connect")
	return cmd
}

func runChat(parent context.Context, flags *globalFlags, history int) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := "disabled"
	if flags.verbose {
		level = "debug"
	}

	c, err := client.New(client.Options{
		BaseURL:      flags.server,
		Identity:     flags.identity,
		HistoryLimit: history,
		Logger:       log.NewWithWriter(os.Stderr, level, false),
		OnStateChange: func(s client.State) {
			fmt.Printf("* %s\n", s)
		},
		OnMessage: printMessage,
		OnPresence: func(event string, p proto.EventPresence) {
			verb := "joined"
			if event == proto.EventUserLeft {
				verb = "left"
			}
			fmt.Printf("* %s %s (online: %s)\n", p.Username, verb, strings.Join(p.OnlineUsers, ", "))
		},
		OnServerError: func(e proto.Error) {
			fmt.Printf("! %s: %s\n", e.Code, e.Msg)
		},
	})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	fmt.Printf("Connecting to %s as %s\n", flags.server, flags.identity)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-runErr
			return nil
		case line, ok := <-lines:
			if !ok {
				stop()
				<-runErr
				return nil
			}
			if err := handleLine(ctx, c, line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

func handleLine(ctx context.Context, c *client.Client, line string) error {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(text, "/nick "); ok {
		return c.SetIdentity(ctx, name)
	}

	err := c.Send(ctx, text)
	if client.IsRejected(err) {
		var rerr *client.RequestError
		errors.As(err, &rerr)
		return fmt.Errorf("message rejected: %s", rerr.Message)
	}
	return err
}

func printMessage(m proto.EventMessage) {
	fmt.Printf("[%s] #%d %s: %s\n", m.Timestamp, m.ID, m.Username, m.Message)
}

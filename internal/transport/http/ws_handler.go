package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/huddle-server/internal/config"
	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/proto"
)

const defaultWriteTimeout = 10 * time.Second

var errShuttingDown = errors.New("server shutting down")

// WSHandler upgrades HTTP connections and bridges them to core.Connection.
type WSHandler struct {
	manager      *core.Manager
	log          *zerolog.Logger
	accept       *websocket.AcceptOptions
	writeTimeout time.Duration
	rateLimit    int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(manager *core.Manager, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	accept := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if len(cfg.AllowedOrigins) > 0 {
		accept = &websocket.AcceptOptions{OriginPatterns: cfg.AllowedOrigins}
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WSHandler{
		manager:      manager,
		log:          logger,
		accept:       accept,
		writeTimeout: writeTimeout,
		rateLimit:    cfg.RateLimitPerMinute,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	client := h.manager.Connect()
	defer h.manager.Disconnect(client.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	limiter := newSendLimiter(h.rateLimit)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status, reason := h.closeStatus(client, err)
	_ = conn.Close(status, reason)
}

func (h *WSHandler) closeStatus(client *core.Connection, err error) (websocket.StatusCode, string) {
	var terr *core.TransportError
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.As(err, &terr):
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection dropped")
		return websocket.StatusPolicyViolation, "slow consumer"
	case errors.Is(err, errShuttingDown):
		return websocket.StatusGoingAway, "server shutting down"
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	}
	h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Connection, limiter *rate.Limiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("read ws inbound")
			return err
		}

		cmd, protoErr := inboundToCommand(client.ID, inbound)
		if protoErr != nil {
			h.replyError(client, protoErr)
			continue
		}
		if cmd.Kind == core.CommandSendMessage && !allowSend(limiter) {
			h.replyError(client, &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages"})
			continue
		}

		if err := h.manager.Handle(ctx, cmd); err != nil {
			if errors.Is(err, core.ErrConnectionNotFound) {
				return err
			}
			h.handleCommandError(client, err)
		}
	}
}

func (h *WSHandler) handleCommandError(client *core.Connection, err error) {
	var (
		uerr *core.UnauthorizedError
		verr *core.ValidationError
		cerr *core.CoreError
	)
	switch {
	case errors.As(err, &uerr):
		// The client never identified itself; the message is dropped without feedback.
		h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("message from unidentified connection dropped")
	case errors.As(err, &verr), errors.As(err, &cerr):
		h.replyError(client, core.ToCoreError(err))
	default:
		h.log.Error().Err(err).Str("conn_id", client.ID).Msg("command failed")
		h.replyError(client, core.ToCoreError(err))
	}
}

func (h *WSHandler) replyError(client *core.Connection, cerr *core.CoreError) {
	if err := h.manager.Reply(client.ID, &core.Event{Kind: core.EventError, Error: cerr}); err != nil {
		h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("reply error event")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Connection) error {
	for {
		select {
		case event := <-client.Events():
			if err := h.write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return fmt.Errorf("write event: %w", err)
			}
		case <-client.Done():
			if err := client.Err(); err != nil {
				return err
			}
			return errShuttingDown
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, out)
}

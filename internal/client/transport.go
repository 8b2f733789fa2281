package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/huddle-server/internal/proto"
)

// RequestError is a non-2xx answer from the fallback endpoints.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type inboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var env inboundEnvelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env inboundEnvelope) {
	if env.Type == proto.OutboundTypeError {
		if env.Error == nil {
			return
		}
		c.log.Debug().Str("code", env.Error.Code).Str("msg", env.Error.Msg).Msg("server error")
		if c.opts.OnServerError != nil {
			c.opts.OnServerError(*env.Error)
		}
		return
	}

	switch env.Event {
	case proto.EventNewMessage:
		var msg proto.EventMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal new_message")
			return
		}
		c.applyLive(msg)
	case proto.EventUserJoined, proto.EventUserLeft:
		var presence proto.EventPresence
		if err := json.Unmarshal(env.Data, &presence); err != nil {
			c.log.Warn().Err(err).Str("event", env.Event).Msg("unmarshal presence")
			return
		}
		c.setOnline(presence.OnlineUsers)
		if c.opts.OnPresence != nil {
			c.opts.OnPresence(env.Event, presence)
		}
	case proto.EventWelcome:
		var welcome proto.WelcomeData
		if err := json.Unmarshal(env.Data, &welcome); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal welcome")
			return
		}
		c.setOnline(welcome.OnlineUsers)
		c.markWelcomed()
		c.log.Debug().Str("conn_id", welcome.ConnectionID).Str("room", welcome.Room).Msg("welcome")
	case proto.EventPong:
	default:
		c.log.Debug().Str("event", env.Event).Msg("ignoring unknown event")
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}

// FetchHistory loads the bootstrap window over the request/response endpoint.
// It does not touch the local view.
func (c *Client) FetchHistory(ctx context.Context) ([]proto.EventMessage, error) {
	url := c.opts.BaseURL + "/api/messages?limit=" + strconv.Itoa(c.opts.HistoryLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var msgs []proto.EventMessage
	if err := c.do(req, http.StatusOK, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Post submits a message through the fallback endpoint and returns it as stored.
func (c *Client) Post(ctx context.Context, identity, text string) (proto.EventMessage, error) {
	body, err := json.Marshal(proto.SubmitRequest{Username: identity, Message: text})
	if err != nil {
		return proto.EventMessage{}, fmt.Errorf("marshal submit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return proto.EventMessage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var msg proto.EventMessage
	if err := c.do(req, http.StatusCreated, &msg); err != nil {
		return proto.EventMessage{}, err
	}
	return msg, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode != want {
			return &RequestError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != want || !envelope.Success {
		return &RequestError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// IsRejected reports whether err is the server refusing a request, as opposed to a transport failure.
func IsRejected(err error) bool {
	var rerr *RequestError
	return errors.As(err, &rerr) && rerr.StatusCode >= 400 && rerr.StatusCode < 500
}

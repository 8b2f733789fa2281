package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vovakirdan/huddle-server/internal/proto"
)

type historyResponse struct {
	Success bool                 `json:"success"`
	Data    []proto.EventMessage `json:"data"`
	Error   string               `json:"error"`
}

type submitResponse struct {
	Success bool               `json:"success"`
	Data    proto.EventMessage `json:"data"`
	Error   string             `json:"error"`
}

func TestGetMessagesDefaultsAndClamps(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(stack.Manager, stack.Broker, stack.Config, stack.Logger)

	ctx := context.Background()
	for i := range 205 {
		if _, err := stack.Broker.Submit(ctx, "general", "alice", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	cases := []struct {
		name     string
		query    string
		expected int
	}{
		{name: "default limit", query: "", expected: 50},
		{name: "explicit limit", query: "?limit=3", expected: 3},
		{name: "over the cap is clamped", query: "?limit=1000", expected: 200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/messages"+tc.query, nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
			}

			var body historyResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if !body.Success || len(body.Data) != tc.expected {
				t.Fatalf("expected %d messages, got %d (success=%v)", tc.expected, len(body.Data), body.Success)
			}

			// Oldest first, ending with the newest message.
			for i := 1; i < len(body.Data); i++ {
				if body.Data[i].ID != body.Data[i-1].ID+1 {
					t.Fatalf("history not contiguous at %d: %d after %d", i, body.Data[i].ID, body.Data[i-1].ID)
				}
			}
			if last := body.Data[len(body.Data)-1]; last.ID != 205 || last.Message != "msg 204" {
				t.Fatalf("unexpected newest message: %+v", last)
			}
		})
	}
}

func TestGetMessagesRejectsInvalidLimit(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(stack.Manager, stack.Broker, stack.Config, stack.Logger)

	req := httptest.NewRequest(http.MethodGet, "/api/messages?limit=lots", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestPostMessageValidation(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(stack.Manager, stack.Broker, stack.Config, stack.Logger)

	cases := []struct {
		name string
		body string
	}{
		{name: "whitespace body", body: `{"username":"alice","message":"   "}`},
		{name: "missing body", body: `{"username":"alice"}`},
		{name: "blank username", body: `{"username":"  ","message":"hello"}`},
		{name: "not json", body: `hello`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
			}
			var body submitResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if body.Success || body.Error == "" {
				t.Fatalf("expected failure envelope, got %+v", body)
			}
		})
	}

	msgs, err := stack.Store.Recent(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected nothing stored, got %d messages", len(msgs))
	}
}

func TestPostMessageReachesLiveConnections(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := dialWS(t, ctx, ts)
	bind(t, ctx, conn, "bob")

	resp, err := ts.Client().Post(ts.URL+"/api/messages", "application/json",
		bytes.NewBufferString(`{"username":"alice","message":"  sent over http  "}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Message != "sent over http" || body.Data.Username != "alice" {
		t.Fatalf("unexpected response: %+v", body)
	}

	out := readUntil(t, ctx, conn, proto.EventNewMessage)
	var event proto.EventMessage
	if err := json.Unmarshal(out.Data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.ID != body.Data.ID || event.Username != "alice" {
		t.Fatalf("live event does not match stored message: %+v vs %+v", event, body.Data)
	}
}

func TestGetOnline(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(stack.Manager, stack.Broker, stack.Config, stack.Logger)

	c1 := stack.Manager.Connect()
	c2 := stack.Manager.Connect()
	if err := stack.Manager.SetIdentity(c1.ID, "bob"); err != nil {
		t.Fatalf("bind bob: %v", err)
	}
	if err := stack.Manager.SetIdentity(c2.ID, "alice"); err != nil {
		t.Fatalf("bind alice: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/online", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var body struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !body.Success || len(body.Data) != 2 || body.Data[0] != "alice" || body.Data[1] != "bob" {
		t.Fatalf("unexpected online response: %+v", body)
	}
}

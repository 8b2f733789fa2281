package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestManagerIdentityBroadcastAndLeave(t *testing.T) {
	m, _, _ := newTestManager(0)

	alice := connect(t, m)
	bob := connect(t, m)

	if err := m.SetIdentity(alice.ID, "alice"); err != nil {
		t.Fatalf("bind alice: %v", err)
	}
	if err := m.SetIdentity(bob.ID, "bob"); err != nil {
		t.Fatalf("bind bob: %v", err)
	}

	// Bob sees alice's join first, then his own with both identities online.
	aliceJoin := mustEvent(t, bob.Events(), EventUserJoined)
	if aliceJoin.User != "alice" || len(aliceJoin.Online) != 1 {
		t.Fatalf("unexpected first join event: %+v", aliceJoin)
	}
	joinEv := mustEvent(t, bob.Events(), EventUserJoined)
	if joinEv.User != "bob" || joinEv.Room != DefaultRoom || len(joinEv.Online) != 2 {
		t.Fatalf("unexpected join event: %+v", joinEv)
	}

	if _, err := m.SubmitMessage(context.Background(), alice.ID, "  hi  "); err != nil {
		t.Fatalf("submit: %v", err)
	}

	msgEv := mustEvent(t, bob.Events(), EventNewMessage)
	if msgEv.Message.Text != "hi" || msgEv.Message.Room != DefaultRoom || msgEv.Message.From != "alice" {
		t.Fatalf("unexpected message event: %+v", msgEv)
	}
	// The originator receives its own message too.
	if ev := mustEvent(t, alice.Events(), EventNewMessage); ev.Message.ID != msgEv.Message.ID {
		t.Fatalf("alice got a different message: %+v", ev)
	}

	m.Disconnect(alice.ID)
	leftEv := mustEvent(t, bob.Events(), EventUserLeft)
	if leftEv.User != "alice" || len(leftEv.Online) != 1 || leftEv.Online[0] != "bob" {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}
}

func TestManagerWelcomeListsOnline(t *testing.T) {
	m, _, _ := newTestManager(0)

	first := connect(t, m)
	if err := m.SetIdentity(first.ID, "zoe"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	second := m.Connect()
	ev := nextEvent(t, second.Events())
	if ev.Kind != EventWelcome {
		t.Fatalf("expected welcome, got %v", ev.Kind)
	}
	if len(ev.Online) != 1 || ev.Online[0] != "zoe" {
		t.Fatalf("unexpected online list in welcome: %v", ev.Online)
	}
}

func TestManagerSendWithoutIdentityIsUnauthorized(t *testing.T) {
	m, _, st := newTestManager(0)

	conn := connect(t, m)
	_, err := m.SubmitMessage(context.Background(), conn.ID, "hi")

	var uerr *UnauthorizedError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if len(st.messages) != 0 {
		t.Fatalf("message stored without identity")
	}
	noEvent(t, conn.Events())
}

func TestManagerRejectsBlankIdentity(t *testing.T) {
	m, _, _ := newTestManager(0)

	conn := connect(t, m)
	err := m.SetIdentity(conn.ID, " \t\x00 ")

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "identity" {
		t.Fatalf("expected identity validation error, got %v", err)
	}
	if conn.Identity() != "" {
		t.Fatalf("identity bound despite error: %q", conn.Identity())
	}
}

func TestManagerSecondConnectionDoesNotRejoin(t *testing.T) {
	m, _, _ := newTestManager(0)

	observer := connect(t, m)
	c1 := connect(t, m)
	c2 := connect(t, m)

	if err := m.SetIdentity(c1.ID, "alice"); err != nil {
		t.Fatalf("bind c1: %v", err)
	}
	mustEvent(t, observer.Events(), EventUserJoined)

	if err := m.SetIdentity(c2.ID, "alice"); err != nil {
		t.Fatalf("bind c2: %v", err)
	}
	noEvent(t, observer.Events())

	// Closing one of two connections keeps alice online.
	m.Disconnect(c1.ID)
	noEvent(t, observer.Events())
	if online := m.Online(DefaultRoom); len(online) != 1 || online[0] != "alice" {
		t.Fatalf("alice should still be online: %v", online)
	}

	m.Disconnect(c2.ID)
	ev := mustEvent(t, observer.Events(), EventUserLeft)
	if ev.User != "alice" || len(ev.Online) != 0 {
		t.Fatalf("unexpected leave event: %+v", ev)
	}
}

func TestManagerRebindAnnouncesLeaveThenJoin(t *testing.T) {
	m, _, _ := newTestManager(0)

	observer := connect(t, m)
	conn := connect(t, m)

	if err := m.SetIdentity(conn.ID, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	mustEvent(t, observer.Events(), EventUserJoined)

	if err := m.SetIdentity(conn.ID, "alicia"); err != nil {
		t.Fatalf("rebind: %v", err)
	}

	left := nextEvent(t, observer.Events())
	joined := nextEvent(t, observer.Events())
	if left.Kind != EventUserLeft || left.User != "alice" {
		t.Fatalf("expected user_left alice, got %+v", left)
	}
	if joined.Kind != EventUserJoined || joined.User != "alicia" {
		t.Fatalf("expected user_joined alicia, got %+v", joined)
	}
	if len(joined.Online) != 1 || joined.Online[0] != "alicia" {
		t.Fatalf("unexpected online list: %v", joined.Online)
	}

	// Same identity again changes nothing.
	if err := m.SetIdentity(conn.ID, "alicia"); err != nil {
		t.Fatalf("repeat bind: %v", err)
	}
	noEvent(t, observer.Events())
}

func TestManagerDisconnectIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(0)

	observer := connect(t, m)
	conn := connect(t, m)
	if err := m.SetIdentity(conn.ID, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	mustEvent(t, observer.Events(), EventUserJoined)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Disconnect(conn.ID)
		}()
	}
	wg.Wait()

	mustEvent(t, observer.Events(), EventUserLeft)
	noEvent(t, observer.Events())

	if m.Count() != 1 {
		t.Fatalf("expected only the observer registered, got %d", m.Count())
	}
	select {
	case <-conn.Done():
	default:
		t.Fatal("disconnected connection not closed")
	}
}

func TestManagerSlowConsumerIsDropped(t *testing.T) {
	m, b, _ := newTestManager(2)

	sender := m.Connect()
	slow := m.Connect()
	if err := m.SetIdentity(sender.ID, "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	mustEvent(t, sender.Events(), EventUserJoined)

	// The sender is drained after every message; slow is never read.
	for i := range 5 {
		if _, err := b.Submit(context.Background(), DefaultRoom, "alice", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if ev := nextEvent(t, sender.Events()); ev.Kind != EventNewMessage {
			t.Fatalf("unexpected event for sender: %v", ev.Kind)
		}
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow connection was not closed")
	}
	var terr *TransportError
	if !errors.As(slow.Err(), &terr) || !errors.Is(slow.Err(), ErrSlowConsumer) {
		t.Fatalf("expected slow consumer transport error, got %v", slow.Err())
	}

	select {
	case <-sender.Done():
		t.Fatal("healthy connection closed")
	default:
	}
}

func TestManagerHandleDispatchesCommands(t *testing.T) {
	m, _, st := newTestManager(0)
	ctx := context.Background()

	conn := connect(t, m)

	if err := m.Handle(ctx, &Command{Kind: CommandPing, ConnID: conn.ID}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if ev := nextEvent(t, conn.Events()); ev.Kind != EventPong {
		t.Fatalf("expected pong, got %v", ev.Kind)
	}

	if err := m.Handle(ctx, &Command{Kind: CommandSetIdentity, ConnID: conn.ID, Identity: "bob"}); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if err := m.Handle(ctx, &Command{Kind: CommandSendMessage, ConnID: conn.ID, Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(st.messages) != 1 || st.messages[0].From != "bob" {
		t.Fatalf("unexpected stored messages: %+v", st.messages)
	}

	err := m.Handle(ctx, &Command{Kind: CommandPing, ConnID: "ghost"})
	if !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}

	err = m.Handle(ctx, &Command{Kind: CommandKind(99), ConnID: conn.ID})
	if cerr := ToCoreError(err); cerr.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", cerr)
	}
}

func TestManagerCloseAllSignalsConnections(t *testing.T) {
	m, _, _ := newTestManager(0)

	conns := []*Connection{m.Connect(), m.Connect(), m.Connect()}
	m.CloseAll()

	for _, c := range conns {
		select {
		case <-c.Done():
		default:
			t.Fatalf("connection %s not closed", c.ID)
		}
		if c.Err() != nil {
			t.Fatalf("unexpected close error: %v", c.Err())
		}
	}
}

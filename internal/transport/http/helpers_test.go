package http

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/config"
	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/store/memory"
)

// testStack is a fully wired chat core backed by an in-memory store.
type testStack struct {
	Store   *memory.Store
	Manager *core.Manager
	Broker  *core.Broker
	Config  *config.Config
	Logger  *zerolog.Logger
}

// newTestStack wires manager, broker and store the way the application does.
func newTestStack(t testing.TB) *testStack {
	t.Helper()

	disabledLogger := zerolog.New(nil)
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.StoreDriver = "memory"
	cfg.RateLimitPerMinute = 0

	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	manager := core.NewManager(core.ManagerOptions{Room: cfg.Room, SendBuffer: cfg.SendBuffer}, &disabledLogger)
	broker := core.NewBroker(st, manager, nil, &disabledLogger)
	manager.UseBroker(broker)

	return &testStack{
		Store:   st,
		Manager: manager,
		Broker:  broker,
		Config:  &cfg,
		Logger:  &disabledLogger,
	}
}

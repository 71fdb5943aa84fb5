package factory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamestore-lobby/internal/config"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/mocks"
	"github.com/mcoot/gamestore-lobby/internal/services/launcher"
	"github.com/mcoot/gamestore-lobby/internal/storage/memory"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

// StubLauncher records launch requests and hands out handles with no
// process behind them. Tests end matches through the room controller.
type StubLauncher struct {
	mu       sync.Mutex
	requests []launcher.Request
	handles  []*launcher.Handle
}

// Launch records req and returns a detached handle
func (l *StubLauncher) Launch(ctx context.Context, req launcher.Request) (*launcher.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := launcher.NewHandle(req.RoomID, req.Port)
	l.requests = append(l.requests, req)
	l.handles = append(l.handles, h)
	return h, nil
}

// Requests returns every launch request so far
func (l *StubLauncher) Requests() []launcher.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]launcher.Request(nil), l.requests...)
}

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	MockGateway  *memory.Gateway
	StubLauncher *StubLauncher
}

// NewTestApp creates an App configured for testing with mocked
// dependencies, the memory gateway and bundles stored under bundleDir
func NewTestApp(bundleDir string) *TestApp {
	settings := config.DefaultConfig()
	settings.ListenAddr = "127.0.0.1:0"
	settings.Storage.Type = config.StorageTypeMemory
	settings.Storage.BundleDir = bundleDir
	settings.Session.BcryptCost = bcrypt.MinCost

	gw := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	stub := &StubLauncher{}

	app, err := newWithDependencies(context.Background(), gw, mockClock, mockRandom, stub, settings, testutil.NopLogger())
	if err != nil {
		// The memory gateway cannot fail to load
		panic(err)
	}

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		MockGateway:  gw,
		StubLauncher: stub,
	}
}

package tests

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/wp-labs/wp-motor/internal/config"
	"github.com/wp-labs/wp-motor/internal/orchestrator"
)

// TestOrchestratorLeavesNoGoroutinesBehind builds a minimal engine (one
// flexi group, no sources), runs it briefly, cancels, and shuts it down,
// asserting every background actor started by Run (§4.9) has exited.
func TestOrchestratorLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.(*Entry).log"),
	)

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Robust: "normal",
		Rescue: config.Rescue{Path: t.TempDir()},
		Stat:   config.Stat{FlushIntervalSeconds: 1},
		Performance: config.Performance{
			ParseWorkers: 1,
		},
		Groups: []config.GroupConfig{
			{
				Name: "g1",
				Sinks: []config.SinkConfig{
					{Name: "bh", Kind: "blackhole"},
				},
			},
		},
	}

	o, err := orchestrator.Build(cfg, log)
	if err != nil {
		t.Fatalf("orchestrator.Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator.Run did not return after cancel")
	}

	if err := o.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("orchestrator.Shutdown: %v", err)
	}
}

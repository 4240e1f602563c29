package stats

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshotResetsCounters(t *testing.T) {
	c := NewCollector(StageParse)
	c.RecordBegin()
	c.RecordEnd("records", 4)
	assert.Equal(t, int64(0), c.Pending())

	snap := c.Snapshot()
	require.Equal(t, int64(4), snap.Counts["records"])

	snap2 := c.Snapshot()
	assert.Empty(t, snap2.Counts)
}

func TestMonitorAggregatesAcrossFlushes(t *testing.T) {
	m := NewMonitor(logrus.New(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Inbound() <- Snapshot{Stage: StageSink, Counts: map[string]int64{"records": 4}}
	m.Inbound() <- Snapshot{Stage: StageSink, Counts: map[string]int64{"records": 3}}

	require.Eventually(t, func() bool {
		return m.Totals()[StageSink]["records"] == 7
	}, time.Second, 10*time.Millisecond)
}

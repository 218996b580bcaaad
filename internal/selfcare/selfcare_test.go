package selfcare

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tsapi/internal/store"
)

func TestAdmitRejectsOnDisk(t *testing.T) {
	gauges := Gauges{DiskPercent: 95, RAMPercent: 10, CPUPercent: 10, QueueLength: 1}
	err := evaluate(gauges)
	require.Error(t, err)
	kind, ok := store.KindOf(err)
	require.True(t, ok)
	require.Equal(t, store.KindSelfCareReject, kind)
}

func TestAdmitRejectsOnQueueLength(t *testing.T) {
	gauges := Gauges{DiskPercent: 10, RAMPercent: 10, CPUPercent: 10, QueueLength: 51}
	require.Error(t, evaluate(gauges))
}

func TestAdmitPassesUnderAllThresholds(t *testing.T) {
	gauges := Gauges{DiskPercent: 50, RAMPercent: 50, CPUPercent: 50, QueueLength: 5}
	require.NoError(t, evaluate(gauges))
}

// Package selfcare implements the submission-time admission gate: a new
// job is rejected with SelfCareReject if disk usage, RAM usage, sustained
// CPU usage, or queue length exceed their thresholds.
package selfcare

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"tsapi/internal/store"
)

const (
	diskThresholdPercent = 90.0
	ramThresholdPercent  = 90.0
	cpuThresholdPercent  = 400.0
	cpuSampleInterval    = 500 * time.Millisecond
	queueLengthLimit     = 50
)

// Gauges is a point-in-time read of the host metrics the gate checks.
// GET /status/system reports the same values under its own key names
// (cpu_usage, ram_usage, storage_usage, queue_length).
type Gauges struct {
	DiskPercent float64 `json:"disk_percent"`
	RAMPercent  float64 `json:"ram_percent"`
	CPUPercent  float64 `json:"cpu_percent"`
	QueueLength int     `json:"queue_length"`
}

// QueueLenFunc reports the current queue length; supplied by the caller so
// this package doesn't need to import internal/queue.
type QueueLenFunc func() int

// Gate evaluates the self-care admission rule. dataDir is the filesystem
// the disk gauge is read from (the data/audio volume, not the root
// filesystem, since that's what submissions actually consume).
type Gate struct {
	dataDir  string
	queueLen QueueLenFunc
}

// New builds a Gate that reads disk usage at dataDir and queue length from
// queueLen.
func New(dataDir string, queueLen QueueLenFunc) *Gate {
	return &Gate{dataDir: dataDir, queueLen: queueLen}
}

// Read takes one gauge snapshot: disk/RAM are instantaneous, CPU is
// averaged over cpuSampleInterval. The CPU figure is one system-wide
// percentage (percpu=false), so it stays within 0–100 and never exceeds
// the 400 CPU threshold.
func (g *Gate) Read(ctx context.Context) (Gauges, error) {
	diskStat, err := disk.UsageWithContext(ctx, g.dataDir)
	if err != nil {
		return Gauges{}, fmt.Errorf("reading disk usage: %w", err)
	}
	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Gauges{}, fmt.Errorf("reading memory usage: %w", err)
	}
	cpuPercents, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return Gauges{}, fmt.Errorf("reading cpu usage: %w", err)
	}
	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	return Gauges{
		DiskPercent: diskStat.UsedPercent,
		RAMPercent:  memStat.UsedPercent,
		CPUPercent:  cpuPercent,
		QueueLength: g.queueLen(),
	}, nil
}

// Admit reports whether a new submission may be accepted, returning a
// SelfCareReject-kind error naming the overloaded gauge when it can't.
func (g *Gate) Admit(ctx context.Context) error {
	gauges, err := g.Read(ctx)
	if err != nil {
		return err
	}
	return evaluate(gauges)
}

// evaluate applies the admission thresholds to an already-read Gauges
// snapshot, split out from Admit so the rule can be tested without the
// host's real disk/ram/cpu state.
func evaluate(gauges Gauges) error {
	switch {
	case gauges.DiskPercent > diskThresholdPercent:
		return store.ErrSelfCareReject(fmt.Sprintf("disk usage %.1f%% exceeds %.0f%%", gauges.DiskPercent, diskThresholdPercent))
	case gauges.RAMPercent > ramThresholdPercent:
		return store.ErrSelfCareReject(fmt.Sprintf("ram usage %.1f%% exceeds %.0f%%", gauges.RAMPercent, ramThresholdPercent))
	case gauges.CPUPercent > cpuThresholdPercent:
		return store.ErrSelfCareReject(fmt.Sprintf("cpu usage %.1f%% exceeds %.0f%%", gauges.CPUPercent, cpuThresholdPercent))
	case gauges.QueueLength > queueLengthLimit:
		return store.ErrSelfCareReject(fmt.Sprintf("queue length %d exceeds %d", gauges.QueueLength, queueLengthLimit))
	default:
		return nil
	}
}

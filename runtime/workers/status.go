package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"gatekeeper/runtime"
)

// StatusWorker periodically logs the session status snapshot together
// with process health figures. This is the push side of the status
// surface; the snapshot itself can also be polled directly.
type StatusWorker struct {
	log        *slog.Logger
	interval   time.Duration
	supervisor *runtime.ConnectionSupervisor
}

func NewStatusWorker(log *slog.Logger, interval time.Duration, supervisor *runtime.ConnectionSupervisor) *StatusWorker {
	return &StatusWorker{log: log, interval: interval, supervisor: supervisor}
}

func (w *StatusWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			status := w.supervisor.Snapshot()
			w.log.Info("Status",
				"state", status.ConnectionState.String(),
				"bot", status.BotIdentity,
				"reconnect_attempts", status.ReconnectAttempts,
				"pairing_pending", status.LastPairingPayload != "",
				"ram_bytes", rss,
				"cpu_percent", cpu)
		}
	}
}

// selfStats retrieves memory and CPU figures for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

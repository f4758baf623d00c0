// Package orchestrator fans device audits out over a bounded worker pool and collects
// one outcome per device.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sourcegraph/conc/pool"

	"github.com/nmslite/switchaudit/internal/auditor"
	"github.com/nmslite/switchaudit/internal/inventory"
)

// Auditor audits a single device.
type Auditor interface {
	Audit(ctx context.Context, dev inventory.Device) auditor.Outcome
}

// Summary counts outcomes by kind.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Run audits every device with at most workers audits in flight; workers <= 0 runs one
// goroutine per device. It returns after every audit has finished, with outcomes in
// input order. A panicking audit becomes a failure at the internal stage. A nil logger
// uses slog.Default.
func Run(ctx context.Context, devices []inventory.Device, a Auditor, workers int, logger *slog.Logger) []auditor.Outcome {
	outcomes := make([]auditor.Outcome, len(devices))
	if len(devices) == 0 {
		return outcomes
	}

	if workers <= 0 || workers > len(devices) {
		workers = len(devices)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "orchestrator")
	logger.InfoContext(ctx, "Starting audit run",
		slog.Int("devices", len(devices)),
		slog.Int("workers", workers),
	)

	p := pool.New().WithMaxGoroutines(workers)
	for i, dev := range devices {
		p.Go(func() {
			outcomes[i] = auditOne(ctx, a, dev, logger)
			outcomes[i].Index = i
		})
	}
	p.Wait()

	s := Summarize(outcomes)
	logger.InfoContext(ctx, "Audit run finished",
		slog.Int("total", s.Total),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
	)

	return outcomes
}

func auditOne(ctx context.Context, a Auditor, dev inventory.Device, logger *slog.Logger) (out auditor.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Audit task panicked",
				slog.String("address", dev.Address),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			out = auditor.Failed(dev.Address, auditor.StageInternal, fmt.Errorf("audit panicked: %v", r))
		}
	}()

	out = a.Audit(ctx, dev)
	if out.Report == nil && out.Failure == nil {
		out = auditor.Failed(dev.Address, auditor.StageInternal, fmt.Errorf("audit returned no result"))
	}
	return out
}

// Summarize counts successes and failures.
func Summarize(outcomes []auditor.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

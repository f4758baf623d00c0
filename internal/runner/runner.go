// Package runner executes complete audit runs: load inputs, audit the fleet, aggregate and
// write the reports. It keeps the latest run in memory for the API.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmslite/switchaudit/internal/artifacts"
	"github.com/nmslite/switchaudit/internal/auditor"
	"github.com/nmslite/switchaudit/internal/checks"
	"github.com/nmslite/switchaudit/internal/config"
	"github.com/nmslite/switchaudit/internal/inventory"
	"github.com/nmslite/switchaudit/internal/orchestrator"
	"github.com/nmslite/switchaudit/internal/report"
	"github.com/nmslite/switchaudit/internal/session"
	"github.com/nmslite/switchaudit/internal/snmpfacts"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("an audit run is already in progress")

// ErrNoDevices is returned when the inventory lists no device to audit.
var ErrNoDevices = errors.New("inventory lists no devices")

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run describes one audit run. Report is nil until the run completes.
type Run struct {
	ID             uuid.UUID               `json:"id"`
	Status         Status                  `json:"status"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     *time.Time              `json:"finished_at,omitempty"`
	Summary        orchestrator.Summary    `json:"summary"`
	ReportPath     string                  `json:"report_path,omitempty"`
	JSONReportPath string                  `json:"json_report_path,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Report         *report.AggregateReport `json:"report,omitempty"`
}

// Inputs are the loaded audit inputs.
type Inputs struct {
	Devices  []inventory.Device
	Catalog  *checks.Catalog
	Commands []string
}

// LoadInputs reads the inventory and rule files named in cfg. Any configured file that
// cannot be read is an error.
func LoadInputs(cfg *config.Config) (*Inputs, error) {
	hosts, err := inventory.LoadLines(cfg.Inventory.HostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	if hosts, err = inventory.ExpandHosts(hosts); err != nil {
		return nil, fmt.Errorf("failed to expand inventory: %w", err)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Inventory.HostsFile, ErrNoDevices)
	}

	devices, err := inventory.Build(hosts, inventory.Defaults{
		Username:  cfg.Credentials.Username,
		Password:  cfg.Credentials.Password,
		Platform:  cfg.Inventory.Platform,
		Transport: cfg.Inventory.Transport,
		Port:      cfg.Inventory.Port,
	})
	if err != nil {
		return nil, err
	}

	in := &Inputs{Devices: devices}

	if cfg.Inputs.CommandsFile != "" {
		if in.Commands, err = inventory.LoadLines(cfg.Inputs.CommandsFile); err != nil {
			return nil, fmt.Errorf("failed to load commands: %w", err)
		}
	}

	var globalLines []string
	if cfg.Inputs.GlobalLinesFile != "" {
		if globalLines, err = inventory.LoadRules(cfg.Inputs.GlobalLinesFile); err != nil {
			return nil, fmt.Errorf("failed to load global line rules: %w", err)
		}
	}

	ifaceRules := checks.InterfaceRules{
		Parent:   cfg.Checks.InterfaceParent,
		Selector: cfg.Checks.InterfaceSelector,
	}
	if cfg.Inputs.InterfaceLinesFile != "" {
		lines, err := inventory.LoadRules(cfg.Inputs.InterfaceLinesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load interface line rules: %w", err)
		}
		parsed := inventory.ParseInterfaceRules(lines)
		if parsed.Selector != "" {
			ifaceRules.Selector = parsed.Selector
		}
		ifaceRules.ChildLines = parsed.ChildLines
	}

	in.Catalog = checks.NewCatalog(globalLines, ifaceRules)
	return in, nil
}

// Service runs audits one at a time.
type Service struct {
	cfg    *config.Config
	dialer session.Dialer
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	latest  *Run
	wg      sync.WaitGroup
}

// New creates a run service.
func New(cfg *config.Config, dialer session.Dialer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With("component", "runner"),
	}
}

// Run executes an audit synchronously and returns the finished run. Device failures do not
// make Run fail; input and report-writing errors do.
func (s *Service) Run(ctx context.Context) (*Run, error) {
	run, err := s.begin()
	if err != nil {
		return nil, err
	}
	s.execute(ctx, run)

	snapshot, _ := s.Latest()
	if snapshot.Status == StatusFailed {
		return snapshot, errors.New(snapshot.Error)
	}
	return snapshot, nil
}

// Start launches an audit in the background and returns the running run.
func (s *Service) Start(ctx context.Context) (*Run, error) {
	run, err := s.begin()
	if err != nil {
		return nil, err
	}

	snapshot := *run
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, run)
	}()
	return &snapshot, nil
}

// Wait blocks until background runs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Latest returns a copy of the most recent run.
func (s *Service) Latest() (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	snapshot := *s.latest
	return &snapshot, true
}

// Running reports whether a run is active.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Service) begin() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrRunInProgress
	}
	s.running = true
	s.latest = &Run{
		ID:        uuid.New(),
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	return s.latest, nil
}

// finish publishes the final state of run. run is not touched by anyone else until then.
func (s *Service) finish(run *Run, mutate func(r *Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(run)
	now := time.Now()
	run.FinishedAt = &now
	s.running = false
}

func (s *Service) execute(ctx context.Context, run *Run) {
	logger := s.logger.With(slog.String("run_id", run.ID.String()))

	in, err := LoadInputs(s.cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load audit inputs", slog.String("error", err.Error()))
		s.finish(run, func(r *Run) {
			r.Status = StatusFailed
			r.Error = err.Error()
		})
		return
	}

	logger.InfoContext(ctx, "Audit run started",
		slog.Int("devices", len(in.Devices)),
		slog.Int("global_rules", len(in.Catalog.GlobalLines)),
		slog.Int("interface_rules", len(in.Catalog.Interfaces.ChildLines)),
		slog.Int("commands", len(in.Commands)),
	)

	opts := auditor.Options{
		Artifacts:      artifacts.NewWriter(s.cfg.Audit.OutputDir),
		Commands:       in.Commands,
		CommandTimeout: s.cfg.Audit.GetCommandTimeout(),
		Logger:         logger,
	}
	if s.cfg.SNMP.Enabled {
		opts.Prober = snmpfacts.NewSNMPProber(s.cfg.SNMP.Community, s.cfg.SNMP.Port, s.cfg.SNMP.GetTimeout())
	}
	aud := auditor.New(s.dialer, in.Catalog, opts)

	outcomes := orchestrator.Run(ctx, in.Devices, aud, s.cfg.Audit.Workers, logger)
	summary := orchestrator.Summarize(outcomes)
	agg := report.Aggregate(outcomes)

	if summary.Succeeded == 0 {
		logger.WarnContext(ctx, "No device was audited successfully; the report is empty",
			slog.Int("failed", summary.Failed),
		)
	}

	reportPath := s.cfg.Audit.ReportPath()
	jsonPath := s.cfg.Audit.JSONReportPath()
	sinks := []report.Sink{report.XLSXSink{Path: reportPath}}
	if jsonPath != "" {
		sinks = append(sinks, report.JSONSink{Path: jsonPath})
	}

	var writeErr error
	for _, sink := range sinks {
		if err := sink.Write(agg); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
	}

	s.finish(run, func(r *Run) {
		r.Summary = summary
		r.Report = &agg
		r.ReportPath = reportPath
		r.JSONReportPath = jsonPath
		if writeErr != nil {
			r.Status = StatusFailed
			r.Error = fmt.Sprintf("failed to write report: %v", writeErr)
			return
		}
		r.Status = StatusCompleted
	})

	if writeErr != nil {
		logger.ErrorContext(ctx, "Failed to write report", slog.String("error", writeErr.Error()))
		return
	}
	logger.InfoContext(ctx, "Audit run completed",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.String("report", reportPath),
	)
}

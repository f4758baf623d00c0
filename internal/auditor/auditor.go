// Package auditor runs the audit pipeline for a single device: connect, fetch the running
// configuration, save artifacts, evaluate the check catalog.
package auditor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nmslite/switchaudit/internal/artifacts"
	"github.com/nmslite/switchaudit/internal/checks"
	"github.com/nmslite/switchaudit/internal/confquery"
	"github.com/nmslite/switchaudit/internal/inventory"
	"github.com/nmslite/switchaudit/internal/session"
	"github.com/nmslite/switchaudit/internal/snmpfacts"
)

const defaultCommandTimeout = 30 * time.Second

// Options carries the optional collaborators of an Auditor.
type Options struct {
	// Artifacts receives raw configs and extra command outputs. Nil disables saving.
	Artifacts *artifacts.Writer
	// Commands are run after the configuration fetch and saved as artifacts.
	Commands []string
	// Prober adds SNMP facts to the results. Nil disables the probe.
	Prober         snmpfacts.Prober
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

// Auditor audits one device per call. It holds no per-device state and is safe for
// concurrent use.
type Auditor struct {
	dialer         session.Dialer
	catalog        *checks.Catalog
	artifacts      *artifacts.Writer
	commands       []string
	prober         snmpfacts.Prober
	commandTimeout time.Duration
	logger         *slog.Logger
}

// New creates an auditor.
func New(dialer session.Dialer, catalog *checks.Catalog, opts Options) *Auditor {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Auditor{
		dialer:         dialer,
		catalog:        catalog,
		artifacts:      opts.Artifacts,
		commands:       opts.Commands,
		prober:         opts.Prober,
		commandTimeout: opts.CommandTimeout,
		logger:         opts.Logger.With("component", "auditor"),
	}
}

// auditContext is the state of one audit.
type auditContext struct {
	device   inventory.Device
	hostname string
	logger   *slog.Logger
}

// timedRunner bounds every command with its own timeout.
type timedRunner struct {
	sess    session.Session
	timeout time.Duration
}

func (r timedRunner) Run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.sess.Run(ctx, command)
}

// Audit runs the full pipeline against dev and returns exactly one outcome. The session is
// closed before Audit returns whenever the dial succeeded.
func (a *Auditor) Audit(ctx context.Context, dev inventory.Device) Outcome {
	ac := &auditContext{
		device: dev,
		logger: a.logger.With(slog.String("address", dev.Address)),
	}

	start := time.Now()
	ac.logger.InfoContext(ctx, "Auditing device", slog.String("platform", dev.Platform))

	report, failure := a.audit(ctx, ac)
	if failure != nil {
		ac.logger.ErrorContext(ctx, "Device audit failed",
			slog.String("stage", string(failure.Stage)),
			slog.String("error", failure.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return Outcome{Address: dev.Address, Failure: failure}
	}

	ac.logger.InfoContext(ctx, "Device audited",
		slog.String("hostname", report.Hostname),
		slog.Int("checks", report.Checks.Len()),
		slog.Int("interfaces", report.Interfaces.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return Outcome{Address: dev.Address, Report: report}
}

func (a *Auditor) audit(ctx context.Context, ac *auditContext) (*DeviceReport, *DeviceFailure) {
	dev := ac.device

	profile, err := session.LookupProfile(dev.Platform)
	if err != nil {
		return nil, &DeviceFailure{Address: dev.Address, Stage: StageConnect, Cause: &ConnectionError{Address: dev.Address, Err: err}}
	}

	sess, err := a.dialer.Dial(ctx, dev)
	if err != nil {
		return nil, &DeviceFailure{Address: dev.Address, Stage: StageConnect, Cause: &ConnectionError{Address: dev.Address, Err: err}}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			ac.logger.WarnContext(ctx, "Failed to close session", slog.String("error", err.Error()))
		}
	}()

	runner := timedRunner{sess: sess, timeout: a.commandTimeout}

	raw, err := runner.Run(ctx, profile.ConfigCommand)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrEmptyConfig
	}
	if err != nil {
		return nil, &DeviceFailure{
			Address: dev.Address,
			Stage:   StageFetchConfig,
			Cause:   &FetchError{Address: dev.Address, Command: profile.ConfigCommand, Err: err},
		}
	}

	ac.hostname = checks.Hostname(raw)
	ac.logger = ac.logger.With(slog.String("hostname", ac.hostname))

	a.saveConfig(ctx, ac, raw)
	a.runCommands(ctx, ac, runner)

	cfg := confquery.Parse(raw)

	results, errs := checks.RunLive(ctx, runner, a.catalog.Live)
	configResults, ifaces, configErrs := a.catalog.EvaluateConfig(cfg)
	results.Merge(configResults)
	errs = append(errs, configErrs...)

	if a.prober != nil {
		results.Merge(a.probe(ctx, ac))
	}

	for _, err := range errs {
		var checkErr *checks.CheckEvaluationError
		if errors.As(err, &checkErr) {
			ac.logger.WarnContext(ctx, "Check evaluated as negative",
				slog.String("check", checkErr.Check),
				slog.String("error", checkErr.Err.Error()),
			)
			continue
		}
		ac.logger.WarnContext(ctx, "Check error", slog.String("error", err.Error()))
	}

	return &DeviceReport{
		Hostname:   ac.hostname,
		Address:    dev.Address,
		Checks:     results,
		Interfaces: ifaces,
	}, nil
}

func (a *Auditor) saveConfig(ctx context.Context, ac *auditContext, raw string) {
	if a.artifacts == nil {
		return
	}
	if _, err := a.artifacts.SaveConfig(ac.hostname, ac.device.Address, raw); err != nil {
		a.logArtifactError(ctx, ac, &ArtifactError{Address: ac.device.Address, Artifact: "config", Err: err})
	}
}

// runCommands runs the extra commands and saves their output. Failures are logged and skipped.
func (a *Auditor) runCommands(ctx context.Context, ac *auditContext, runner timedRunner) {
	for _, cmd := range a.commands {
		out, err := runner.Run(ctx, cmd)
		if err != nil {
			ac.logger.WarnContext(ctx, "Command failed",
				slog.String("command", cmd),
				slog.String("error", err.Error()),
			)
			continue
		}
		if a.artifacts == nil {
			continue
		}
		if _, err := a.artifacts.SaveCommandOutput(ac.hostname, ac.device.Address, cmd, out); err != nil {
			a.logArtifactError(ctx, ac, &ArtifactError{Address: ac.device.Address, Artifact: cmd, Err: err})
		}
	}
}

func (a *Auditor) probe(ctx context.Context, ac *auditContext) checks.Results {
	facts, err := a.prober.Probe(ctx, ac.device.Address)
	if err != nil {
		ac.logger.WarnContext(ctx, "SNMP probe failed", slog.String("error", err.Error()))
	}
	return facts.Results()
}

func (a *Auditor) logArtifactError(ctx context.Context, ac *auditContext, err *ArtifactError) {
	ac.logger.WarnContext(ctx, "Failed to save artifact",
		slog.String("artifact", err.Artifact),
		slog.String("error", err.Err.Error()),
	)
}

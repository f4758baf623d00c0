package auditor

import (
	"github.com/nmslite/switchaudit/internal/checks"
)

// Stage names the audit step a device failed at.
type Stage string

const (
	StageConnect     Stage = "connect"
	StageFetchConfig Stage = "fetch-config"
	StageInternal    Stage = "internal"
)

// DeviceReport is the result of a completed audit.
type DeviceReport struct {
	Hostname   string                  `json:"hostname"`
	Address    string                  `json:"address"`
	Checks     checks.Results          `json:"checks"`
	Interfaces checks.InterfaceResults `json:"interfaces"`
}

// DeviceFailure records why a device produced no report.
type DeviceFailure struct {
	Address string `json:"address"`
	Stage   Stage  `json:"stage"`
	Cause   error  `json:"-"`
}

// Error returns the cause's message.
func (f *DeviceFailure) Error() string {
	if f.Cause == nil {
		return string(f.Stage) + " failed"
	}
	return f.Cause.Error()
}

func (f *DeviceFailure) Unwrap() error {
	return f.Cause
}

// Outcome is the single result of auditing one device. Exactly one of Report and
// Failure is set.
type Outcome struct {
	Index   int            `json:"index"`
	Address string         `json:"address"`
	Report  *DeviceReport  `json:"report,omitempty"`
	Failure *DeviceFailure `json:"failure,omitempty"`
}

// Succeeded reports whether the outcome carries a report.
func (o Outcome) Succeeded() bool {
	return o.Report != nil
}

// Failed builds a failure outcome.
func Failed(address string, stage Stage, cause error) Outcome {
	return Outcome{
		Address: address,
		Failure: &DeviceFailure{Address: address, Stage: stage, Cause: cause},
	}
}

// Package snmpfacts reads system identification over SNMP v2c.
package snmpfacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nmslite/switchaudit/internal/checks"
)

const (
	OIDSysDescr = "1.3.6.1.2.1.1.1.0"
	OIDSysName  = "1.3.6.1.2.1.1.5.0"

	CheckSysName  = "snmp_sys_name"
	CheckSysDescr = "snmp_sys_descr"

	defaultPort    = 161
	defaultTimeout = 2 * time.Second
)

// Facts holds the system group values of one agent.
type Facts struct {
	SysName  string
	SysDescr string
}

// Results renders the facts as string check values.
func (f Facts) Results() checks.Results {
	var r checks.Results
	r.Set(CheckSysName, checks.String(f.SysName))
	r.Set(CheckSysDescr, checks.String(f.SysDescr))
	return r
}

// Prober fetches facts from a device address.
type Prober interface {
	Probe(ctx context.Context, address string) (Facts, error)
}

// SNMPProber queries agents with a v2c community.
type SNMPProber struct {
	Community string
	Port      int
	Timeout   time.Duration
	Retries   int
}

// NewSNMPProber creates a prober, defaulting port 161 and a 2s timeout.
func NewSNMPProber(community string, port int, timeout time.Duration) *SNMPProber {
	if port <= 0 {
		port = defaultPort
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SNMPProber{Community: community, Port: port, Timeout: timeout}
}

// Probe performs a single GetRequest for sysDescr and sysName.
func (p *SNMPProber) Probe(ctx context.Context, address string) (Facts, error) {
	g := &gosnmp.GoSNMP{
		Target:    address,
		Port:      uint16(p.Port),
		Version:   gosnmp.Version2c,
		Community: p.Community,
		Timeout:   p.Timeout,
		Retries:   p.Retries,
		Context:   ctx,
	}

	if err := g.Connect(); err != nil {
		return Facts{}, fmt.Errorf("SNMP connection failed: %w", err)
	}
	defer g.Conn.Close()

	result, err := g.Get([]string{OIDSysDescr, OIDSysName})
	if err != nil {
		return Facts{}, fmt.Errorf("SNMP Get request failed: %w", err)
	}

	return factsFromPDUs(result.Variables), nil
}

func factsFromPDUs(vars []gosnmp.SnmpPDU) Facts {
	var f Facts
	for _, v := range vars {
		switch strings.TrimPrefix(v.Name, ".") {
		case OIDSysDescr:
			f.SysDescr = pduString(v)
		case OIDSysName:
			f.SysName = pduString(v)
		}
	}
	return f
}

func pduString(v gosnmp.SnmpPDU) string {
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return ""
	}
	switch val := v.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(val))
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

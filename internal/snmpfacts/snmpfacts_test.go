package snmpfacts

import (
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactsFromPDUs(t *testing.T) {
	facts := factsFromPDUs([]gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.2.1.1.1.0", Type: gosnmp.OctetString, Value: []byte("Huawei Versatile Routing Platform Software\r\n")},
		{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.OctetString, Value: []byte("SW1")},
	})

	assert.Equal(t, "SW1", facts.SysName)
	assert.Equal(t, "Huawei Versatile Routing Platform Software", facts.SysDescr)
}

func TestFactsFromPDUs_Missing(t *testing.T) {
	facts := factsFromPDUs([]gosnmp.SnmpPDU{
		{Name: ".1.3.6.1.2.1.1.5.0", Type: gosnmp.NoSuchInstance},
	})
	assert.Empty(t, facts.SysName)
	assert.Empty(t, facts.SysDescr)
}

func TestFacts_Results(t *testing.T) {
	r := Facts{SysName: "SW1", SysDescr: "VRP"}.Results()
	assert.Equal(t, []string{CheckSysName, CheckSysDescr}, r.Keys())

	v, ok := r.Get(CheckSysName)
	require.True(t, ok)
	s, isString := v.AsString()
	assert.True(t, isString)
	assert.Equal(t, "SW1", s)
}

func TestNewSNMPProber_Defaults(t *testing.T) {
	p := NewSNMPProber("public", 0, 0)
	assert.Equal(t, 161, p.Port)
	assert.Equal(t, 2*time.Second, p.Timeout)
}

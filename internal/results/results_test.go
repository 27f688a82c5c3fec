package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetHelpers(t *testing.T) {
	var s Set
	assert.True(t, s.Empty())

	s.Append(Set{
		Hosts: []Host{{IP: "10.0.0.1", Status: StatusUp}, {IP: "10.0.0.2", Status: StatusDown}},
		Ports: []Port{
			{HostIP: "10.0.0.1", Number: 22, Protocol: "tcp", State: "open"},
			{HostIP: "10.0.0.1", Number: 23, Protocol: "tcp", State: "closed"},
		},
	})

	assert.False(t, s.Empty())
	assert.Equal(t, 1, s.OpenPorts())
	assert.Equal(t, []string{"10.0.0.1"}, s.LiveHosts())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, NormalizeSeverity("info"))
	assert.Equal(t, SeverityMedium, NormalizeSeverity(" Moderate "))
	assert.Equal(t, SeverityCritical, NormalizeSeverity("CRITICAL"))

	assert.Equal(t, SeverityCritical, SeverityFromCVSS(9.8))
	assert.Equal(t, SeverityHigh, SeverityFromCVSS(7.5))
	assert.Equal(t, SeverityMedium, SeverityFromCVSS(5.0))
	assert.Equal(t, SeverityLow, SeverityFromCVSS(0.0))

	assert.Less(t, SeverityRank(SeverityLow), SeverityRank(SeverityMedium))
	assert.Less(t, SeverityRank(SeverityHigh), SeverityRank(SeverityCritical))
	assert.Equal(t, 0, SeverityRank("bogus"))
}

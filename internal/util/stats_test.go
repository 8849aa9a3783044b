package util

import (
	"net"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestFormatStats(t *testing.T) {
	got := formatStats(1, 2, 60, 3, 4)
	assert.Contains(t, got, "Ticks:  60.0/s")
	assert.Contains(t, got, "Stalls:    3")
	assert.Contains(t, got, "Dropped: 4")
}

func TestStatsCollector(t *testing.T) {
	s := &stats{}
	s.AddSent(10)
	s.AddRecv(7)
	s.AddDropped(2)
	s.AddTick()
	s.AddTick()
	s.AddTick()
	s.AddStall()
	s.AddCollision()

	assert.Equal(t, 6, testutil.CollectAndCount(s))

	const want = `
# HELP duel_lockstep_ticks_total Completed lockstep rounds.
# TYPE duel_lockstep_ticks_total counter
duel_lockstep_ticks_total 3
# HELP duel_link_bytes_total Bytes moved over the peer link.
# TYPE duel_link_bytes_total counter
duel_link_bytes_total{direction="dropped"} 2
duel_link_bytes_total{direction="received"} 7
duel_link_bytes_total{direction="sent"} 10
`
	assert.NoError(t, testutil.CollectAndCompare(s, strings.NewReader(want),
		"duel_lockstep_ticks_total", "duel_link_bytes_total"))
}

func TestLinkID(t *testing.T) {
	a := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000}
	b := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2000}

	assert.Equal(t, LinkID(a, b), LinkID(a, b))
	assert.NotEqual(t, LinkID(a, b), LinkID(b, a))
	assert.NotPanics(t, func() { LinkID(nil, nil) })
}

package comparison

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/alicorn/internal/db"
)

func ip(s string) db.IPAddr {
	return db.IPAddr{IP: net.ParseIP(s)}
}

func TestAggregate(t *testing.T) {
	target := "192.168.1.0/24"
	scans := []*db.Scan{
		{ID: 1, StartTime: 100, EndTime: 160, TargetStr: &target},
		{ID: 2, StartTime: 200, EndTime: 230},
		{ID: 3, StartTime: 300, EndTime: 300},
	}
	reports := []*db.PortReport{
		// stable
		{ScanID: 1, HostAddr: ip("192.168.1.10"), Port: 22, Proto: 6},
		{ScanID: 2, HostAddr: ip("192.168.1.10"), Port: 22, Proto: 6},
		{ScanID: 3, HostAddr: ip("192.168.1.10"), Port: 22, Proto: 6},
		// added
		{ScanID: 3, HostAddr: ip("192.168.1.9"), Port: 80, Proto: 6},
		// removed
		{ScanID: 1, HostAddr: ip("192.168.1.10"), Port: 53, Proto: 17},
		{ScanID: 2, HostAddr: ip("192.168.1.10"), Port: 53, Proto: 17},
		// intermittent
		{ScanID: 2, HostAddr: ip("192.168.1.10"), Port: 8080, Proto: 6},
		// duplicate response within one scan
		{ScanID: 1, HostAddr: ip("192.168.1.10"), Port: 22, Proto: 6},
		// foreign scan ignored
		{ScanID: 99, HostAddr: ip("10.0.0.1"), Port: 22, Proto: 6},
	}

	data := Aggregate(scans, reports)

	assert.Equal(t, []int64{1, 2, 3}, data.ScanIDs)
	require.Len(t, data.Scans, 3)
	assert.Equal(t, &target, data.Scans[0].TargetStr)
	assert.Equal(t, int64(60), data.Scans[0].DurationSeconds)
	assert.Equal(t, 1, data.Scans[0].HostCount)
	assert.Equal(t, 2, data.Scans[0].PortCount)
	assert.Equal(t, 1, data.Scans[1].HostCount)
	assert.Equal(t, 3, data.Scans[1].PortCount)
	assert.Equal(t, 2, data.Scans[2].HostCount)

	require.Len(t, data.Hosts, 2)
	assert.Equal(t, "192.168.1.9", data.Hosts[0].Addr, "hosts sort numerically")
	assert.Equal(t, []bool{false, false, true}, data.Hosts[0].Present)
	assert.Equal(t, []bool{true, true, true}, data.Hosts[1].Present)

	require.Len(t, data.Ports, 4)
	assert.Equal(t, PortRow{Host: "192.168.1.9", Port: 80, Protocol: "tcp",
		Present: []bool{false, false, true}, Status: PortAdded}, data.Ports[0])
	assert.Equal(t, 22, data.Ports[1].Port)
	assert.Equal(t, PortStable, data.Ports[1].Status)
	assert.Equal(t, 53, data.Ports[2].Port)
	assert.Equal(t, "udp", data.Ports[2].Protocol)
	assert.Equal(t, PortRemoved, data.Ports[2].Status)
	assert.Equal(t, PortIntermittent, data.Ports[3].Status)

	assert.Equal(t, Stats{Hosts: 2, Ports: 4, Stable: 1, Added: 1, Removed: 1, Intermittent: 1}, data.Stats)
}

func TestAggregate_Empty(t *testing.T) {
	data := Aggregate([]*db.Scan{{ID: 4}, {ID: 5}}, nil)

	assert.Equal(t, []int64{4, 5}, data.ScanIDs)
	assert.Empty(t, data.Hosts)
	assert.NotNil(t, data.Ports)
	assert.Equal(t, Stats{}, data.Stats)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		present []bool
		want    PortStatus
	}{
		{[]bool{true, true}, PortStable},
		{[]bool{false, true}, PortAdded},
		{[]bool{true, false}, PortRemoved},
		{[]bool{true, false, true}, PortIntermittent},
		{[]bool{false, true, false}, PortIntermittent},
		{[]bool{false, false, true}, PortAdded},
		{nil, PortIntermittent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.present), "present=%v", tt.present)
	}
}

func TestDataOrigin(t *testing.T) {
	var nilData *Data
	target, mode := nilData.Origin()
	assert.Nil(t, target)
	assert.Nil(t, mode)

	tgt, md := "10.0.0.0/8", "UDP"
	data := &Data{Scans: []ScanSummary{{ID: 1, TargetStr: &tgt, ModeStr: &md}, {ID: 2}}}
	target, mode = data.Origin()
	assert.Equal(t, "10.0.0.0/8", *target)
	assert.Equal(t, "UDP", *mode)
}

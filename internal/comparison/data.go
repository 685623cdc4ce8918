package comparison

import (
	"bytes"
	"cmp"
	"net"
	"slices"
	"time"

	"github.com/anstrom/alicorn/internal/db"
)

// PortStatus describes how a host/port pair changed across the compared scans.
type PortStatus string

// Port change statuses. The first and last scans in comparison order decide
// between added and removed.
const (
	PortStable       PortStatus = "stable"
	PortAdded        PortStatus = "added"
	PortRemoved      PortStatus = "removed"
	PortIntermittent PortStatus = "intermittent"
)

// ScanSummary describes one compared scan.
type ScanSummary struct {
	ID              int64     `json:"id"`
	TargetStr       *string   `json:"target_str,omitempty"`
	ModeStr         *string   `json:"mode_str,omitempty"`
	Profile         string    `json:"profile"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	HostCount       int       `json:"host_count"`
	PortCount       int       `json:"port_count"`
}

// HostRow records which scans saw a host. Present is indexed like Data.Scans.
type HostRow struct {
	Addr    string `json:"addr"`
	Present []bool `json:"present"`
}

// PortRow records which scans saw a host/port/protocol triple.
type PortRow struct {
	Host     string     `json:"host"`
	Port     int        `json:"port"`
	Protocol string     `json:"protocol"`
	Present  []bool     `json:"present"`
	Status   PortStatus `json:"status"`
}

// Stats counts port rows per change status.
type Stats struct {
	Hosts        int `json:"hosts"`
	Ports        int `json:"ports"`
	Stable       int `json:"stable"`
	Added        int `json:"added"`
	Removed      int `json:"removed"`
	Intermittent int `json:"intermittent"`
}

// Data is the comparison of an ordered set of scans.
type Data struct {
	ScanIDs []int64       `json:"scan_ids"`
	Scans   []ScanSummary `json:"scans"`
	Hosts   []HostRow     `json:"hosts"`
	Ports   []PortRow     `json:"ports"`
	Stats   Stats         `json:"stats"`
}

// Origin returns the target and mode strings of the first compared scan.
// Either may be nil.
func (d *Data) Origin() (target, mode *string) {
	if d == nil || len(d.Scans) == 0 {
		return nil, nil
	}
	return d.Scans[0].TargetStr, d.Scans[0].ModeStr
}

type portKey struct {
	host  string
	port  int
	proto int
}

// Aggregate groups port reports by host and by host/port/protocol across
// scans. Scans keep the order they are given in; reports belonging to other
// scans are ignored.
func Aggregate(scans []*db.Scan, reports []*db.PortReport) *Data {
	data := &Data{
		ScanIDs: make([]int64, len(scans)),
		Scans:   make([]ScanSummary, len(scans)),
		Hosts:   []HostRow{},
		Ports:   []PortRow{},
	}

	column := make(map[int64]int, len(scans))
	for i, s := range scans {
		column[s.ID] = i
		data.ScanIDs[i] = s.ID
		data.Scans[i] = ScanSummary{
			ID:              s.ID,
			TargetStr:       s.TargetStr,
			ModeStr:         s.ModeStr,
			Profile:         s.Profile,
			StartedAt:       s.Started(),
			DurationSeconds: int64(s.Duration() / time.Second),
		}
	}

	hosts := make(map[string][]bool)
	hostIPs := make(map[string]net.IP)
	ports := make(map[portKey][]bool)
	perScanHosts := make([]map[string]struct{}, len(scans))
	for i := range perScanHosts {
		perScanHosts[i] = make(map[string]struct{})
	}

	for _, r := range reports {
		col, ok := column[r.ScanID]
		if !ok {
			continue
		}
		addr := r.HostAddr.String()

		if hosts[addr] == nil {
			hosts[addr] = make([]bool, len(scans))
			hostIPs[addr] = r.HostAddr.IP
		}
		hosts[addr][col] = true
		perScanHosts[col][addr] = struct{}{}

		key := portKey{host: addr, port: r.Port, proto: r.Proto}
		if ports[key] == nil {
			ports[key] = make([]bool, len(scans))
		}
		if !ports[key][col] {
			ports[key][col] = true
			data.Scans[col].PortCount++
		}
	}

	for i := range data.Scans {
		data.Scans[i].HostCount = len(perScanHosts[i])
	}

	for addr, present := range hosts {
		data.Hosts = append(data.Hosts, HostRow{Addr: addr, Present: present})
	}
	slices.SortFunc(data.Hosts, func(a, b HostRow) int {
		return compareAddr(hostIPs, a.Addr, b.Addr)
	})

	for key, present := range ports {
		row := PortRow{
			Host:     key.host,
			Port:     key.port,
			Protocol: db.ProtocolName(key.proto),
			Present:  present,
			Status:   classify(present),
		}
		data.Ports = append(data.Ports, row)

		switch row.Status {
		case PortStable:
			data.Stats.Stable++
		case PortAdded:
			data.Stats.Added++
		case PortRemoved:
			data.Stats.Removed++
		case PortIntermittent:
			data.Stats.Intermittent++
		}
	}
	slices.SortFunc(data.Ports, func(a, b PortRow) int {
		if c := compareAddr(hostIPs, a.Host, b.Host); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Port, b.Port); c != 0 {
			return c
		}
		return cmp.Compare(a.Protocol, b.Protocol)
	})

	data.Stats.Hosts = len(data.Hosts)
	data.Stats.Ports = len(data.Ports)
	return data
}

func classify(present []bool) PortStatus {
	if len(present) == 0 {
		return PortIntermittent
	}
	if !slices.Contains(present, false) {
		return PortStable
	}

	first, last := present[0], present[len(present)-1]
	switch {
	case !first && last:
		return PortAdded
	case first && !last:
		return PortRemoved
	default:
		return PortIntermittent
	}
}

// compareAddr orders addresses numerically, falling back to text for
// anything that did not parse as an IP.
func compareAddr(ips map[string]net.IP, a, b string) int {
	ipA, ipB := ips[a].To16(), ips[b].To16()
	if ipA != nil && ipB != nil {
		if c := bytes.Compare(ipA, ipB); c != 0 {
			return c
		}
	}
	return cmp.Compare(a, b)
}

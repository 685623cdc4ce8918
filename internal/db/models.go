package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// IPAddr wraps net.IP to implement PostgreSQL INET type.
type IPAddr struct {
	net.IP
}

// Scan implements sql.Scanner for PostgreSQL INET type.
// A host mask suffix ("/32", "/128") is accepted and discarded.
func (ip *IPAddr) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into IPAddr", value)
	}

	if slash := strings.IndexByte(raw, '/'); slash >= 0 {
		raw = raw[:slash]
	}
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return fmt.Errorf("failed to parse IP address: %s", raw)
	}
	ip.IP = parsed
	return nil
}

// Value implements driver.Valuer for PostgreSQL INET type.
func (ip IPAddr) Value() (driver.Value, error) {
	if ip.IP == nil {
		return nil, nil
	}
	return ip.IP.String(), nil
}

// String returns the IP address string.
func (ip IPAddr) String() string {
	if ip.IP == nil {
		return ""
	}
	return ip.IP.String()
}

// MarshalJSON renders the address as a JSON string.
func (ip IPAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(ip.String())
}

// JSONB wraps json.RawMessage for PostgreSQL JSONB type.
type JSONB json.RawMessage

// Scan implements sql.Scanner for PostgreSQL JSONB type.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append(JSONB(nil), v...)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// Value implements driver.Valuer for PostgreSQL JSONB type.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append(JSONB(nil), data...)
	return nil
}

// Scan is one row of uni_scans: a completed scan run and its parameters.
type Scan struct {
	ID         int64   `db:"scans_id" json:"scans_id"`
	StartTime  int64   `db:"s_time" json:"s_time"`
	EndTime    int64   `db:"e_time" json:"e_time"`
	Profile    string  `db:"profile" json:"profile"`
	TargetStr  *string `db:"target_str" json:"target_str,omitempty"`
	ModeStr    *string `db:"mode_str" json:"mode_str,omitempty"`
	NumHosts   int64   `db:"num_hosts" json:"num_hosts"`
	NumPackets int64   `db:"num_packets" json:"num_packets"`
	Metadata   JSONB   `db:"scan_metadata" json:"scan_metadata,omitempty"`
}

// Started returns the scan start time in UTC.
func (s *Scan) Started() time.Time {
	return time.Unix(s.StartTime, 0).UTC()
}

// Duration returns how long the scan ran.
func (s *Scan) Duration() time.Duration {
	if s.EndTime < s.StartTime {
		return 0
	}
	return time.Duration(s.EndTime-s.StartTime) * time.Second
}

// PortReport is one row of uni_ipreport: a responding host/port seen by a scan.
type PortReport struct {
	ID       int64  `db:"ipreport_id" json:"ipreport_id"`
	ScanID   int64  `db:"scans_id" json:"scans_id"`
	HostAddr IPAddr `db:"host_addr" json:"host_addr"`
	Port     int    `db:"dport" json:"dport"`
	Proto    int    `db:"proto" json:"proto"`
	TTL      int    `db:"ttl" json:"ttl"`
	Tstamp   int64  `db:"tstamp" json:"tstamp"`
}

// Protocol returns the textual name of the IP protocol number.
func (r *PortReport) Protocol() string {
	return ProtocolName(r.Proto)
}

// ProtocolName maps IP protocol numbers to their common names.
func ProtocolName(proto int) string {
	switch proto {
	case 1:
		return "icmp"
	case 6:
		return "tcp"
	case 17:
		return "udp"
	case 58:
		return "icmpv6"
	default:
		return fmt.Sprintf("proto-%d", proto)
	}
}

// SavedComparison is a bookmarked comparison of a set of scans.
type SavedComparison struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	ScanIDs   pq.Int64Array `db:"scan_ids" json:"scan_ids"`
	ScanKey   string        `db:"scan_key" json:"-"`
	Note      string        `db:"note" json:"note"`
	TargetStr *string       `db:"target_str" json:"target_str,omitempty"`
	ModeStr   *string       `db:"mode_str" json:"mode_str,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

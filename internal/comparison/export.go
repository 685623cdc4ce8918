package comparison

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/alicorn/internal/errors"
)

// Format is an export file format.
type Format string

// Supported export formats.
const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// filenameTimeLayout is an ISO 8601 UTC timestamp without colons or
// fractional seconds.
const filenameTimeLayout = "2006-01-02T150405"

// ParseFormat accepts csv, json, markdown and md, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", errors.NewComparisonError(errors.CodeExportFormat,
			fmt.Sprintf("unsupported export format %q", s)).
			WithContext("supported", "csv, json, markdown")
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// File is a generated export.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Filename builds the download name for an export of ids taken at t, e.g.
// scan-comparison-5-7-2026-03-01T120000.csv.
func Filename(ids []int64, f Format, t time.Time) string {
	return fmt.Sprintf("scan-comparison-%s-%s.%s",
		JoinScanIDs(ids, "-"), t.UTC().Format(filenameTimeLayout), f.Extension())
}

// Export renders data and note in format f. It fails when data is nil.
func Export(data *Data, note string, f Format, at time.Time) (*File, error) {
	if data == nil {
		return nil, errors.ErrDataNotReady()
	}

	var (
		content []byte
		err     error
	)
	switch f {
	case FormatCSV:
		content, err = GenerateCSV(data, note)
	case FormatJSON:
		content, err = GenerateJSON(data, note)
	case FormatMarkdown:
		content = GenerateMarkdown(data, note)
	default:
		_, err = ParseFormat(string(f))
	}
	if err != nil {
		return nil, err
	}

	return &File{
		Name:        Filename(data.ScanIDs, f, at),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// GenerateCSV writes one row per host/port/protocol with a yes/no column per
// scan. A non-empty note is written first as a comment line.
func GenerateCSV(data *Data, note string) ([]byte, error) {
	var buf bytes.Buffer

	if note = strings.TrimSpace(note); note != "" {
		for _, line := range strings.Split(note, "\n") {
			fmt.Fprintf(&buf, "# Note: %s\n", strings.TrimRight(line, "\r"))
		}
	}

	w := csv.NewWriter(&buf)

	header := []string{"host", "port", "protocol", "status"}
	for _, id := range data.ScanIDs {
		header = append(header, "scan_"+strconv.FormatInt(id, 10))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, p := range data.Ports {
		row := []string{p.Host, strconv.Itoa(p.Port), p.Protocol, string(p.Status)}
		for _, seen := range p.Present {
			row = append(row, yesNo(seen))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type jsonExport struct {
	ScanIDs []int64       `json:"scan_ids"`
	Note    string        `json:"note,omitempty"`
	Scans   []ScanSummary `json:"scans"`
	Stats   Stats         `json:"stats"`
	Hosts   []HostRow     `json:"hosts"`
	Ports   []PortRow     `json:"ports"`
}

// GenerateJSON renders the comparison as an indented JSON document.
func GenerateJSON(data *Data, note string) ([]byte, error) {
	out, err := json.MarshalIndent(jsonExport{
		ScanIDs: data.ScanIDs,
		Note:    strings.TrimSpace(note),
		Scans:   data.Scans,
		Stats:   data.Stats,
		Hosts:   data.Hosts,
		Ports:   data.Ports,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// GenerateMarkdown renders a human-readable report.
func GenerateMarkdown(data *Data, note string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Scan Comparison: %s\n\n", JoinScanIDs(data.ScanIDs, ", "))

	if note = strings.TrimSpace(note); note != "" {
		for _, line := range strings.Split(note, "\n") {
			fmt.Fprintf(&b, "> %s\n", strings.TrimRight(line, "\r"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Scans\n\n")
	b.WriteString("| Scan | Target | Mode | Profile | Started (UTC) | Duration | Hosts | Ports |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, s := range data.Scans {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %d | %d |\n",
			s.ID, mdCell(deref(s.TargetStr)), mdCell(deref(s.ModeStr)), mdCell(s.Profile),
			s.StartedAt.UTC().Format(time.DateTime),
			time.Duration(s.DurationSeconds)*time.Second,
			s.HostCount, s.PortCount)
	}

	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "- Hosts: %d\n", data.Stats.Hosts)
	fmt.Fprintf(&b, "- Ports: %d\n", data.Stats.Ports)
	fmt.Fprintf(&b, "- Stable: %d\n", data.Stats.Stable)
	fmt.Fprintf(&b, "- Added: %d\n", data.Stats.Added)
	fmt.Fprintf(&b, "- Removed: %d\n", data.Stats.Removed)
	fmt.Fprintf(&b, "- Intermittent: %d\n", data.Stats.Intermittent)

	b.WriteString("\n## Port Changes\n\n")
	if len(data.Ports) == 0 {
		b.WriteString("No open ports were recorded by these scans.\n")
		return []byte(b.String())
	}

	b.WriteString("| Host | Port | Protocol | Status |")
	for _, id := range data.ScanIDs {
		fmt.Fprintf(&b, " Scan %d |", id)
	}
	b.WriteString("\n|---|---|---|---|")
	for range data.ScanIDs {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, p := range data.Ports {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |", p.Host, p.Port, p.Protocol, p.Status)
		for _, seen := range p.Present {
			fmt.Fprintf(&b, " %s |", yesNo(seen))
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

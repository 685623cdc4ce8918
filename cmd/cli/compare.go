package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/db"
)

const formatTable = "table"

// outputFormat is a pflag.Value accepting table or any export format.
type outputFormat string

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == formatTable {
		*f = formatTable
		return nil
	}
	parsed, err := comparison.ParseFormat(s)
	if err != nil {
		return fmt.Errorf("must be one of table, csv, json, markdown")
	}
	*f = outputFormat(parsed)
	return nil
}

func (f *outputFormat) Type() string { return "format" }

var (
	compareFormat = outputFormat(formatTable)
	compareOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare <scan-ids>",
	Short: "Compare scans from the command line",
	Long: `Compare two or more scans given as a comma separated id list.
Invalid and duplicate ids are dropped. The note of a matching saved
comparison is included in file exports.`,
	Example: `  alicorn compare 5,7
  alicorn compare 5,7,9 --format csv
  alicorn compare 5,7 --format markdown --output ./reports/`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().VarP(&compareFormat, "format", "f", "output format: table, csv, json or markdown")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "",
		"write the export to this file or directory instead of stdout")
}

func runCompare(cmd *cobra.Command, args []string) error {
	ids := comparison.ParseScanIDs(args[0])
	if !comparison.HasEnoughScans(ids) {
		return fmt.Errorf("at least two distinct scan ids are required, got %q", args[0])
	}

	return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
		source := comparison.NewDBSource(db.NewScanRepository(database), db.NewReportRepository(database))
		data, err := source.Fetch(ctx, ids)
		if err != nil {
			return err
		}

		if compareFormat == formatTable {
			return renderComparison(cmd.OutOrStdout(), data)
		}

		note := ""
		saved, err := db.NewSavedComparisonRepository(database).FindByScanIDs(ctx, ids)
		if err != nil {
			return err
		}
		if saved != nil {
			note = saved.Note
		}

		file, err := comparison.Export(data, note, comparison.Format(compareFormat), time.Now())
		if err != nil {
			return err
		}
		return writeExport(cmd.OutOrStdout(), file, compareOutput)
	})
}

// writeExport writes file to dest: stdout when dest is empty, inside dest
// when it is a directory, otherwise to dest itself.
func writeExport(stdout io.Writer, file *comparison.File, dest string) error {
	if dest == "" || dest == "-" {
		_, err := stdout.Write(file.Content)
		return err
	}

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, file.Name)
	}

	if err := os.WriteFile(dest, file.Content, filePermissions); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", dest, len(file.Content))
	return nil
}

const filePermissions = 0o600

// renderComparison prints the scan summary and the port matrix.
func renderComparison(w io.Writer, data *comparison.Data) error {
	scans := tablewriter.NewWriter(w)
	scans.Header("Scan", "Target", "Mode", "Started", "Duration", "Hosts", "Ports")
	for _, s := range data.Scans {
		if err := scans.Append([]string{
			strconv.FormatInt(s.ID, 10),
			deref(s.TargetStr),
			deref(s.ModeStr),
			s.StartedAt.Format("2006-01-02 15:04"),
			(time.Duration(s.DurationSeconds) * time.Second).String(),
			strconv.Itoa(s.HostCount),
			strconv.Itoa(s.PortCount),
		}); err != nil {
			return err
		}
	}
	if err := scans.Render(); err != nil {
		return err
	}

	header := []any{"Host", "Port", "Proto"}
	for _, id := range data.ScanIDs {
		header = append(header, "#"+strconv.FormatInt(id, 10))
	}
	header = append(header, "Status")

	ports := tablewriter.NewWriter(w)
	ports.Header(header...)
	for _, p := range data.Ports {
		row := []string{p.Host, strconv.Itoa(p.Port), p.Protocol}
		for _, seen := range p.Present {
			row = append(row, presence(seen))
		}
		row = append(row, string(p.Status))
		if err := ports.Append(row); err != nil {
			return err
		}
	}
	if err := ports.Render(); err != nil {
		return err
	}

	st := data.Stats
	_, err := fmt.Fprintf(w, "%d hosts, %d ports: %d stable, %d added, %d removed, %d intermittent\n",
		st.Hosts, st.Ports, st.Stable, st.Added, st.Removed, st.Intermittent)
	return err
}

func presence(seen bool) string {
	if seen {
		return "x"
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

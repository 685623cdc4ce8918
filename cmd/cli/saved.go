package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/notify"
)

const (
	defaultListLimit = 50
	noteSaveTimeout  = 10 * time.Second
)

var (
	savedListLimit  int
	savedListOffset int
	savedAddNote    string
)

var savedCmd = &cobra.Command{
	Use:     "saved",
	Aliases: []string{"bookmarks"},
	Short:   "Manage saved comparisons",
}

var savedListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved comparisons, most recently updated first",
	Example: `  alicorn saved list
  alicorn saved list --limit 10 --offset 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
			items, total, err := db.NewSavedComparisonRepository(database).List(ctx, savedListOffset, savedListLimit)
			if err != nil {
				return err
			}
			return renderSaved(cmd.OutOrStdout(), items, total)
		})
	},
}

var savedAddCmd = &cobra.Command{
	Use:   "add <scan-ids>",
	Short: "Bookmark a comparison",
	Long: `Bookmark the comparison of the given scans. With --note the note is
stored as well; on an existing bookmark only the note is updated.`,
	Example: `  alicorn saved add 5,7
  alicorn saved add 5,7 --note "443 opened on the web tier"`,
	Args: cobra.ExactArgs(1),
	RunE: runSavedAdd,
}

var savedRemoveCmd = &cobra.Command{
	Use:     "rm <id|scan-ids>",
	Aliases: []string{"remove"},
	Short:   "Remove a saved comparison",
	Long: `Remove a saved comparison, addressed either by its id or by the
comma separated scan ids it was saved for.`,
	Example: `  alicorn saved rm 3f0c2a1e-7d1b-4a51-9a55-0f4a2b1d9e10
  alicorn saved rm 5,7`,
	Args: cobra.ExactArgs(1),
	RunE: runSavedRemove,
}

func init() {
	rootCmd.AddCommand(savedCmd)
	savedCmd.AddCommand(savedListCmd, savedAddCmd, savedRemoveCmd)

	savedListCmd.Flags().IntVar(&savedListLimit, "limit", defaultListLimit, "maximum number of rows")
	savedListCmd.Flags().IntVar(&savedListOffset, "offset", 0, "rows to skip")

	savedAddCmd.Flags().StringVarP(&savedAddNote, "note", "n", "", "note to store with the bookmark")
}

func runSavedAdd(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), args[0], func(ctx context.Context, ctrl *comparison.Controller, notes *signalNotifier) error {
		state := ctrl.State()

		if !state.IsBookmarked {
			if savedAddNote != "" {
				if err := ctrl.OnNoteChange(savedAddNote); err != nil {
					return err
				}
			}
			return ctrl.ToggleBookmark(ctx)
		}

		if savedAddNote == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Comparison is already bookmarked")
			return nil
		}
		if err := ctrl.OnNoteChange(savedAddNote); err != nil {
			return err
		}
		return notes.wait(ctx, noteSaveTimeout)
	})
}

func runSavedRemove(cmd *cobra.Command, args []string) error {
	if id, err := uuid.Parse(args[0]); err == nil {
		return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, database *db.DB) error {
			if err := db.NewSavedComparisonRepository(database).Remove(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			return nil
		})
	}

	return withSession(cmd.Context(), args[0], func(ctx context.Context, ctrl *comparison.Controller, _ *signalNotifier) error {
		if !ctrl.State().IsBookmarked {
			return fmt.Errorf("comparison %s is not saved", comparison.JoinScanIDs(ctrl.ScanIDs(), ","))
		}
		if err := ctrl.ToggleBookmark(ctx); err != nil {
			return err
		}
		return ctrl.ConfirmRemoval(ctx)
	})
}

// sessionOperation runs against a loaded, single-use comparison controller.
type sessionOperation func(ctx context.Context, ctrl *comparison.Controller, notes *signalNotifier) error

// withSession opens a controller for raw scan ids, runs operation and prints
// the notifications the controller raised.
func withSession(ctx context.Context, raw string, operation sessionOperation) error {
	ids := comparison.ParseScanIDs(raw)
	if !comparison.HasEnoughScans(ids) {
		return fmt.Errorf("at least two distinct scan ids are required, got %q", raw)
	}

	return withDatabase(ctx, func(ctx context.Context, cfg *config.Config, database *db.DB) error {
		notes := newSignalNotifier()
		source := comparison.NewDBSource(db.NewScanRepository(database), db.NewReportRepository(database))

		ctrl, err := comparison.NewController(uuid.New(), ids, db.NewSavedComparisonRepository(database), source, notes,
			comparison.Options{
				DebounceWindow: cfg.Comparison.DebounceWindow,
				Logger:         logging.Default(),
			})
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := ctrl.Load(ctx); err != nil {
			return err
		}

		opErr := operation(ctx, ctrl, notes)
		printNotifications(os.Stdout, os.Stderr, notes.Entries())
		return opErr
	})
}

// signalNotifier records notifications and wakes waiters on each one.
type signalNotifier struct {
	*notify.Recorder
	signal chan struct{}
	once   sync.Once
}

func newSignalNotifier() *signalNotifier {
	return &signalNotifier{Recorder: notify.NewRecorder(), signal: make(chan struct{})}
}

func (n *signalNotifier) Info(title, detail string) {
	n.Recorder.Info(title, detail)
	n.notify()
}

func (n *signalNotifier) Error(title, detail string) {
	n.Recorder.Error(title, detail)
	n.notify()
}

func (n *signalNotifier) notify() {
	n.once.Do(func() { close(n.signal) })
}

// wait blocks until the first notification arrives, then reports an error
// notification as a failure.
func (n *signalNotifier) wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.signal:
	case <-timer.C:
		return fmt.Errorf("timed out waiting for the note to be saved")
	case <-ctx.Done():
		return ctx.Err()
	}

	if errs := n.Errors(); len(errs) > 0 {
		return fmt.Errorf("%s: %s", errs[0].Title, errs[0].Detail)
	}
	return nil
}

func printNotifications(stdout, stderr io.Writer, entries []notify.Notification) {
	for _, e := range entries {
		w := stdout
		if e.Level == notify.LevelError {
			w = stderr
		}
		if e.Detail != "" {
			fmt.Fprintf(w, "%s: %s\n", e.Title, e.Detail)
		} else {
			fmt.Fprintln(w, e.Title)
		}
	}
}

func renderSaved(w io.Writer, items []*db.SavedComparison, total int64) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Scans", "Target", "Note", "Updated")

	for _, item := range items {
		if err := table.Append([]string{
			item.ID.String(),
			comparison.JoinScanIDs(item.ScanIDs, ","),
			deref(item.TargetStr),
			truncate(item.Note, 40),
			item.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Showing %d of %s saved comparison(s)\n", len(items), strconv.FormatInt(total, 10))
	return err
}

// truncate shortens s to at most n runes on one line.
func truncate(s string, n int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-3]) + "..."
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/alicorn/internal/auth"
	"github.com/anstrom/alicorn/internal/comparison"
	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/notify"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		args []string
		use  string
	}{
		{[]string{"serve"}, "serve"},
		{[]string{"migrate", "up"}, "up"},
		{[]string{"migrate", "status"}, "status"},
		{[]string{"migrate", "reset"}, "reset"},
		{[]string{"compare"}, "compare <scan-ids>"},
		{[]string{"saved", "list"}, "list"},
		{[]string{"bookmarks", "ls"}, "list"},
		{[]string{"saved", "add"}, "add <scan-ids>"},
		{[]string{"saved", "remove"}, "rm <id|scan-ids>"},
		{[]string{"version"}, "version"},
		{[]string{"apikeys", "generate"}, "generate"},
		{[]string{"keys", "hash"}, "hash [key]"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cmd, _, err := rootCmd.Find(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.use, cmd.Use)
		})
	}
}

func TestSetVersion(t *testing.T) {
	v, c, bt := version, commit, buildTime
	t.Cleanup(func() { SetVersion(v, c, bt) })

	SetVersion("1.4.0", "deadbeef", "2026-10-01")
	assert.Equal(t, "1.4.0 (commit: deadbeef, built: 2026-10-01)", rootCmd.Version)

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "alicorn 1.4.0")
	assert.Contains(t, out.String(), "deadbeef")
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected outputFormat
		wantErr  bool
	}{
		{"table", formatTable, false},
		{"CSV", outputFormat(comparison.FormatCSV), false},
		{"json", outputFormat(comparison.FormatJSON), false},
		{"md", outputFormat(comparison.FormatMarkdown), false},
		{"markdown", outputFormat(comparison.FormatMarkdown), false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f outputFormat
			err := f.Set(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
			assert.Equal(t, "format", f.Type())
		})
	}
}

func TestGetConfigFilePath(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	assert.Equal(t, "config.yaml", getConfigFilePath())

	viper.SetConfigFile("/etc/alicorn/config.yaml")
	assert.Equal(t, "/etc/alicorn/config.yaml", getConfigFilePath())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  host: db.internal
  database: alicorn
  username: alicorn
api:
  port: 9090
`), 0o600))

	viper.SetConfigFile(path)
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	t.Setenv("ALICORN_DATABASE_PASSWORD", "from-env")
	t.Setenv("ALICORN_API_PORT", "7070")
	t.Setenv("ALICORN_API_AUTH_ENABLED", "true")
	t.Setenv("ALICORN_API_API_KEYS", "one, two,,")
	t.Setenv("ALICORN_COMPARISON_DEBOUNCE_WINDOW", "250ms")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.True(t, cfg.API.AuthEnabled)
	assert.Equal(t, []string{"one", "two"}, cfg.API.APIKeys)
	assert.Equal(t, 250*time.Millisecond, cfg.Comparison.DebounceWindow)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	viper.SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	t.Setenv("ALICORN_DATABASE_DATABASE", "alicorn")
	t.Setenv("ALICORN_DATABASE_USERNAME", "alicorn")
	t.Setenv("ALICORN_LOGGING_LEVEL", "chatty")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestWriteExport(t *testing.T) {
	file := &comparison.File{Name: "scan-comparison-5-7-2026-10-01T120000.csv", Content: []byte("a,b\n")}

	t.Run("stdout", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, writeExport(&out, file, ""))
		assert.Equal(t, "a,b\n", out.String())
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		var out bytes.Buffer
		require.NoError(t, writeExport(&out, file, dir))

		content, err := os.ReadFile(filepath.Join(dir, file.Name))
		require.NoError(t, err)
		assert.Equal(t, "a,b\n", string(content))
		assert.Contains(t, out.String(), file.Name)
	})

	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		require.NoError(t, writeExport(&bytes.Buffer{}, file, path))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n", string(content))
	})
}

func TestRenderComparison(t *testing.T) {
	target := "10.0.0.0/24"
	data := comparison.Aggregate(
		[]*db.Scan{
			{ID: 5, StartTime: 1_700_000_000, EndTime: 1_700_000_060, TargetStr: &target},
			{ID: 7, StartTime: 1_700_086_400, EndTime: 1_700_086_400, TargetStr: &target},
		},
		[]*db.PortReport{
			{ScanID: 5, HostAddr: db.IPAddr{IP: []byte{10, 0, 0, 9}}, Port: 22, Proto: 6},
			{ScanID: 7, HostAddr: db.IPAddr{IP: []byte{10, 0, 0, 9}}, Port: 22, Proto: 6},
			{ScanID: 7, HostAddr: db.IPAddr{IP: []byte{10, 0, 0, 9}}, Port: 80, Proto: 6},
		},
	)

	var out bytes.Buffer
	require.NoError(t, renderComparison(&out, data))

	text := out.String()
	assert.Contains(t, text, "10.0.0.0/24")
	assert.Contains(t, text, "10.0.0.9")
	assert.Contains(t, text, "added")
	assert.Contains(t, text, "stable")
	assert.Contains(t, text, "1 hosts, 2 ports: 1 stable, 1 added, 0 removed, 0 intermittent")
}

func TestRenderSaved(t *testing.T) {
	items := []*db.SavedComparison{
		{
			ID:        uuid.New(),
			ScanIDs:   pq.Int64Array{3, 9},
			Note:      "first line\nsecond line",
			UpdatedAt: time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC),
		},
	}

	var out bytes.Buffer
	require.NoError(t, renderSaved(&out, items, 12))

	text := out.String()
	assert.Contains(t, text, "3,9")
	assert.Contains(t, text, "first line")
	assert.NotContains(t, text, "second line")
	assert.Contains(t, text, "2026-10-01 08:30")
	assert.Contains(t, text, "Showing 1 of 12 saved comparison(s)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "line", truncate("line\nmore", 10))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}

func TestSignalNotifier(t *testing.T) {
	t.Run("info releases waiter", func(t *testing.T) {
		n := newSignalNotifier()
		go n.Info("Comparison saved", "Scans 5, 7 bookmarked")

		require.NoError(t, n.wait(context.Background(), time.Second))
		assert.Len(t, n.Entries(), 1)
	})

	t.Run("error is reported", func(t *testing.T) {
		n := newSignalNotifier()
		n.Error("Failed to save comparison", "connection refused")
		n.Error("Failed to save comparison", "again")

		err := n.wait(context.Background(), time.Second)
		require.Error(t, err)
		assert.Equal(t, "Failed to save comparison: connection refused", err.Error())
	})

	t.Run("timeout", func(t *testing.T) {
		n := newSignalNotifier()
		assert.Error(t, n.wait(context.Background(), 10*time.Millisecond))
	})
}

func TestPrintNotifications(t *testing.T) {
	var stdout, stderr bytes.Buffer
	printNotifications(&stdout, &stderr, []notify.Notification{
		{Level: notify.LevelInfo, Title: "Comparison saved", Detail: "Scans 5, 7 bookmarked"},
		{Level: notify.LevelError, Title: "Failed to remove bookmark", Detail: "timeout"},
		{Level: notify.LevelInfo, Title: "Done"},
	})

	assert.Equal(t, "Comparison saved: Scans 5, 7 bookmarked\nDone\n", stdout.String())
	assert.Equal(t, "Failed to remove bookmark: timeout\n", stderr.String())
}

func TestReadKey(t *testing.T) {
	key, err := readKey(strings.NewReader("  ak_fromstdin  \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "ak_fromstdin", key)

	key, err = readKey(strings.NewReader("ak_noeol"))
	require.NoError(t, err)
	assert.Equal(t, "ak_noeol", key)

	_, err = readKey(strings.NewReader("\n"))
	assert.Error(t, err)
}

func TestAPIKeysGenerate(t *testing.T) {
	var out bytes.Buffer
	apiKeysGenerateCmd.SetOut(&out)
	t.Cleanup(func() { apiKeysGenerateCmd.SetOut(nil) })

	require.NoError(t, apiKeysGenerateCmd.RunE(apiKeysGenerateCmd, nil))

	var key, hash string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "Key:"); ok {
			key = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "Hash:"); ok {
			hash = strings.TrimSpace(v)
		}
	}
	assert.True(t, auth.IsValidAPIKeyFormat(key))
	assert.True(t, auth.ValidateAPIKey(key, hash))
}

package main

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/casebook"
	lcsource "github.com/aretw0/casebook/pkg/adapters/lifecycle"
	"github.com/aretw0/casebook/pkg/picker"
	"github.com/aretw0/casebook/pkg/reconcile"
)

// run executes the CLI with args against a fresh flag state.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLI_RecordLifecycle(t *testing.T) {
	for _, adapterName := range []string{"fs", "sqlite"} {
		t.Run(adapterName, func(t *testing.T) {
			vault := t.TempDir()

			out := mustRun(t, "init", "--vault", vault, "--adapter", adapterName)
			assert.Contains(t, out, "Initialized empty casebook vault ("+adapterName+")")
			assert.FileExists(t, filepath.Join(vault, "casebook.yaml"))

			id := strings.TrimSpace(mustRun(t, "create", "--vault", vault, "--title", "Stolen bicycle", "--at", "2026-03-14T09:30"))
			_, err := casebook.ParseID(id)
			require.NoError(t, err)

			mustRun(t, "edit", id[:8], "--vault", vault, "--solved", "--suspect", "The neighbour", "--time", "21:15")

			var rec casebook.Record
			require.NoError(t, json.Unmarshal([]byte(mustRun(t, "show", id, "--vault", vault, "--json")), &rec))
			assert.Equal(t, "Stolen bicycle", rec.Title)
			assert.True(t, rec.Solved)
			assert.Equal(t, "The neighbour", rec.Suspect)
			local := rec.OccurredAt.Local()
			assert.Equal(t, 14, local.Day())
			assert.Equal(t, 21, local.Hour())
			assert.Equal(t, 15, local.Minute())

			second := strings.TrimSpace(mustRun(t, "create", "--vault", vault, "--title", "Broken window"))

			var records []casebook.Record
			require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "--vault", vault, "--json", "--newest-first")), &records))
			require.Len(t, records, 2)
			assert.Equal(t, second, records[0].ID.String())

			records = nil
			require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "--vault", vault, "--json", "--solved", "no")), &records))
			require.Len(t, records, 1)
			assert.Equal(t, "Broken window", records[0].Title)

			mustRun(t, "delete", id, "--vault", vault)
			_, err = run(t, "show", id, "--vault", vault)
			assert.ErrorIs(t, err, casebook.ErrNotFound)
		})
	}
}

func TestCLI_EditWithoutFlagsLeavesRecordUntouched(t *testing.T) {
	vault := t.TempDir()
	mustRun(t, "init", "--vault", vault)
	id := strings.TrimSpace(mustRun(t, "create", "--vault", vault, "--title", "Unchanged"))

	out := mustRun(t, "edit", id, "--vault", vault)
	assert.Contains(t, out, "ready")

	var rec casebook.Record
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "show", id, "--vault", vault, "--json")), &rec))
	assert.Equal(t, "Unchanged", rec.Title)
}

func TestCLI_PhotoImportAndPrune(t *testing.T) {
	vault := t.TempDir()
	mustRun(t, "init", "--vault", vault)
	id := strings.TrimSpace(mustRun(t, "create", "--vault", vault, "--title", "With photo"))

	image := filepath.Join(t.TempDir(), "shot.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpeg bytes"), 0644))

	out := mustRun(t, "photo", "import", id, image, "--vault", vault)
	assert.Contains(t, out, "Imported 10 bytes")

	path := strings.TrimSpace(mustRun(t, "photo", "path", id, "--vault", vault))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	out = mustRun(t, "show", id, "--vault", vault)
	assert.Contains(t, out, path)

	// A photo left behind by some other tool.
	stray := filepath.Join(filepath.Dir(path), "IMG_00000000-0000-4000-8000-000000000001.jpg")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0644))

	out = mustRun(t, "photo", "prune", "--dry-run", "--vault", vault)
	assert.Contains(t, out, "would remove")
	assert.FileExists(t, stray)

	out = mustRun(t, "photo", "prune", "--vault", vault)
	assert.Contains(t, out, "Removed 1 orphaned photos")
	assert.NoFileExists(t, stray)
	assert.FileExists(t, path)
}

func TestCLI_Status(t *testing.T) {
	vault := t.TempDir()
	mustRun(t, "init", "--vault", vault)
	mustRun(t, "create", "--vault", vault)

	var report map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "status", "--vault", vault)), &report))
	assert.Contains(t, report, "store")
	assert.Contains(t, report, "fs-repository")
	assert.Contains(t, report, "root")
}

func TestCLI_RequiresVault(t *testing.T) {
	_, err := run(t, "list", "--vault", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out := mustRun(t, "version")
	assert.Contains(t, out, "casebook version "+strings.TrimSpace(casebook.Version))
}

func TestWatch_PrintsEditScript(t *testing.T) {
	rec := casebook.Record{Title: "Stolen bicycle"}
	ev := lcsource.SnapshotEvent{
		Version:  3,
		Snapshot: []casebook.Record{rec},
		Ops:      []reconcile.Op{{Type: reconcile.OpInsert, Index: 0, ID: rec.ID, Record: rec}},
	}

	var out bytes.Buffer
	printSnapshotEvent(&out, ev)
	assert.Contains(t, out.String(), "insert 0")
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestPick_ResolvesThroughPicker(t *testing.T) {
	p := picker.New[time.Time]("occurred-at", nil)
	current := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	want := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	got, err := pick(context.Background(), p, current, func(c time.Time) (time.Time, error) {
		assert.Equal(t, current, c)
		return want, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	_, pending := p.Pending("edit")
	assert.False(t, pending)

	boom := errors.New("bad input")
	_, err = pick(context.Background(), p, current, func(time.Time) (time.Time, error) {
		return time.Time{}, boom
	})
	assert.ErrorIs(t, err, boom)
	_, pending = p.Pending("edit")
	assert.False(t, pending)
}

func TestCLI_EditRejectsBadDate(t *testing.T) {
	vault := t.TempDir()
	mustRun(t, "init", "--vault", vault)
	id := strings.TrimSpace(mustRun(t, "create", "--vault", vault))

	_, err := run(t, "edit", id, "--vault", vault, "--date", "14/03/2026")
	assert.Error(t, err)
}

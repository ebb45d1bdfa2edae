package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/symphonyoss/integration-maintenance/internal/config"
	"github.com/symphonyoss/integration-maintenance/internal/fix"
	"github.com/symphonyoss/integration-maintenance/internal/instance/repository"
	"github.com/symphonyoss/integration-maintenance/internal/report"
	"github.com/symphonyoss/integration-maintenance/pkg/metrics"
)

type fakeHistory struct {
	runs []report.Report
}

func (f *fakeHistory) Record(ctx context.Context, r *report.Report) error {
	f.runs = append([]report.Report{*r}, f.runs...)
	return nil
}

func (f *fakeHistory) Recent(ctx context.Context, collection string, limit int64) ([]report.Report, error) {
	return f.runs, nil
}

// useMemory points the commands at an in-memory collection seeded with docs.
func useMemory(t *testing.T, docs ...bson.M) (*repository.MemoryRepo, *fakeHistory) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://unused")
	repo := repository.NewMemoryRepo("creatorId", docs...)
	hist := &fakeHistory{}
	orig := openRuntime
	openRuntime = func(ctx context.Context, cfg *config.Config, n needs) (*runtime, error) {
		rt := &runtime{cfg: cfg, repo: repo, history: hist, registry: prometheus.NewRegistry()}
		metrics.RegisterCollectors(rt.registry)
		f, err := fix.New(repo, fixOptions(cfg), fix.WithHistory(hist))
		if err != nil {
			return nil, err
		}
		rt.fixer = f
		return rt, nil
	}
	t.Cleanup(func() { openRuntime = orig })
	return repo, hist
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestRunFixPrintsResponseAndMessage(t *testing.T) {
	repo, hist := useMemory(t,
		bson.M{"_id": "a", "creatorId": "abc"},
		bson.M{"_id": "b", "creatorId": "42"},
		bson.M{"_id": "c"},
	)
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runFix(cmd, nil))

	out := decode(t, &buf)
	require.Equal(t, true, out["response"])
	require.Equal(t, "creatorId fixed: no non-conforming documents remain", out["message"])
	require.Equal(t, "0", repo.Get("a")["creatorId"])
	require.Equal(t, "42", repo.Get("b")["creatorId"])
	require.Equal(t, "0", repo.Get("c")["creatorId"])
	require.Len(t, hist.runs, 1)
}

func TestRunCheckExitsTwoWhenNotFixed(t *testing.T) {
	useMemory(t, bson.M{"_id": "a", "creatorId": "12a3"})
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runCheck(cmd, nil)
	var ee exitError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, 2, ee.code)

	out := decode(t, &buf)
	require.Equal(t, false, out["response"])
	require.Equal(t, "creatorId not fixed: 1 non-conforming documents remain", out["message"])
}

func TestRunCheckPassesOnCleanCollection(t *testing.T) {
	useMemory(t, bson.M{"_id": "a", "creatorId": "7890"})
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runCheck(cmd, nil))
	require.Equal(t, true, decode(t, &buf)["response"])
}

func TestRunFixDryRun(t *testing.T) {
	repo, _ := useMemory(t, bson.M{"_id": "a", "creatorId": "new-user"})
	t.Setenv("FIX_DRY_RUN", "true")
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runFix(cmd, nil))
	require.Equal(t, "dry run: 1 documents would be updated", decode(t, &buf)["message"])
	require.Equal(t, "new-user", repo.Get("a")["creatorId"])
}

func TestRunHistoryListsRuns(t *testing.T) {
	useMemory(t, bson.M{"_id": "a", "creatorId": "abc"})
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runFix(cmd, nil))

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, runHistory(cmd, nil))
	require.Contains(t, buf.String(), "fixed")
	require.Contains(t, buf.String(), "modified=1")
}

func TestRunHistoryLastNeedsRedis(t *testing.T) {
	useMemory(t)
	historyLast = true
	defer func() { historyLast = false }()

	err := runHistory(&cobra.Command{}, nil)
	require.Error(t, err)
}

func TestRunRestoreWithoutBackupStore(t *testing.T) {
	useMemory(t)
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runRestore(cmd, []string{"backups/integrationconfiginstance/run-1.json"})
	require.ErrorIs(t, err, fix.ErrNoBackupStore)
}

func TestMissingMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	err := runFix(&cobra.Command{}, nil)
	require.ErrorIs(t, err, config.ErrMissingMongoURI)
}

package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	require.Equal(t, "fixed", (&Report{Mode: ModeFix, Response: true}).Outcome())
	require.Equal(t, "not_fixed", (&Report{Mode: ModeFix}).Outcome())
	require.Equal(t, "dry_run", (&Report{Mode: ModeDryRun, Response: true}).Outcome())
	require.Equal(t, "error", (&Report{Mode: ModeFix, Response: true, Error: "boom"}).Outcome())
}

func TestWriteCarriesResponseAndMessage(t *testing.T) {
	var buf bytes.Buffer
	r := &Report{Response: true, Message: FixedMessage("creatorId"), Mode: ModeFix}
	require.NoError(t, Write(&buf, r))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, true, got["response"])
	require.Equal(t, "creatorId fixed: no non-conforming documents remain", got["message"])
}

func TestMessages(t *testing.T) {
	require.Equal(t, "creatorId not fixed: 3 non-conforming documents remain", NotFixedMessage("creatorId", 3))
	require.Equal(t, "dry run: 2 documents would be updated", DryRunMessage(2))
	require.Equal(t, "creatorId restored on 1 of 2 backed up documents", RestoredMessage("creatorId", 1, 2))
}

func TestDuration(t *testing.T) {
	start := time.Now()
	r := &Report{StartedAt: start}
	require.Zero(t, r.Duration())
	r.FinishedAt = start.Add(1500 * time.Millisecond)
	require.Equal(t, 1500*time.Millisecond, r.Duration())
}

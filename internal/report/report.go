package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Report is the outcome of one pass over the collection. Response and Message form
// the console result; the remaining fields are kept for the run history.
type Report struct {
	Response   bool      `json:"response" bson:"response"`
	Message    string    `json:"message" bson:"message"`
	RunID      string    `json:"runId,omitempty" bson:"runId"`
	Mode       Mode      `json:"mode,omitempty" bson:"mode"`
	Collection string    `json:"collection,omitempty" bson:"collection"`
	Field      string    `json:"field,omitempty" bson:"field"`
	Matched    int64     `json:"matched" bson:"matched"`
	Modified   int64     `json:"modified" bson:"modified"`
	Remaining  int64     `json:"remaining" bson:"remaining"`
	BackupKey  string    `json:"backupKey,omitempty" bson:"backupKey,omitempty"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt" bson:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
}

type Mode string

const (
	ModeFix     Mode = "fix"
	ModeDryRun  Mode = "dry_run"
	ModeCheck   Mode = "check"
	ModeRestore Mode = "restore"
)

// Outcome labels the report for metrics: fixed, not_fixed, dry_run or error.
func (r *Report) Outcome() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Mode == ModeDryRun:
		return "dry_run"
	case r.Response:
		return "fixed"
	}
	return "not_fixed"
}

// Duration is the wall time between start and finish.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func FixedMessage(field string) string {
	return fmt.Sprintf("%s fixed: no non-conforming documents remain", field)
}

func NotFixedMessage(field string, remaining int64) string {
	return fmt.Sprintf("%s not fixed: %d non-conforming documents remain", field, remaining)
}

func DryRunMessage(pending int64) string {
	return fmt.Sprintf("dry run: %d documents would be updated", pending)
}

func RestoredMessage(field string, restored, total int) string {
	return fmt.Sprintf("%s restored on %d of %d backed up documents", field, restored, total)
}

// Write prints r as indented JSON followed by a newline.
func Write(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

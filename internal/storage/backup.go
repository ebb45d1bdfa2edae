package storage

import (
	"fmt"
	"path"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/symphonyoss/integration-maintenance/internal/instance"
)

// Backup is the pre-fix state of every document a run is about to modify.
type Backup struct {
	RunID      string              `bson:"runId"`
	Collection string              `bson:"collection"`
	Field      string              `bson:"field"`
	Value      string              `bson:"value"`
	CreatedAt  time.Time           `bson:"createdAt"`
	Snapshots  []instance.Snapshot `bson:"snapshots"`
}

// BackupKey returns the object key a run's backup is stored under.
func BackupKey(collection, runID string) string {
	return path.Join("backups", collection, runID+".json")
}

// EncodeBackup renders b as canonical Extended JSON so ObjectIDs and numeric
// types survive the round trip.
func EncodeBackup(b *Backup) ([]byte, error) {
	out, err := bson.MarshalExtJSON(b, true, false)
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return out, nil
}

func DecodeBackup(data []byte) (*Backup, error) {
	var b Backup
	if err := bson.UnmarshalExtJSON(data, true, &b); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return &b, nil
}

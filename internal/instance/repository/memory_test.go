package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func seed() []bson.M {
	return []bson.M{
		{"_id": "a", "name": "jira", "creatorId": "abc"},
		{"_id": "b", "name": "github", "creatorId": "42"},
		{"_id": "c", "name": "trello"},
		{"_id": "d", "name": "salesforce", "creatorId": nil},
		{"_id": "e", "name": "webhook", "creatorId": ""},
		{"_id": "f", "name": "universal", "creatorId": "12a3"},
		{"_id": "g", "name": "legacy", "creatorId": int32(7)},
	}
}

func TestMemoryRepoNormalize(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo("creatorId", seed()...)

	n, err := r.CountNonConforming(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	res, err := r.NormalizeCreator(ctx, "0")
	require.NoError(t, err)
	require.Equal(t, int64(5), res.Matched)
	require.Equal(t, int64(5), res.Modified)

	require.Equal(t, "0", r.Get("a")["creatorId"])
	require.Equal(t, "42", r.Get("b")["creatorId"])
	require.Equal(t, "0", r.Get("c")["creatorId"])
	require.Equal(t, "0", r.Get("d")["creatorId"])
	require.Equal(t, "0", r.Get("e")["creatorId"])
	require.Equal(t, "0", r.Get("f")["creatorId"])
	require.Equal(t, int32(7), r.Get("g")["creatorId"])
	require.Equal(t, "universal", r.Get("f")["name"])

	n, err = r.CountNonConforming(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryRepoNormalizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	once := NewMemoryRepo("creatorId", seed()...)
	twice := NewMemoryRepo("creatorId", seed()...)

	_, err := once.NormalizeCreator(ctx, "0")
	require.NoError(t, err)

	_, err = twice.NormalizeCreator(ctx, "0")
	require.NoError(t, err)
	res, err := twice.NormalizeCreator(ctx, "0")
	require.NoError(t, err)
	require.Zero(t, res.Matched)
	require.Zero(t, res.Modified)

	for _, d := range seed() {
		require.Equal(t, once.Get(d["_id"]), twice.Get(d["_id"]))
	}
}

func TestMemoryRepoSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo("creatorId", seed()...)

	snaps, err := r.FindNonConforming(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 5)

	_, err = r.NormalizeCreator(ctx, "0")
	require.NoError(t, err)

	restored, err := r.RestoreCreators(ctx, snaps, "0")
	require.NoError(t, err)
	require.Equal(t, int64(5), restored)

	require.Equal(t, "abc", r.Get("a")["creatorId"])
	_, present := r.Get("c")["creatorId"]
	require.False(t, present)
	require.Nil(t, r.Get("d")["creatorId"])
	require.Equal(t, "12a3", r.Get("f")["creatorId"])
}

func TestMemoryRepoRestoreSkipsChangedDocuments(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo("creatorId", bson.M{"_id": "a", "creatorId": "abc"})
	snaps, err := r.FindNonConforming(ctx)
	require.NoError(t, err)

	_, err = r.NormalizeCreator(ctx, "0")
	require.NoError(t, err)
	// someone fixed the document by hand after the run
	r.docs[0]["creatorId"] = "555"

	restored, err := r.RestoreCreators(ctx, snaps, "0")
	require.NoError(t, err)
	require.Zero(t, restored)
	require.Equal(t, "555", r.Get("a")["creatorId"])
}

func TestMemoryRepoSample(t *testing.T) {
	r := NewMemoryRepo("creatorId", seed()...)
	got, err := r.SampleNonConforming(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "jira", got[0].Name)
	require.NotNil(t, got[0].CreatorID)
	require.Equal(t, "abc", *got[0].CreatorID)
	require.Equal(t, "trello", got[1].Name)
	require.Nil(t, got[1].CreatorID)
}

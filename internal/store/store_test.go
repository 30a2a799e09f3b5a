package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair-alert-bot/internal/database"
	"pair-alert-bot/internal/types"
)

var (
	btcUSDC = types.Pair{A: "BTC", B: "USDC"}
	ethBTC  = types.Pair{A: "ETH", B: "BTC"}
	alice   = types.Owner{ID: 1, Name: "alice"}
	bob     = types.Owner{ID: 2, Name: "bob"}
)

type failingSnapshotter struct {
	fail bool
	doc  Document
}

func (f *failingSnapshotter) Save(doc Document) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.doc = doc
	return nil
}

func (f *failingSnapshotter) Load() (Document, bool, error) {
	return f.doc, f.doc != nil, nil
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	return New(NewFileSnapshotter(path)), path
}

func TestStore_AddAndRemovePrunesBucket(t *testing.T) {
	s, _ := newFileStore(t)

	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: alice, Threshold: 50000, Direction: types.DirectionAbove}))
	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: bob, Threshold: 40000, Direction: types.DirectionBelow}))
	require.NoError(t, s.Add(ethBTC, types.Rule{Owner: bob, Threshold: 0.05}))

	assert.Equal(t, []types.Pair{btcUSDC, ethBTC}, s.Keys())
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.RemoveAt(btcUSDC, 0))
	assert.Equal(t, []types.Rule{{Owner: bob, Threshold: 40000, Direction: types.DirectionBelow}}, s.Rules(btcUSDC))

	require.NoError(t, s.RemoveAt(btcUSDC, 0))
	assert.Equal(t, []types.Pair{ethBTC}, s.Keys())
	assert.Empty(t, s.Rules(btcUSDC))

	assert.ErrorIs(t, s.RemoveAt(btcUSDC, 0), ErrBucketNotFound)
	assert.ErrorIs(t, s.RemoveAt(ethBTC, 3), ErrIndexOutOfRange)
}

func TestStore_CrashRoundTrip(t *testing.T) {
	s, path := newFileStore(t)
	rule := types.Rule{Owner: alice, Threshold: 50000, Direction: types.DirectionAbove}
	require.NoError(t, s.Add(btcUSDC, rule))

	// a new store over the same file stands in for a restarted process
	restarted := New(NewFileSnapshotter(path))
	require.NoError(t, restarted.Load(false))

	assert.Equal(t, []types.Rule{rule}, restarted.Rules(btcUSDC))
}

func TestStore_PersistedFormat(t *testing.T) {
	s, path := newFileStore(t)
	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: alice, Threshold: 100}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"BTC":{"USDC":[{"owner":[1,"alice"],"thresholdValue":100,"directionFlag":null}]}}`, string(data))
}

func TestStore_MergeLoadIsIdempotent(t *testing.T) {
	s, path := newFileStore(t)
	persisted := types.Rule{Owner: alice, Threshold: 50000, Direction: types.DirectionAbove}
	require.NoError(t, s.Add(btcUSDC, persisted))

	other := New(NewFileSnapshotter(path))
	require.NoError(t, other.Load(false))
	require.NoError(t, other.Load(true))
	require.NoError(t, other.Load(true))

	assert.Equal(t, []types.Rule{persisted}, other.Rules(btcUSDC))
}

func TestStore_MergeKeepsInMemoryRules(t *testing.T) {
	snap := &failingSnapshotter{doc: Document{"BTC": {"USDC": {{Owner: alice, Threshold: 1}}}}}
	s := New(snap)
	s.buckets[btcUSDC] = []types.Rule{{Owner: bob, Threshold: 2}}
	s.keys = []types.Pair{btcUSDC}

	require.NoError(t, s.Load(true))

	assert.Equal(t, []types.Rule{{Owner: bob, Threshold: 2}, {Owner: alice, Threshold: 1}}, s.Rules(btcUSDC))
}

func TestStore_ColdLoadWithoutSnapshot(t *testing.T) {
	s, _ := newFileStore(t)
	require.NoError(t, s.Load(false))
	assert.Empty(t, s.Keys())
}

func TestStore_FailedWriteRollsBackAdd(t *testing.T) {
	snap := &failingSnapshotter{}
	s := New(snap)
	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: alice, Threshold: 1}))

	snap.fail = true
	assert.Error(t, s.Add(btcUSDC, types.Rule{Owner: bob, Threshold: 2}))
	assert.Error(t, s.Add(ethBTC, types.Rule{Owner: bob, Threshold: 3}))

	assert.Equal(t, []types.Rule{{Owner: alice, Threshold: 1}}, s.Rules(btcUSDC))
	assert.Equal(t, []types.Pair{btcUSDC}, s.Keys())
}

func TestStore_ResolveOnlyOnce(t *testing.T) {
	s, _ := newFileStore(t)
	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: alice, Threshold: 100}))

	require.NoError(t, s.Resolve(btcUSDC, 0, types.DirectionAbove))
	require.NoError(t, s.Resolve(btcUSDC, 0, types.DirectionBelow))

	assert.Equal(t, types.DirectionAbove, s.Rules(btcUSDC)[0].Direction)
}

func TestSQLiteSnapshotter_RoundTrip(t *testing.T) {
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "bot.db")))
	t.Cleanup(func() { database.CloseDB() })

	s := New(NewSQLiteSnapshotter())
	rule := types.Rule{Owner: bob, Threshold: 0.5, Direction: types.DirectionBelow}
	require.NoError(t, s.Add(ethBTC, rule))

	restarted := New(NewSQLiteSnapshotter())
	require.NoError(t, restarted.Load(false))
	assert.Equal(t, []types.Rule{rule}, restarted.Rules(ethBTC))
}

func TestStore_FlushPersistsChangesAfterFailedWrite(t *testing.T) {
	snapshotter := &failingSnapshotter{}
	s := New(snapshotter)
	require.NoError(t, s.Add(btcUSDC, types.Rule{Owner: alice, Threshold: 100}))

	snapshotter.fail = true
	assert.Error(t, s.Resolve(btcUSDC, 0, types.DirectionAbove))
	assert.Equal(t, types.DirectionUnresolved, snapshotter.doc["BTC"]["USDC"][0].Direction)

	snapshotter.fail = false
	require.NoError(t, s.Flush())
	assert.Equal(t, types.DirectionAbove, snapshotter.doc["BTC"]["USDC"][0].Direction)
}

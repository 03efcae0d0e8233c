package source_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mvpplanner/internal/cache"
	"mvpplanner/internal/config"
	"mvpplanner/internal/source"
	"mvpplanner/pkg/domain"
)

type failingProvider struct {
	failOn domain.CollectionName
}

func (f failingProvider) Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error) {
	if name == f.failOn {
		return nil, errors.New("upstream 502")
	}
	return []domain.Record{{"id": string(name)}}, nil
}

func TestFetchAllTreatsMissingCollectionsAsEmpty(t *testing.T) {
	p := source.NewStatic(domain.Snapshot{
		domain.CollectionClinicians: {{"clinician_id": "1"}},
	})
	snap, err := source.FetchAll(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, snap, len(domain.Collections()))
	assert.Len(t, snap[domain.CollectionClinicians], 1)
	assert.NotNil(t, snap[domain.CollectionWork])
	assert.Empty(t, snap[domain.CollectionWork])
}

func TestFetchAllFailsOnAnyError(t *testing.T) {
	_, err := source.FetchAll(context.Background(), failingProvider{failOn: domain.CollectionMeasures})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch measures")
}

func TestMirrorCopiesEveryCollection(t *testing.T) {
	src := source.NewStatic(domain.Snapshot{
		domain.CollectionMVPs:   {{"mvp_id": "G1"}, {"mvp_id": "G2"}},
		domain.CollectionConfig: {{"setting": "organization_name", "value": "Converse"}},
	})
	dst := source.NewStatic(nil)

	counts, err := source.Mirror(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.CollectionMVPs])
	assert.Equal(t, 0, counts[domain.CollectionClinicians])

	got, err := dst.Fetch(context.Background(), domain.CollectionMVPs)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	_, err = dst.Fetch(context.Background(), domain.CollectionWork)
	assert.NoError(t, err, "mirror stores empty collections too")
}

// snapshotSink records whole-snapshot writes and fails when err is set.
type snapshotSink struct {
	written domain.Snapshot
	err     error
}

func (s *snapshotSink) Store(context.Context, domain.CollectionName, []domain.Record) error {
	return errors.New("per-collection store must not be used")
}

func (s *snapshotSink) StoreAll(_ context.Context, snapshot domain.Snapshot) error {
	if s.err != nil {
		return s.err
	}
	s.written = snapshot
	return nil
}

func TestMirrorUsesSnapshotWriter(t *testing.T) {
	src := source.NewStatic(domain.Snapshot{domain.CollectionMVPs: {{"mvp_id": "G1"}}})

	sink := &snapshotSink{}
	counts, err := source.Mirror(context.Background(), src, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CollectionMVPs])
	assert.Len(t, sink.written, len(domain.Collections()))

	failing := &snapshotSink{err: errors.New("tx aborted")}
	counts, err = source.Mirror(context.Background(), src, failing)
	assert.ErrorContains(t, err, "store snapshot: tx aborted")
	assert.Nil(t, counts)
}

func TestCachedServesRepeatFetchesFromStore(t *testing.T) {
	upstream := source.NewStatic(domain.Snapshot{domain.CollectionMVPs: {{"mvp_id": "G1"}}})
	cached := source.NewCached(upstream, cache.NewMemoryStore(), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.Fetch(ctx, domain.CollectionMVPs)
		require.NoError(t, err)
		assert.Equal(t, []domain.Record{{"mvp_id": "G1"}}, got)
	}
	assert.Equal(t, 1, upstream.Fetches(domain.CollectionMVPs))
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	upstream := source.NewStatic(nil)
	cached := source.NewCached(upstream, cache.NewMemoryStore(), time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := cached.Fetch(context.Background(), domain.CollectionWork)
		assert.ErrorIs(t, err, source.ErrNotFound)
	}
	assert.Equal(t, 2, upstream.Fetches(domain.CollectionWork))
}

func TestCachedWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Source.Driver = config.SourceMemory
	cfg.Cache.Driver = config.CacheRedis
	cfg.Cache.RedisAddr = mr.Addr()

	h, err := source.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	_, err = h.Provider.Fetch(context.Background(), domain.CollectionMVPs)
	assert.ErrorIs(t, err, source.ErrNotFound)
	assert.Empty(t, mr.Keys(), "misses are not cached")
}

func TestOpenWorkbookAndMirrorToSQLite(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	wbPath := filepath.Join(dir, "plan.xlsx")
	wb, closeWB, err := source.OpenWriter(ctx, source.DriverWorkbook, wbPath)
	require.NoError(t, err)
	defer func() { _ = closeWB() }()
	require.NoError(t, wb.Store(ctx, domain.CollectionClinicians, []domain.Record{{"clinician_id": "1", "is_active": "Y"}}))

	cfg := config.Default()
	cfg.Source.Driver = config.SourceWorkbook
	cfg.Source.WorkbookPath = wbPath
	h, err := source.Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = h.Close() }()
	assert.Equal(t, source.DriverWorkbook, h.Driver)

	dbPath := filepath.Join(dir, "mirror.db")
	dst, closeDB, err := source.OpenWriter(ctx, source.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer func() { _ = closeDB() }()

	counts, err := source.Mirror(ctx, h.Provider, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CollectionClinicians])

	cfg.Source.Driver = config.SourceSQLite
	cfg.Source.SQLitePath = dbPath
	mirrored, err := source.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = mirrored.Close() }()
	snap, err := source.FetchAll(ctx, mirrored.Provider)
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{"clinician_id": "1", "is_active": "Y"}}, snap[domain.CollectionClinicians])
}

func TestOpenRejectsUnknownDrivers(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Driver = "ftp"
	_, err := source.Open(context.Background(), cfg, nil)
	assert.Error(t, err)

	_, _, err = source.OpenWriter(context.Background(), source.DriverSheets, "")
	assert.Error(t, err)
}

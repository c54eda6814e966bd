package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"sheetbridge/core/cache"
	"sheetbridge/core/quota"
	"sheetbridge/core/remote"
	remotemocks "sheetbridge/core/remote/mocks"
	"sheetbridge/feature/sheets/batch"
	"sheetbridge/feature/sheets/diff"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRemote serves a mutable in-memory resource and accepts every batch.
type stubRemote struct {
	mu      sync.Mutex
	units   []remote.Unit
	content map[string]string
	batches int
}

func newStubRemote() *stubRemote {
	return &stubRemote{content: map[string]string{}}
}

func (s *stubRemote) set(unitID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.units {
		if u.ID == unitID {
			s.content[unitID] = content
			return
		}
	}
	s.units = append(s.units, remote.Unit{ID: unitID, Title: unitID, Index: len(s.units)})
	s.content[unitID] = content
}

func (s *stubRemote) ListUnits(ctx context.Context, resourceID string) ([]remote.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Unit, len(s.units))
	copy(out, s.units)
	return out, nil
}

func (s *stubRemote) FetchUnit(ctx context.Context, resourceID, unitID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte(s.content[unitID]), nil
}

func (s *stubRemote) BatchUpdate(ctx context.Context, resourceID string, ops []remote.SubOperation) (*remote.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	return &remote.BatchResult{Applied: len(ops)}, nil
}

func (s *stubRemote) batchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// memStore is an in-memory storage.Client for archive round-trips.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return true, nil
}

func (m *memStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return nil
}

func (m *memStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return minio.UploadInfo{Size: int64(len(data))}, nil
}

func (m *memStore) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "key not found"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func newTestService(t *testing.T, r remote.Client, store *memStore) *Service {
	t.Helper()
	cfg := Config{Parallelism: 4, MaxAttempts: 2, BackoffMS: 1, SnapshotPrefix: "baselines"}
	quotaCfg := quota.Config{
		RequestsPerWindow: 1000,
		WindowSeconds:     60,
		FailureThreshold:  100,
		CooldownSeconds:   1,
	}
	cacheCfg := cache.Config{MaxBytes: 1 << 20, TTLSeconds: 60}
	remoteCfg := remote.Config{BatchCap: 10}

	if store == nil {
		svc, err := BuildService(r, nil, nil, zap.NewNop(), cfg, quotaCfg, cacheCfg, remoteCfg, "snapshots")
		require.NoError(t, err)
		return svc
	}
	svc, err := BuildService(r, store, nil, zap.NewNop(), cfg, quotaCfg, cacheCfg, remoteCfg, "snapshots")
	require.NoError(t, err)
	return svc
}

func testIntent(resource, payload string) batch.Intent {
	return batch.Intent{
		ResourceID: resource,
		Kind:       batch.KindUpdate,
		Payload:    json.RawMessage(`"` + payload + `"`),
	}
}

func TestService_ApplyExecutesIntents(t *testing.T) {
	r := newStubRemote()
	svc := newTestService(t, r, nil)

	report, err := svc.Apply(context.Background(), []batch.Intent{
		testIntent("S1", "p1"),
		testIntent("S1", "p2"),
	})
	require.NoError(t, err)

	// Both intents fit one batch under the cap.
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, r.batchCalls())
}

func TestService_DiffAdvancesBaseline(t *testing.T) {
	r := newStubRemote()
	r.set("u1", "alpha")
	r.set("u2", "beta")
	store := newMemStore()
	svc := newTestService(t, r, store)

	// First diff: no baseline, everything reported as added.
	set, _, err := svc.Diff(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, diff.ChangeAdded, set[0].Kind)

	// Second diff: the saved baseline matches, nothing to report.
	set, _, err = svc.Diff(context.Background(), "S1")
	require.NoError(t, err)
	assert.Empty(t, set)

	// Edit one unit; only that unit shows up.
	r.set("u2", "beta-edited")
	set, _, err = svc.Diff(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "u2", set[0].UnitID)
	assert.Equal(t, diff.ChangeModified, set[0].Kind)
}

func TestService_DiffWithoutArchive(t *testing.T) {
	r := newStubRemote()
	r.set("u1", "alpha")
	svc := newTestService(t, r, nil)

	// No archive means no baseline: every run is an initial sync.
	for i := 0; i < 2; i++ {
		set, snap, err := svc.Diff(context.Background(), "S1")
		require.NoError(t, err)
		require.Len(t, set, 1)
		assert.Equal(t, diff.ChangeAdded, set[0].Kind)
		assert.WithinDuration(t, time.Now(), snap.TakenAt, time.Minute)
	}
}

func TestService_DiffPropagatesRemoteError(t *testing.T) {
	client := new(remotemocks.Client)
	client.On("ListUnits", mock.Anything, "gone").
		Return(nil, &remote.PermanentError{StatusCode: 404, NotFound: true, Message: "no such spreadsheet"})
	svc := newTestService(t, client, nil)

	_, _, err := svc.Diff(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))

	var derr *diff.Error
	assert.ErrorAs(t, err, &derr)
	client.AssertExpectations(t)
}

func TestService_HistoryWithoutJournal(t *testing.T) {
	svc := newTestService(t, newStubRemote(), nil)

	entries, err := svc.History(context.Background(), "S1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

package diff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"sheetbridge/core/storage"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/singleflight"
)

// Archive persists snapshot baselines in object storage, one object per
// resource. Loads are deduplicated with singleflight so concurrent diffs of
// the same resource hit storage once.
type Archive struct {
	client storage.Client
	bucket string
	prefix string
	sf     singleflight.Group
}

// NewArchive creates an archive rooted at bucket/prefix.
func NewArchive(client storage.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix}
}

// EnsureBucket creates the archive bucket if it does not exist yet.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Save persists snap as the new baseline for its resource, replacing any
// previous one.
func (a *Archive) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", snap.ResourceID, err)
	}

	_, err = a.client.PutObject(ctx, a.bucket, a.objectName(snap.ResourceID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", snap.ResourceID, err)
	}
	return nil
}

// Load returns the stored baseline for resourceID, or nil when the resource
// has never been snapshotted. Callers must treat the result as read-only;
// concurrent loaders may share one instance.
func (a *Archive) Load(ctx context.Context, resourceID string) (*Snapshot, error) {
	v, err, _ := a.sf.Do(resourceID, func() (any, error) {
		return a.load(ctx, resourceID)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*Snapshot), nil
}

func (a *Archive) load(ctx context.Context, resourceID string) (any, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, a.objectName(resourceID), minio.GetObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open snapshot for %s: %w", resourceID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// Minio reports a missing object lazily, on the first read.
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", resourceID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", resourceID, err)
	}
	return &snap, nil
}

func (a *Archive) objectName(resourceID string) string {
	if a.prefix == "" {
		return resourceID + ".json"
	}
	return a.prefix + "/" + resourceID + ".json"
}

func isMissing(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

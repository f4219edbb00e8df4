package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps document files in an S3-compatible bucket, for
// deployments that cannot depend on a public pinning service. Objects are
// named by the sha256 of their content so the same file always resolves to
// the same hash, matching the CID-addressing contract of Store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connect: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Upload buffers the payload to hash it, then stores it under its digest.
// Re-uploading identical content overwrites the same object and returns the
// same hash.
func (m *MinioStore) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	h := sha256.New()
	body := io.TeeReader(r, h)

	// Stage under a temp name first; the content hash is only known after
	// the stream has been consumed.
	staging := "staging/" + filename
	if _, err := m.client.PutObject(ctx, m.bucket, staging, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("minio upload: %w", err)
	}
	cid := hex.EncodeToString(h.Sum(nil))

	src := minio.CopySrcOptions{Bucket: m.bucket, Object: staging}
	dst := minio.CopyDestOptions{Bucket: m.bucket, Object: cid}
	if _, err := m.client.CopyObject(ctx, dst, src); err != nil {
		return "", fmt.Errorf("minio finalize: %w", err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, staging, minio.RemoveObjectOptions{}); err != nil {
		return "", fmt.Errorf("minio staging cleanup: %w", err)
	}
	return cid, nil
}

func (m *MinioStore) Download(ctx context.Context, cid string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, cid, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio fetch %s: %w", cid, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("minio fetch %s: %w", cid, err)
	}
	return &Object{Body: obj, ContentType: stat.ContentType, Size: stat.Size}, nil
}

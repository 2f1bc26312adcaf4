package testutil

import (
	"context"
	"fmt"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// createBucket makes the test bucket; NewS3Storage expects it to exist.
func createBucket(ctx context.Context, endpoint string) error {
	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	if err != nil {
		return fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, testBucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, testBucket, miniogo.MakeBucketOptions{})
}

// VerifyLogArchived loads an archived talk log and returns it decompressed
func VerifyLogArchived(t *testing.T, env *TestEnvironment, key string) []byte {
	t.Helper()

	raw, err := env.Storage.LoadLog(env.Ctx, key)
	if err != nil {
		t.Fatalf("failed to load archived log %s: %v", key, err)
	}
	return raw
}

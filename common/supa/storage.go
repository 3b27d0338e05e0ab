package supa

import (
	"bytes"
	"context"
	"fmt"

	"podmarket/common/helpers"

	storage_go "github.com/supabase-community/storage-go"
)

// Upload stores data in bucket at path and returns the object's public URL.
func Upload(ctx context.Context, bucket string, path string, data []byte, contentType string) (string, error) {
	client, err := Client(ctx)
	if err != nil {
		return "", err
	}
	upsert := false
	_, err = client.Storage.UploadFile(bucket, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: helpers.StringPtr(contentType),
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s/%s to Supabase storage:\n>>> %w", bucket, path, err)
	}
	return client.Storage.GetPublicUrl(bucket, path).SignedURL, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// fetchS3Object fetches the PDF named by an s3://bucket/key URL, using
// the same minio-go client construction as libaf/s3.Credentials'
// NewMinioClient, but reading endpoint/credentials from the environment
// rather than a Credentials struct, since the CLI has no config file.
func fetchS3Object(ctx context.Context, s3URL string) ([]byte, error) {
	bucket, key, err := parseS3URL(s3URL)
	if err != nil {
		return nil, err
	}

	endpoint := os.Getenv("DOCMD_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	sessionToken := os.Getenv("AWS_SESSION_TOKEN")
	secure := os.Getenv("DOCMD_S3_INSECURE") == ""

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, sessionToken),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("docmd: creating S3 client for %s: %w", endpoint, err)
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("docmd: fetching s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("docmd: reading s3://%s/%s: %w", bucket, key, err)
	}
	return content, nil
}

func parseS3URL(raw string) (bucket, key string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("docmd: invalid --s3 URL %q: %w", raw, err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("docmd: --s3 URL must use the s3:// scheme, got %q", raw)
	}
	bucket = parsed.Host
	key = strings.TrimPrefix(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("docmd: --s3 URL must be s3://bucket/key, got %q", raw)
	}
	return bucket, key, nil
}

package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

// S3Store is a KeyValueStore keeping one object per key in a single bucket.
type S3Store struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

func NewS3Store(endpoint, bucketName, accessKey, secretKey, prefix string, useSsl bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3Store{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// NewS3Backend creates a size index stored in an S3 compatible bucket.
func NewS3Backend(endpoint, bucketName, accessKey, secretKey, prefix string, useSsl bool, namespace string) (*index.KVBackend, error) {
	store, err := NewS3Store(endpoint, bucketName, accessKey, secretKey, prefix, useSsl)
	if err != nil {
		return nil, err
	}

	return index.NewKVBackend(store, namespace), nil
}

// Returns the identifier name defined for this store
func (*S3Store) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and verifies that the bucket exists.
func (ss *S3Store) Open(ctx context.Context) error {
	exists, err := ss.client.BucketExists(ctx, ss.bucketName)
	if err != nil {
		return fmt.Errorf("%w: %v", data.ErrIndexUnavailable, err)
	}

	if !exists {
		return fmt.Errorf("%w: bucket '%s' does not exist", data.ErrIndexUnavailable, ss.bucketName)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this store.
func (ss *S3Store) Close(ctx context.Context) error {
	return nil
}

func (ss *S3Store) objectName(key string) string {
	return ss.prefix + strings.TrimPrefix(key, "/")
}

func (ss *S3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	object, err := ss.client.GetObject(ctx, ss.bucketName, ss.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer object.Close()

	// GetObject is lazy, missing objects surface on the first read
	value, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}

	return value, true, nil
}

func (ss *S3Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := ss.client.PutObject(ctx, ss.bucketName, ss.objectName(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})

	return err
}

func (ss *S3Store) Delete(ctx context.Context, key string) error {
	return ss.client.RemoveObject(ctx, ss.bucketName, ss.objectName(key), minio.RemoveObjectOptions{})
}

func (ss *S3Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range ss.client.ListObjects(ctx, ss.bucketName, minio.ListObjectsOptions{
		Prefix:    ss.objectName(prefix),
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		keys = append(keys, strings.TrimPrefix(object.Key, ss.prefix))
	}

	return keys, nil
}

func (ss *S3Store) DeleteTree(ctx context.Context, prefix string) error {
	objects := ss.client.ListObjects(ctx, ss.bucketName, minio.ListObjectsOptions{
		Prefix:    ss.objectName(prefix),
		Recursive: true,
	})

	errs := &data.Errors{}
	for result := range ss.client.RemoveObjects(ctx, ss.bucketName, objects, minio.RemoveObjectsOptions{}) {
		errs.Add(result.Err)
	}

	return errs.Errors()
}

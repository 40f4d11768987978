// Package minio provides a MinIO/S3 implementation of filestore.Store.
//
// The client always uses path-style addressing so that any S3-compatible
// endpoint works, and always carries an explicit region so presigning stays
// a local operation.
//
// Usage:
//
//	gw, err := filestore.NewGateway(minio.Factory(log), cfg, log)
package minio

import (
	"context"
	"time"

	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/logger"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	cfg    filestore.Config
	log    *logger.Logger
}

// New builds a Driver for cfg. No network call is made.
func New(cfg filestore.Config, log *logger.Logger) (*Driver, error) {
	if log == nil {
		log = logger.Nop()
	}

	host, secure, err := filestore.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := miniogo.New(host, &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.RegionOrDefault(),
		BucketLookup: miniogo.BucketLookupPath,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to create storage client", err)
	}

	return &Driver{client: client, cfg: cfg, log: log}, nil
}

// Factory returns a filestore.Factory producing Drivers that log to log.
func Factory(log *logger.Logger) filestore.Factory {
	return func(cfg filestore.Config) (filestore.Store, error) {
		return New(cfg, log)
	}
}

// --- filestore.Store implementation ---

// ListObjects returns up to filestore.PageSize objects under prefix. Keys are
// listed recursively, without a delimiter, so "directory marker" objects
// come back like any other key.
func (d *Driver) ListObjects(ctx context.Context, bucket, prefix string) ([]filestore.ObjectInfo, error) {
	// Cancelling stops the SDK's background lister, which would otherwise
	// keep following IsTruncated.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listOpts := miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   filestore.PageSize,
	}

	results := make([]filestore.ObjectInfo, 0)
	for obj := range d.client.ListObjects(ctx, bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, errs.ErrKindRemoteList, "failed to list objects")
		}

		results = append(results, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})

		if len(results) >= filestore.PageSize {
			d.log.WarnWith("listing truncated", map[string]interface{}{
				"bucket": bucket,
				"prefix": prefix,
				"limit":  filestore.PageSize,
			})
			break
		}
	}

	return results, nil
}

// PresignGetURL returns a time-limited download URL for the object. The URL
// is signed locally with the configured key pair.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if !d.cfg.HasCredentials() {
		return "", errs.New(errs.ErrKindSigning, "no storage credentials configured")
	}
	if key == "" {
		return "", errs.New(errs.ErrKindSigning, "object key is empty")
	}

	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, errs.ErrKindSigning, "failed to generate presigned URL")
	}
	return u.String(), nil
}

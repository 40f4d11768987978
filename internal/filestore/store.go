// Package filestore defines the storage contract bucketlens browses through,
// and the Gateway that holds the one active store.
//
// Providers (currently MinIO/S3) implement Store. Callers depend only on this
// package, never on a specific provider package.
//
// Usage:
//
//	gw, err := filestore.NewGateway(minio.Factory(log), cfg, log)
//	if err != nil { ... }
//
//	sess := gw.Acquire()
//	objects, err := sess.ListObjects(ctx, sess.Config.Bucket, sess.Config.Prefix)
package filestore

import (
	"context"
	"time"
)

// PageSize is the most objects a single listing returns. It caps the object
// count, not the number of remote calls: a store whose own page limit is
// smaller is paged until PageSize objects or the end of the listing.
const PageSize = 1000

// Store is the interface a storage provider implements.
type Store interface {
	// ListObjects returns the objects in bucket whose key starts with prefix,
	// at most PageSize of them.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// PresignGetURL returns a time-limited URL that downloads the object at
	// key without further credentials. It signs locally and never fetches
	// the object.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Factory builds a Store for a configuration.
type Factory func(cfg Config) (Store, error)

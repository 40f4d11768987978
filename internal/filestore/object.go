package filestore

import "time"

// ObjectInfo describes a single object as the remote store reports it.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "pics/a.jpg").
	Key string

	// Size is the byte size of the object.
	Size int64

	// LastModified is when the object was last written, per the remote.
	LastModified time.Time
}

// Package listing turns bucket/prefix queries into typed, sorted listings
// and object keys into signed access grants.
package listing

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/logger"
	"github.com/koustreak/bucketlens/internal/media"
)

const (
	// GrantTTL is how long an issued URL stays valid.
	GrantTTL = 24 * time.Hour

	// DefaultTimeout bounds each remote call when the caller sets no
	// earlier deadline.
	DefaultTimeout = 30 * time.Second

	// NoBucketNotice explains an empty listing when no bucket is known.
	NoBucketNotice = "Bucket not specified"
)

// Sessions hands out the active storage session.
type Sessions interface {
	Acquire() *filestore.Session
}

// Entry is one object of a listing.
type Entry struct {
	Key          string         `json:"key"`
	Name         string         `json:"name"`
	Size         int64          `json:"size"`
	LastModified time.Time      `json:"lastModified"`
	Type         media.Category `json:"type"`
}

// Listing is the result of List. Notice is set, and Entries empty, when no
// bucket could be resolved; that is a normal state, not an error.
type Listing struct {
	Bucket  string
	Prefix  string
	Entries []Entry
	Notice  string
}

// Grant is a signed, time-limited URL for one object.
type Grant struct {
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	Type      media.Category `json:"type"`
	URL       string         `json:"url"`
	Bucket    string         `json:"bucket"`
	ExpiresAt time.Time      `json:"-"`
}

// Service orchestrates the storage gateway and the media classifier.
type Service struct {
	sessions Sessions
	timeout  time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Service reading sessions from sessions.
func New(sessions Sessions, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		timeout:  DefaultTimeout,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the objects under prefix in bucket, newest first. Empty
// bucket or prefix fall back to the session's defaults.
func (s *Service) List(ctx context.Context, bucket, prefix string) (*Listing, error) {
	sess := s.sessions.Acquire()
	bucket = firstNonEmpty(bucket, sess.Config.Bucket)
	prefix = firstNonEmpty(prefix, sess.Config.Prefix)

	if bucket == "" {
		return &Listing{Prefix: prefix, Entries: []Entry{}, Notice: NoBucketNotice}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	objects, err := sess.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		name := baseName(obj.Key)
		if name == "" {
			continue
		}
		entries = append(entries, Entry{
			Key:          obj.Key,
			Name:         name,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			Type:         media.Classify(obj.Key),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})

	s.log.With().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("objects", len(entries)).
		Dur("elapsed", s.now().Sub(start)).
		Logger().
		Debug("listing built")

	return &Listing{Bucket: bucket, Prefix: prefix, Entries: entries}, nil
}

// Grant issues a GrantTTL URL for the object at rawKey. rawKey is
// percent-encoded and is decoded exactly once here.
func (s *Service) Grant(ctx context.Context, bucket, rawKey string) (*Grant, error) {
	sess := s.sessions.Acquire()
	bucket = firstNonEmpty(bucket, sess.Config.Bucket)
	if bucket == "" {
		return nil, errs.New(errs.ErrKindBucketRequired, NoBucketNotice)
	}

	if rawKey == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "object key is required")
	}
	key, err := url.PathUnescape(rawKey)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSigning, "malformed object key", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	issued := s.now()
	signed, err := sess.PresignGetURL(ctx, bucket, key, GrantTTL)
	if err != nil {
		return nil, err
	}

	return &Grant{
		Key:       key,
		Name:      baseName(key),
		Type:      media.Classify(key),
		URL:       signed,
		Bucket:    bucket,
		ExpiresAt: issued.Add(GrantTTL),
	}, nil
}

// baseName is the text after the last "/", empty for keys ending in "/".
func baseName(key string) string {
	return key[strings.LastIndexByte(key, '/')+1:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

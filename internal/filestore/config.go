package filestore

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Config holds everything needed to reach a bucket on an S3-compatible store.
// Path-style addressing is always used; there is no switch for it.
type Config struct {
	// Region of the bucket. Empty means DefaultRegion.
	Region string

	// AccessKey is the access key ID.
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// Endpoint is an optional custom endpoint, either "https://host:port"
	// or a bare "host:port". Empty means AWS S3.
	Endpoint string

	// Bucket is the default bucket for requests that do not name one.
	Bucket string

	// Prefix is the default key prefix for listings.
	Prefix string
}

// HasCredentials reports whether both halves of the key pair are set.
func (c Config) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// RegionOrDefault returns Region, or DefaultRegion when it is empty.
func (c Config) RegionOrDefault() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}

// SameConnection reports whether c and o would produce an identical client.
// Bucket and Prefix are request defaults and do not affect the client.
func (c Config) SameConnection(o Config) bool {
	return c.RegionOrDefault() == o.RegionOrDefault() &&
		c.AccessKey == o.AccessKey &&
		c.SecretKey == o.SecretKey &&
		c.Endpoint == o.Endpoint
}

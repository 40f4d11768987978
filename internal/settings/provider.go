// Package settings holds the storage configuration provider and the process
// settings of bucketlens.
//
// Storage configuration is an env-style key/value store: values come from the
// process environment, then from an .env file, then from defaults. Persist
// writes the full snapshot back to the .env file so it is picked up on the
// next start.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/logger"
	"github.com/spf13/viper"
)

// Keys of the env-style store.
const (
	KeyAccessKey = "AWS_ACCESS_KEY_ID"
	KeySecretKey = "AWS_SECRET_ACCESS_KEY"
	KeyEndpoint  = "AWS_ENDPOINT"
	KeyRegion    = "AWS_REGION"
	KeyBucket    = "S3_BUCKET"
	KeyPrefix    = "S3_PREFIX"
	KeyPort      = "PORT"

	DefaultPort = "3000"
)

var keys = []string{KeyAccessKey, KeySecretKey, KeyEndpoint, KeyRegion, KeyBucket, KeyPrefix, KeyPort}

// Update is a partial change to the in-memory configuration. Nil fields are
// left alone.
type Update struct {
	Bucket *string
	Prefix *string
}

// Provider supplies and stores the storage configuration.
type Provider interface {
	// Get returns the current in-memory snapshot.
	Get() filestore.Config

	// Set merges u into the in-memory snapshot without persisting it.
	Set(u Update) (filestore.Config, error)

	// Persist durably writes cfg, then makes it the in-memory snapshot.
	Persist(cfg filestore.Config) error
}

// Subscriber is told about every new snapshot.
type Subscriber func(filestore.Config) error

// EnvProvider is a Provider backed by an .env file.
type EnvProvider struct {
	path string
	log  *logger.Logger

	mu          sync.RWMutex
	cfg         filestore.Config
	port        string
	subscribers []Subscriber
}

// Load reads the storage configuration from the environment and the .env
// file at path. A missing file is not an error.
func Load(path string, log *logger.Logger) (*EnvProvider, error) {
	if log == nil {
		log = logger.Nop()
	}

	v := viper.New()
	v.SetDefault(KeyRegion, filestore.DefaultRegion)
	v.SetDefault(KeyPort, DefaultPort)

	fileVals, err := godotenv.Read(path)
	switch {
	case err == nil:
		m := make(map[string]interface{}, len(fileVals))
		for k, val := range fileVals {
			m[k] = val
		}
		if err := v.MergeConfigMap(m); err != nil {
			return nil, errs.Wrap(errs.ErrKindIO, "failed to load "+path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		log.Info("no env file at " + path + ", using environment and defaults")
	default:
		return nil, errs.Wrap(errs.ErrKindIO, "failed to read "+path, err)
	}

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, errs.Wrap(errs.ErrKindIO, "failed to bind "+k, err)
		}
	}

	p := &EnvProvider{
		path: path,
		log:  log,
		cfg: filestore.Config{
			Region:    orDefault(v.GetString(KeyRegion), filestore.DefaultRegion),
			AccessKey: v.GetString(KeyAccessKey),
			SecretKey: v.GetString(KeySecretKey),
			Endpoint:  v.GetString(KeyEndpoint),
			Bucket:    v.GetString(KeyBucket),
			Prefix:    v.GetString(KeyPrefix),
		},
		port: orDefault(v.GetString(KeyPort), DefaultPort),
	}
	return p, nil
}

// Subscribe registers fn to see every new snapshot before Set or Persist
// commits it. Subscribers run in registration order; the first error stops
// the chain, aborts the commit and is returned to the caller.
func (p *EnvProvider) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Get returns the current snapshot.
func (p *EnvProvider) Get() filestore.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Port returns the configured listen port.
func (p *EnvProvider) Port() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.port
}

// Path returns the .env file location.
func (p *EnvProvider) Path() string {
	return p.path
}

// Set merges u into memory only; credentials are never touched.
func (p *EnvProvider) Set(u Update) (filestore.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.cfg
	if u.Bucket != nil {
		next.Bucket = *u.Bucket
	}
	if u.Prefix != nil {
		next.Prefix = *u.Prefix
	}

	if err := p.commit(next); err != nil {
		return p.cfg, err
	}
	return next, nil
}

// Persist writes every field of cfg to the .env file and makes cfg current.
// The file is staged first and only moved into place once every subscriber
// has accepted cfg, so a rejected configuration never reaches disk. If the
// final rename fails, subscribers are handed the previous snapshot again.
func (p *EnvProvider) Persist(cfg filestore.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	staged, err := stageEnvFile(p.path, p.envValues(cfg))
	if err != nil {
		return p.saveFailed(err)
	}
	defer os.Remove(staged)

	if err := p.notify(cfg); err != nil {
		return err
	}

	if err := os.Rename(staged, p.path); err != nil {
		if rbErr := p.notify(p.cfg); rbErr != nil {
			p.log.ErrorWith("failed to restore previous configuration", rbErr, nil)
		}
		return p.saveFailed(err)
	}

	p.cfg = cfg
	p.log.InfoWith("configuration saved", map[string]interface{}{
		"path":     p.path,
		"bucket":   cfg.Bucket,
		"endpoint": cfg.Endpoint,
		"region":   cfg.Region,
	})
	return nil
}

func (p *EnvProvider) saveFailed(err error) error {
	p.log.ErrorWith("failed to save configuration", err, map[string]interface{}{"path": p.path})
	return errs.Wrap(errs.ErrKindIO, "Failed to save configuration", err)
}

// commit must be called with p.mu held.
func (p *EnvProvider) commit(next filestore.Config) error {
	if err := p.notify(next); err != nil {
		return err
	}
	p.cfg = next
	return nil
}

// notify runs the subscribers in order and stops at the first error.
func (p *EnvProvider) notify(cfg filestore.Config) error {
	for _, fn := range p.subscribers {
		if err := fn(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (p *EnvProvider) envValues(cfg filestore.Config) map[string]string {
	return map[string]string{
		KeyAccessKey: cfg.AccessKey,
		KeySecretKey: cfg.SecretKey,
		KeyBucket:    cfg.Bucket,
		KeyPrefix:    cfg.Prefix,
		KeyEndpoint:  cfg.Endpoint,
		KeyRegion:    cfg.Region,
		KeyPort:      p.port,
	}
}

// stageEnvFile writes vals next to path, one double-quoted KEY="value" line
// per key in sorted order, mode 0600, and returns the temporary file name.
// The caller renames it over path or removes it.
func stageEnvFile(path string, vals map[string]string) (string, error) {
	names := make([]string, 0, len(vals))
	for k := range vals {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# bucketlens storage configuration\n")
	for _, k := range names {
		fmt.Fprintf(&b, "%s=\"%s\"\n", k, escape(vals[k]))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".env-*")
	if err != nil {
		return "", err
	}

	_, err = tmp.WriteString(b.String())
	if err == nil {
		err = tmp.Chmod(0o600)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// escape quotes a value the way godotenv unquotes double-quoted values.
// godotenv.Marshal is not used because it rewrites numeric values through
// strconv.Atoi, which drops leading zeros.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	`"`, `\"`,
	"!", `\!`,
	"$", `\$`,
	"`", "\\`",
)

func escape(v string) string {
	return escaper.Replace(v)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

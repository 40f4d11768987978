package settings

import (
	"os"
	"time"

	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/logger"
	"go.yaml.in/yaml/v3"
)

// Server holds process settings. They are read once at startup and, unlike
// the storage configuration, never change at runtime.
type Server struct {
	// Listen is the address to serve on. Empty means ":" + the PORT key of
	// the storage configuration.
	Listen string `yaml:"listen"`

	// StaticDir is served at "/" when it exists.
	StaticDir string `yaml:"static_dir"`

	// EnvFile is where the storage configuration is read from and saved to.
	EnvFile string `yaml:"env_file"`

	// Timeout bounds every remote storage call.
	Timeout time.Duration `yaml:"timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Log logger.Config `yaml:"log"`
}

// DefaultServer returns the settings used when no file is given.
func DefaultServer() *Server {
	return &Server{
		StaticDir:       "public",
		EnvFile:         ".env",
		Timeout:         30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
	}
}

// LoadServer reads YAML settings from path over DefaultServer. An empty path
// returns the defaults.
func LoadServer(path string) (*Server, error) {
	s := DefaultServer()
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "failed to read settings file "+path, err)
	}
	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse settings file "+path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings the server cannot run with.
func (s *Server) Validate() error {
	if s.Timeout <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "shutdown_timeout must be positive")
	}
	if s.EnvFile == "" {
		return errs.New(errs.ErrKindInvalidInput, "env_file is required")
	}
	return nil
}

// Addr returns Listen, or ":" + port when Listen is empty.
func (s *Server) Addr(port string) string {
	if s.Listen != "" {
		return s.Listen
	}
	return ":" + port
}

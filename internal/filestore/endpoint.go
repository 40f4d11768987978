package filestore

import (
	"net"
	"net/url"
	"strings"

	"github.com/koustreak/bucketlens/internal/errs"
)

// AWSEndpoint is used when no custom endpoint is configured.
const AWSEndpoint = "s3.amazonaws.com"

// ParseEndpoint splits a configured endpoint into host[:port] and whether TLS
// is used. "https://h:p" and "http://h:p" decide TLS by scheme; a bare "h" or
// "h:p" uses TLS unless it points at the local machine. Other schemes are
// invalid input.
func ParseEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AWSEndpoint, true, nil
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, errs.Wrap(errs.ErrKindInvalidInput, "invalid storage endpoint", err)
		}
		if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", false, errs.New(errs.ErrKindInvalidInput, "invalid storage endpoint "+raw)
		}
		return u.Host, u.Scheme == "https", nil
	}

	host := strings.TrimSuffix(raw, "/")
	if host == "" || strings.ContainsAny(host, " /?#@") {
		return "", false, errs.New(errs.ErrKindInvalidInput, "invalid storage endpoint "+raw)
	}
	return host, !isLocal(host), nil
}

func isLocal(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

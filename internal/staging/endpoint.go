package staging

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	homedir "github.com/mitchellh/go-homedir"
)

// Protocol identifies the transfer protocol of a staging endpoint.
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
)

// AuthMode restricts the credential cascade to a single method.
// The empty string means "try everything in order".
type AuthMode string

const (
	AuthModeAgent    AuthMode = "agent"
	AuthModeKeyfile  AuthMode = "keyfile"
	AuthModePassword AuthMode = "password"
)

// defaultIdentityFiles are probed in order when no --identity is given.
var defaultIdentityFiles = []string{"id_rsa", "id_dsa", "identity"}

// Endpoint describes a remote staging location. It is assembled from a
// connection URL and/or explicit configuration, with explicit values winning,
// and must not change once a connection has been opened against it.
type Endpoint struct {
	Protocol       Protocol
	Host           string
	Port           int
	User           string
	Password       string
	IdentityFile   string
	AuthMode       AuthMode
	BaseDir        string
	Subdirectory   string
	KnownHostsFile string
}

// ParseURL builds an Endpoint from a connection URL of the form
// scheme://[user[:pass]@]host[:port]/path.
func ParseURL(raw string) (*Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing staging URL: %w", err)
	}

	proto := Protocol(u.Scheme)
	if proto != ProtocolFTP && proto != ProtocolSFTP {
		return nil, fmt.Errorf("unsupported staging protocol %q (want ftp or sftp)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("staging URL %q has no host", raw)
	}

	ep := &Endpoint{
		Protocol: proto,
		Host:     u.Hostname(),
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in staging URL: %w", err)
		}
		ep.Port = port
	}
	if u.User != nil {
		ep.User = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			ep.Password = pass
		}
	}
	if len(u.Path) > 1 {
		ep.BaseDir = u.Path
	}
	return ep, nil
}

// Overlay applies the non-zero fields of o on top of e. Explicit switches and
// config values always override URL-derived ones.
func (e *Endpoint) Overlay(o Endpoint) {
	if o.Protocol != "" {
		e.Protocol = o.Protocol
	}
	if o.Host != "" {
		e.Host = o.Host
	}
	if o.Port != 0 {
		e.Port = o.Port
	}
	if o.User != "" {
		e.User = o.User
	}
	if o.Password != "" {
		e.Password = o.Password
	}
	if o.IdentityFile != "" {
		e.IdentityFile = o.IdentityFile
	}
	if o.AuthMode != "" {
		e.AuthMode = o.AuthMode
	}
	if o.BaseDir != "" {
		e.BaseDir = o.BaseDir
	}
	if o.Subdirectory != "" {
		e.Subdirectory = o.Subdirectory
	}
	if o.KnownHostsFile != "" {
		e.KnownHostsFile = o.KnownHostsFile
	}
}

// SupportsKeyAuth reports whether the endpoint's protocol can use key-based
// authentication. FTP has no native key auth, so its cascade is password only.
func (e *Endpoint) SupportsKeyAuth() bool {
	return e.Protocol == ProtocolSFTP
}

// Addr returns the host:port dial address, applying the protocol default port.
func (e *Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		if e.Protocol == ProtocolSFTP {
			port = 22
		} else {
			port = 21
		}
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

// URL synthesizes a display URL for the endpoint rooted at the given remote
// path. Passwords are never included.
func (e *Endpoint) URL(remotePath string) string {
	host := e.Host
	if e.User != "" {
		host = e.User + "@" + host
	}
	return fmt.Sprintf("%s://%s%s", e.Protocol, host, remotePath)
}

// ResolveIdentity returns the private key file to offer during key-based
// authentication. An explicit IdentityFile always wins; otherwise the
// conventional ~/.ssh candidates are probed in order and the first one that
// exists is used. An empty result with nil error means no identity file.
func (e *Endpoint) ResolveIdentity() (string, error) {
	if e.IdentityFile != "" {
		expanded, err := homedir.Expand(e.IdentityFile)
		if err != nil {
			return "", fmt.Errorf("expanding identity path: %w", err)
		}
		return expanded, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return probeIdentity(filepath.Join(home, ".ssh")), nil
}

// probeIdentity returns the first default identity file present in sshDir,
// or "" when none exists.
func probeIdentity(sshDir string) string {
	for _, name := range defaultIdentityFiles {
		candidate := filepath.Join(sshDir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

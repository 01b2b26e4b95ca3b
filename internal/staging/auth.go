package staging

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// PasswordSource supplies a secret on demand. Interactive sources prompt the
// user only when the value is actually needed.
type PasswordSource func() (string, error)

// StaticPassword returns a source that always yields value.
func StaticPassword(value string) PasswordSource {
	return func() (string, error) { return value, nil }
}

// MemoizedPassword wraps a source so the user is prompted at most once even
// when several attempts consume it.
func MemoizedPassword(src PasswordSource) PasswordSource {
	var (
		cached string
		done   bool
	)
	return func() (string, error) {
		if done {
			return cached, nil
		}
		value, err := src()
		if err != nil {
			return "", err
		}
		cached, done = value, true
		return cached, nil
	}
}

// Credential is one strategy in the authentication cascade. Each value is a
// pure description; invoking it yields either usable key material or a typed
// failure.
type Credential interface {
	// Description identifies the attempt in diagnostics.
	Description() string

	// AuthMethod produces the SSH authentication method for this attempt.
	AuthMethod() (ssh.AuthMethod, error)
}

// AgentKey is a single key currently loaded in a running SSH agent.
type AgentKey struct {
	Signer  ssh.Signer
	Comment string
}

func (c *AgentKey) Description() string {
	if c.Comment != "" {
		return fmt.Sprintf("agent key (%s)", c.Comment)
	}
	return "agent key"
}

func (c *AgentKey) AuthMethod() (ssh.AuthMethod, error) {
	return ssh.PublicKeys(c.Signer), nil
}

// PrivateKeyFile is an on-disk identity file, paired with a passphrase source
// that is consulted only when the key turns out to be encrypted.
type PrivateKeyFile struct {
	Path       string
	Passphrase PasswordSource
}

func (c *PrivateKeyFile) Description() string {
	return fmt.Sprintf("private key file %s", c.Path)
}

func (c *PrivateKeyFile) AuthMethod() (ssh.AuthMethod, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return ssh.PublicKeys(signer), nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	phrase, err := c.Passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(phrase))
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

// Password authenticates with no key material at all.
type Password struct {
	Source PasswordSource
}

func (c *Password) Description() string { return "password" }

func (c *Password) AuthMethod() (ssh.AuthMethod, error) {
	value, err := c.Source()
	if err != nil {
		return nil, err
	}
	return ssh.Password(value), nil
}

// value resolves the password for transports that take it directly (FTP).
func (c *Password) value() (string, error) { return c.Source() }

// Dialer opens a live transport for one concrete credential. The real
// implementation dials the network; tests substitute a scripted one.
type Dialer interface {
	DialSFTP(ep *Endpoint, auth ssh.AuthMethod) (Transport, error)
	DialFTP(ep *Endpoint, password string) (Transport, error)
}

// NetDialer is the production Dialer.
type NetDialer struct {
	Logger Logger
}

func (d *NetDialer) DialSFTP(ep *Endpoint, auth ssh.AuthMethod) (Transport, error) {
	logger := d.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return DialSFTP(ep, auth, logger)
}

func (d *NetDialer) DialFTP(ep *Endpoint, password string) (Transport, error) {
	return DialFTP(ep, password)
}

// Resolver turns an endpoint into an ordered list of credential attempts and
// opens a live connection with the first one that works.
type Resolver struct {
	endpoint *Endpoint
	dialer   Dialer
	password PasswordSource
	logger   Logger

	// agentKeys enumerates keys from a running agent; overridable in tests.
	agentKeys func() []Credential
	// identity resolves the identity file; overridable in tests.
	identity func() (string, error)
	// passphrase prompts for a key passphrase when one is needed.
	passphrase PasswordSource
}

// NewResolver creates a Resolver for ep. password supplies the password
// credential (explicit flag value or interactive prompt); passphrase supplies
// key passphrases on demand.
func NewResolver(ep *Endpoint, dialer Dialer, password, passphrase PasswordSource, logger Logger) *Resolver {
	if logger == nil {
		logger = NewNopLogger()
	}
	r := &Resolver{
		endpoint:   ep,
		dialer:     dialer,
		password:   MemoizedPassword(password),
		passphrase: MemoizedPassword(passphrase),
		logger:     logger,
	}
	r.agentKeys = r.loadAgentKeys
	r.identity = ep.ResolveIdentity
	return r
}

// Credentials builds the ordered attempt list for the endpoint: every key in
// a reachable agent, then the resolved identity file, then the password. An
// explicit authentication mode restricts the list to that method. Protocols
// without key auth get a password-only list.
func (r *Resolver) Credentials() ([]Credential, error) {
	passwordCred := &Password{Source: r.password}
	if !r.endpoint.SupportsKeyAuth() || r.endpoint.AuthMode == AuthModePassword {
		return []Credential{passwordCred}, nil
	}

	var creds []Credential
	if r.endpoint.AuthMode == "" || r.endpoint.AuthMode == AuthModeAgent {
		creds = append(creds, r.agentKeys()...)
	}
	if r.endpoint.AuthMode == "" || r.endpoint.AuthMode == AuthModeKeyfile {
		identity, err := r.identity()
		if err != nil {
			return nil, err
		}
		if identity != "" {
			creds = append(creds, &PrivateKeyFile{Path: identity, Passphrase: r.passphrase})
		}
	}
	if r.endpoint.AuthMode == "" {
		creds = append(creds, passwordCred)
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("authentication mode %q yielded no usable credentials", r.endpoint.AuthMode)
	}
	return creds, nil
}

// Open iterates the credential list in order, recording each failure, and
// returns a session built on the first attempt that succeeds. When every
// attempt fails the returned ConnectionError enumerates all of them.
func (r *Resolver) Open() (Transport, error) {
	creds, err := r.Credentials()
	if err != nil {
		return nil, err
	}

	var attempts []AttemptError
	for _, cred := range creds {
		r.logger.Debug("attempting authentication", "method", cred.Description())
		transport, err := r.try(cred)
		if err == nil {
			r.logger.Info("authenticated", "method", cred.Description(), "host", r.endpoint.Host)
			return transport, nil
		}
		attempts = append(attempts, AttemptError{Description: cred.Description(), Err: err})
	}
	return nil, &ConnectionError{Host: r.endpoint.Host, Attempts: attempts}
}

func (r *Resolver) try(cred Credential) (Transport, error) {
	if r.endpoint.Protocol == ProtocolFTP {
		pw, ok := cred.(*Password)
		if !ok {
			return nil, fmt.Errorf("ftp supports password authentication only")
		}
		value, err := pw.value()
		if err != nil {
			return nil, err
		}
		return r.dialer.DialFTP(r.endpoint, value)
	}

	auth, err := cred.AuthMethod()
	if err != nil {
		return nil, err
	}
	return r.dialer.DialSFTP(r.endpoint, auth)
}

// loadAgentKeys returns one credential per key held by a reachable SSH agent.
// An absent or unreachable agent contributes zero entries, not an error.
func (r *Resolver) loadAgentKeys() []Credential {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		r.logger.Debug("ssh agent unreachable", "socket", sock, "error", err)
		return nil
	}
	ag := agent.NewClient(conn)

	keys, err := ag.List()
	if err != nil {
		r.logger.Debug("listing agent keys failed", "error", err)
		return nil
	}
	signers, err := ag.Signers()
	if err != nil {
		r.logger.Debug("fetching agent signers failed", "error", err)
		return nil
	}

	creds := make([]Credential, 0, len(signers))
	for i, signer := range signers {
		comment := ""
		if i < len(keys) {
			comment = keys[i].Comment
		}
		creds = append(creds, &AgentKey{Signer: signer, Comment: comment})
	}
	return creds
}

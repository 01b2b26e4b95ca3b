package staging

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// LocationPair is a matched (local, remote) working-directory pair.
type LocationPair struct {
	Local  string
	Remote string
}

// Session wraps one open transport connection plus the current local and
// remote working directories. The two sides always change together: every
// descent captures the pre-descent pair and restores it on ascent, so the
// location invariant holds for subsequent operations whatever happens in
// between.
//
// The local working directory is session state, not process state; the
// process's own working directory is never touched.
type Session struct {
	transport Transport
	endpoint  *Endpoint
	localCwd  string
	dryRun    bool
	logger    Logger
}

// NewSession binds a freshly opened transport to a local working directory.
func NewSession(transport Transport, endpoint *Endpoint, localDir string, dryRun bool, logger Logger) (*Session, error) {
	abs, err := filepath.Abs(localDir)
	if err != nil {
		return nil, fmt.Errorf("resolving local directory: %w", err)
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Session{
		transport: transport,
		endpoint:  endpoint,
		localCwd:  abs,
		dryRun:    dryRun,
		logger:    logger,
	}, nil
}

// DryRun reports whether the session simulates mutations.
func (s *Session) DryRun() bool { return s.dryRun }

// Transport exposes the underlying connection for protocol-level queries
// such as free space.
func (s *Session) Transport() Transport { return s.transport }

// Location returns the current (local, remote) pair.
func (s *Session) Location() (LocationPair, error) {
	remote, err := s.transport.Getwd()
	if err != nil {
		return LocationPair{}, fmt.Errorf("reading remote location: %w", err)
	}
	return LocationPair{Local: s.localCwd, Remote: remote}, nil
}

// URL synthesizes a display URL for the current remote directory.
func (s *Session) URL() string {
	remote, err := s.transport.Getwd()
	if err != nil {
		remote = ""
	}
	return s.endpoint.URL(remote)
}

// urlFor synthesizes a display URL for a remote name relative to the current
// remote directory, used in diagnostics for paths that may not exist.
func (s *Session) urlFor(name string) string {
	if path.IsAbs(name) {
		return s.endpoint.URL(path.Clean(name))
	}
	remote, err := s.transport.Getwd()
	if err != nil {
		remote = ""
	}
	return s.endpoint.URL(path.Join(remote, name))
}

// SetLocation changes the local and remote working directories together and
// returns the pair that was current, so the caller can restore it on every
// exit path. When make is true, missing directories are created on both
// sides; otherwise a missing remote directory is a RemoteNotFoundError and a
// missing local directory is a plain error.
func (s *Session) SetLocation(localDir, remoteDir string, make bool) (LocationPair, error) {
	prev, err := s.Location()
	if err != nil {
		return LocationPair{}, err
	}

	if err := s.setRemoteLocation(remoteDir, make); err != nil {
		return LocationPair{}, err
	}
	if err := s.setLocalLocation(localDir, make); err != nil {
		return LocationPair{}, err
	}
	return prev, nil
}

// setRemoteLocation enters dir, creating it first when make is true and the
// probe fails.
func (s *Session) setRemoteLocation(dir string, make bool) error {
	if err := s.transport.Chdir(dir); err == nil {
		return nil
	}
	if !make {
		return &RemoteNotFoundError{URL: s.urlFor(dir)}
	}
	if err := s.transport.Mkdir(dir); err != nil {
		return fmt.Errorf("creating remote directory %s: %w", dir, err)
	}
	if err := s.transport.Chdir(dir); err != nil {
		return fmt.Errorf("entering created remote directory %s: %w", dir, err)
	}
	return nil
}

// setLocalLocation moves the session's local side, creating the directory
// when make is true. Under dry-run nothing is created or even required to
// exist; the path is tracked so events read sensibly.
func (s *Session) setLocalLocation(dir string, make bool) error {
	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.localCwd, dir)
	}
	if s.dryRun {
		s.localCwd = target
		return nil
	}

	info, err := os.Stat(target)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("local path is not a directory: %s", target)
		}
	case os.IsNotExist(err) && make:
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("creating local directory %s: %w", target, err)
		}
	default:
		return fmt.Errorf("entering local directory %s: %w", target, err)
	}
	s.localCwd = target
	return nil
}

// LocalPath resolves a name against the session's local working directory.
func (s *Session) LocalPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.localCwd, name)
}

// RemoteList lists the children of the current remote directory.
func (s *Session) RemoteList() ([]string, error) {
	return s.transport.List()
}

// RemoteFileSize reports the remote size of name; ok is false when name is
// not a plain file.
func (s *Session) RemoteFileSize(name string) (int64, bool, error) {
	return s.transport.FileSize(name)
}

// DownloadFile copies the remote file name into the local working directory.
// Under dry-run no local file is created.
func (s *Session) DownloadFile(name string) error {
	if s.dryRun {
		return nil
	}
	f, err := os.Create(s.LocalPath(name))
	if err != nil {
		return fmt.Errorf("creating local file %s: %w", name, err)
	}
	if err := s.transport.Download(name, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// UploadFile copies the local file name into the current remote directory.
func (s *Session) UploadFile(name string) error {
	f, err := os.Open(s.LocalPath(name))
	if err != nil {
		return fmt.Errorf("opening local file %s: %w", name, err)
	}
	defer f.Close()
	return s.transport.Upload(name, f)
}

// RemoveRemote deletes the remote file name.
func (s *Session) RemoveRemote(name string) error {
	return s.transport.Remove(name)
}

// RemoveRemoteDir removes the remote directory name.
func (s *Session) RemoveRemoteDir(name string) error {
	return s.transport.Rmdir(name)
}

// Close shuts the transport down.
func (s *Session) Close() error {
	return s.transport.Close()
}

package staging

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sftpDialTimeout bounds the SSH handshake.
const sftpDialTimeout = 30 * time.Second

// SftpTransport is the SFTP implementation of Transport, an SFTP subsystem
// client over an SSH connection. The SFTP protocol has no notion of a current
// directory, so the transport tracks one and resolves relative names against
// it.
type SftpTransport struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	cwd        string
}

var _ Transport = (*SftpTransport)(nil)

// DialSFTP opens an SSH connection to the endpoint using the single
// authentication method auth and starts an SFTP session over it.
func DialSFTP(ep *Endpoint, auth ssh.AuthMethod, logger Logger) (*SftpTransport, error) {
	hostKeyCallback, err := buildHostKeyCallback(ep, logger)
	if err != nil {
		return nil, fmt.Errorf("configuring host key verification: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         sftpDialTimeout,
	}

	sshClient, err := ssh.Dial("tcp", ep.Addr(), cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", ep.Addr(), err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("starting sftp subsystem: %w", err)
	}

	cwd, err := sftpClient.Getwd()
	if err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, fmt.Errorf("reading remote working directory: %w", err)
	}

	return &SftpTransport{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		cwd:        cwd,
	}, nil
}

// buildHostKeyCallback verifies host keys against a known_hosts file. When no
// usable file exists the connection proceeds with a logged warning, matching
// the long-standing behavior of the tools this replaces.
func buildHostKeyCallback(ep *Endpoint, logger Logger) (ssh.HostKeyCallback, error) {
	if ep.KnownHostsFile != "" {
		cb, err := knownhosts.New(ep.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts %s: %w", ep.KnownHostsFile, err)
		}
		return cb, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		defaultPath := filepath.Join(home, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultPath); err == nil {
			if cb, err := knownhosts.New(defaultPath); err == nil {
				return cb, nil
			}
			logger.Warn("could not parse known_hosts file", "path", defaultPath)
		}
	}

	logger.Warn("no known_hosts file found; host key verification disabled", "host", ep.Host)
	return ssh.InsecureIgnoreHostKey(), nil
}

func (t *SftpTransport) Protocol() Protocol { return ProtocolSFTP }

func (t *SftpTransport) Getwd() (string, error) { return t.cwd, nil }

// resolve turns a possibly relative remote name into an absolute path.
func (t *SftpTransport) resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(t.cwd, name)
}

func (t *SftpTransport) Chdir(dir string) error {
	target := t.resolve(dir)
	info, err := t.sftpClient.Stat(target)
	if err != nil {
		return fmt.Errorf("entering %s: %w", target, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("entering %s: not a directory", target)
	}
	t.cwd = target
	return nil
}

func (t *SftpTransport) List() ([]string, error) {
	infos, err := t.sftpClient.ReadDir(t.cwd)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t.cwd, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (t *SftpTransport) FileSize(name string) (int64, bool, error) {
	info, err := t.sftpClient.Stat(t.resolve(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return 0, false, nil
	}
	return info.Size(), true, nil
}

func (t *SftpTransport) Download(name string, w io.Writer) error {
	f, err := t.sftpClient.Open(t.resolve(name))
	if err != nil {
		return fmt.Errorf("opening remote %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	return nil
}

func (t *SftpTransport) Upload(name string, r io.Reader) error {
	f, err := t.sftpClient.Create(t.resolve(name))
	if err != nil {
		return fmt.Errorf("creating remote %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return f.Close()
}

func (t *SftpTransport) Remove(name string) error {
	return t.sftpClient.Remove(t.resolve(name))
}

func (t *SftpTransport) Mkdir(name string) error {
	return t.sftpClient.Mkdir(t.resolve(name))
}

func (t *SftpTransport) Rmdir(name string) error {
	return t.sftpClient.RemoveDirectory(t.resolve(name))
}

// Volume uses the statvfs@openssh.com extension to report free space.
func (t *SftpTransport) Volume(p string) (*VolumeInfo, error) {
	vfs, err := t.sftpClient.StatVFS(t.resolve(p))
	if err != nil {
		return nil, fmt.Errorf("statvfs %s: %w", p, err)
	}
	return &VolumeInfo{
		BytesOnDevice: vfs.TotalSpace(),
		UnusedBytes:   vfs.FreeSpace(),
	}, nil
}

func (t *SftpTransport) Close() error {
	sftpErr := t.sftpClient.Close()
	sshErr := t.sshClient.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

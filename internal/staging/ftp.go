package staging

import (
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpDialTimeout bounds the control-connection dial.
const ftpDialTimeout = 30 * time.Second

// FtpTransport is the FTP implementation of Transport. The current directory
// lives server side, so Getwd and Chdir translate directly to PWD and CWD.
type FtpTransport struct {
	conn *ftp.ServerConn
}

var _ Transport = (*FtpTransport)(nil)

// DialFTP connects and logs in to the endpoint with the given password.
// FTP has no key-based authentication; password is the whole cascade.
func DialFTP(ep *Endpoint, password string) (*FtpTransport, error) {
	conn, err := ftp.Dial(ep.Addr(), ftp.DialWithTimeout(ftpDialTimeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", ep.Addr(), err)
	}
	user := ep.User
	if user == "" {
		user = "anonymous"
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("logging in as %s: %w", user, err)
	}
	return &FtpTransport{conn: conn}, nil
}

func (t *FtpTransport) Protocol() Protocol { return ProtocolFTP }

func (t *FtpTransport) Getwd() (string, error) {
	return t.conn.CurrentDir()
}

func (t *FtpTransport) Chdir(dir string) error {
	if err := t.conn.ChangeDir(dir); err != nil {
		return fmt.Errorf("entering %s: %w", dir, err)
	}
	return nil
}

func (t *FtpTransport) List() ([]string, error) {
	names, err := t.conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("listing current directory: %w", err)
	}
	return names, nil
}

// FileSize asks the server for SIZE. Servers answer with an error for
// directories and missing names alike, so any failure maps to "not a plain
// file" rather than a fault, mirroring how SIZE is actually used.
func (t *FtpTransport) FileSize(name string) (int64, bool, error) {
	size, err := t.conn.FileSize(name)
	if err != nil {
		return 0, false, nil
	}
	return size, true, nil
}

func (t *FtpTransport) Download(name string, w io.Writer) error {
	resp, err := t.conn.Retr(name)
	if err != nil {
		return fmt.Errorf("retrieving %s: %w", name, err)
	}
	defer resp.Close()
	if _, err := io.Copy(w, resp); err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	return nil
}

func (t *FtpTransport) Upload(name string, r io.Reader) error {
	if err := t.conn.Stor(name, r); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

func (t *FtpTransport) Remove(name string) error {
	return t.conn.Delete(name)
}

func (t *FtpTransport) Mkdir(name string) error {
	return t.conn.MakeDir(name)
}

func (t *FtpTransport) Rmdir(name string) error {
	return t.conn.RemoveDir(name)
}

// Volume has no FTP equivalent.
func (t *FtpTransport) Volume(string) (*VolumeInfo, error) {
	return nil, ErrUnsupported
}

func (t *FtpTransport) Close() error {
	return t.conn.Quit()
}

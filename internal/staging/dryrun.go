package staging

import (
	"io"
	"path"
)

// DryRunTransport wraps another transport, forwarding reads and suppressing
// every mutation. Directories "created" during the run are remembered so the
// walk can descend into them: inside such a directory every read reports an
// empty, file-free tree, which is exactly what a fresh directory would hold.
type DryRunTransport struct {
	inner Transport
	cwd   string          // virtual current directory
	real  string          // directory the inner transport is actually in
	made  map[string]bool // absolute paths of pretend-created directories
}

var _ Transport = (*DryRunTransport)(nil)

// NewDryRunTransport wraps inner for a simulated run.
func NewDryRunTransport(inner Transport) (*DryRunTransport, error) {
	cwd, err := inner.Getwd()
	if err != nil {
		return nil, err
	}
	return &DryRunTransport{
		inner: inner,
		cwd:   cwd,
		real:  cwd,
		made:  map[string]bool{},
	}, nil
}

func (t *DryRunTransport) resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(t.cwd, name)
}

// pretending reports whether the virtual cwd is inside a pretend directory.
func (t *DryRunTransport) pretending() bool { return t.cwd != t.real }

func (t *DryRunTransport) Protocol() Protocol { return t.inner.Protocol() }

func (t *DryRunTransport) Getwd() (string, error) { return t.cwd, nil }

func (t *DryRunTransport) Chdir(dir string) error {
	target := t.resolve(dir)
	if t.made[target] {
		t.cwd = target
		return nil
	}
	if err := t.inner.Chdir(target); err != nil {
		return err
	}
	t.cwd = target
	t.real = target
	return nil
}

func (t *DryRunTransport) List() ([]string, error) {
	if t.pretending() {
		return nil, nil
	}
	return t.inner.List()
}

func (t *DryRunTransport) FileSize(name string) (int64, bool, error) {
	if t.pretending() {
		return 0, false, nil
	}
	return t.inner.FileSize(name)
}

func (t *DryRunTransport) Download(name string, w io.Writer) error {
	// Reading the remote file would be harmless, but writing the local copy
	// would not be; skip the transfer entirely.
	return nil
}

func (t *DryRunTransport) Upload(name string, r io.Reader) error { return nil }

func (t *DryRunTransport) Remove(name string) error { return nil }

func (t *DryRunTransport) Mkdir(name string) error {
	t.made[t.resolve(name)] = true
	return nil
}

func (t *DryRunTransport) Rmdir(name string) error {
	delete(t.made, t.resolve(name))
	return nil
}

func (t *DryRunTransport) Volume(p string) (*VolumeInfo, error) {
	return t.inner.Volume(p)
}

func (t *DryRunTransport) Close() error { return t.inner.Close() }

package staging

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// fakeTransport is an in-memory Transport backed by maps of absolute paths.
// It counts mutations so dry-run tests can assert nothing was touched, and
// records an operation log so ordering tests can assert transfer order.
type fakeTransport struct {
	protocol Protocol
	cwd      string
	dirs     map[string]bool
	files    map[string][]byte

	// listOrder overrides the sorted listing for a directory, for tests
	// that depend on server-side ordering.
	listOrder map[string][]string
	// failList makes List fail inside the given directory.
	failList map[string]error
	// failGetwd makes Getwd fail, simulating a connection that drops
	// right after authentication.
	failGetwd error
	// truncateDownloads makes Download write one byte short, simulating a
	// transfer that did not complete.
	truncateDownloads bool

	uploads int
	removes int
	mkdirs  int
	rmdirs  int
	closed  bool

	log []string
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport(cwd string) *fakeTransport {
	t := &fakeTransport{
		protocol:  ProtocolSFTP,
		cwd:       cwd,
		dirs:      map[string]bool{"/": true},
		files:     map[string][]byte{},
		listOrder: map[string][]string{},
		failList:  map[string]error{},
	}
	t.addDir(cwd)
	return t
}

func (t *fakeTransport) addDir(p string) {
	p = path.Clean(p)
	for p != "/" {
		t.dirs[p] = true
		p = path.Dir(p)
	}
}

func (t *fakeTransport) addFile(p, content string) {
	p = path.Clean(p)
	t.addDir(path.Dir(p))
	t.files[p] = []byte(content)
}

func (t *fakeTransport) resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(t.cwd, name)
}

// mutations totals every state-changing call made against the fake.
func (t *fakeTransport) mutations() int {
	return t.uploads + t.removes + t.mkdirs + t.rmdirs
}

func (t *fakeTransport) Protocol() Protocol { return t.protocol }

func (t *fakeTransport) Getwd() (string, error) {
	if t.failGetwd != nil {
		return "", t.failGetwd
	}
	return t.cwd, nil
}

func (t *fakeTransport) Chdir(dir string) error {
	target := t.resolve(dir)
	if !t.dirs[target] {
		return fmt.Errorf("no such directory: %s", target)
	}
	t.cwd = target
	return nil
}

func (t *fakeTransport) List() ([]string, error) {
	if err := t.failList[t.cwd]; err != nil {
		return nil, err
	}
	if order, ok := t.listOrder[t.cwd]; ok {
		return append([]string{}, order...), nil
	}
	seen := map[string]bool{}
	var names []string
	collect := func(p string) {
		if path.Dir(p) != t.cwd {
			return
		}
		name := path.Base(p)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for p := range t.files {
		collect(p)
	}
	for p := range t.dirs {
		collect(p)
	}
	sort.Strings(names)
	return names, nil
}

func (t *fakeTransport) FileSize(name string) (int64, bool, error) {
	target := t.resolve(name)
	if content, ok := t.files[target]; ok {
		return int64(len(content)), true, nil
	}
	return 0, false, nil
}

func (t *fakeTransport) Download(name string, w io.Writer) error {
	target := t.resolve(name)
	content, ok := t.files[target]
	if !ok {
		return fmt.Errorf("no such file: %s", target)
	}
	if t.truncateDownloads && len(content) > 0 {
		content = content[:len(content)-1]
	}
	t.log = append(t.log, "download "+path.Base(target))
	_, err := w.Write(content)
	return err
}

func (t *fakeTransport) Upload(name string, r io.Reader) error {
	target := t.resolve(name)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	t.files[target] = buf.Bytes()
	t.uploads++
	t.log = append(t.log, "upload "+path.Base(target))
	return nil
}

func (t *fakeTransport) Remove(name string) error {
	target := t.resolve(name)
	if _, ok := t.files[target]; !ok {
		return fmt.Errorf("no such file: %s", target)
	}
	delete(t.files, target)
	t.removes++
	t.log = append(t.log, "remove "+path.Base(target))
	return nil
}

func (t *fakeTransport) Mkdir(name string) error {
	target := t.resolve(name)
	t.dirs[target] = true
	t.mkdirs++
	t.log = append(t.log, "mkdir "+path.Base(target))
	return nil
}

func (t *fakeTransport) Rmdir(name string) error {
	target := t.resolve(name)
	if !t.dirs[target] {
		return fmt.Errorf("no such directory: %s", target)
	}
	for p := range t.files {
		if strings.HasPrefix(p, target+"/") {
			return fmt.Errorf("directory not empty: %s", target)
		}
	}
	for p := range t.dirs {
		if strings.HasPrefix(p, target+"/") {
			return fmt.Errorf("directory not empty: %s", target)
		}
	}
	delete(t.dirs, target)
	t.rmdirs++
	t.log = append(t.log, "rmdir "+path.Base(target))
	return nil
}

func (t *fakeTransport) Volume(string) (*VolumeInfo, error) {
	return &VolumeInfo{BytesOnDevice: 1 << 30, UnusedBytes: 1 << 29}, nil
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

package staging

import "io"

// VolumeInfo reports free-space figures for the device backing a remote path.
type VolumeInfo struct {
	BytesOnDevice uint64
	UnusedBytes   uint64
}

// Transport is a protocol-uniform client for one open remote connection.
// Implementations are selected once per session based on the endpoint's
// protocol; no call site branches on protocol after that.
//
// All paths are interpreted against the transport's current remote working
// directory unless absolute. Remote paths use forward slashes.
type Transport interface {
	// Protocol identifies the backend.
	Protocol() Protocol

	// Getwd returns the current remote working directory.
	Getwd() (string, error)

	// Chdir enters dir. It is a non-mutating probe: entering a directory
	// that does not exist returns an error and changes nothing.
	Chdir(dir string) error

	// List returns the names of the children of the current directory.
	List() ([]string, error)

	// FileSize reports the size of name. ok is false when name is not a
	// plain file or does not exist.
	FileSize(name string) (size int64, ok bool, err error)

	// Download copies the remote file name to w.
	Download(name string, w io.Writer) error

	// Upload creates or replaces the remote file name with the contents of r.
	Upload(name string, r io.Reader) error

	// Remove deletes the remote file name.
	Remove(name string) error

	// Mkdir creates the remote directory name.
	Mkdir(name string) error

	// Rmdir removes the remote directory name, which must be empty.
	Rmdir(name string) error

	// Volume reports free space on the device backing path. Transports
	// without an extension for this return ErrUnsupported.
	Volume(path string) (*VolumeInfo, error)

	// Close shuts the connection down.
	Close() error
}

package staging

import (
	"errors"
	"strings"
	"testing"
)

func TestConnectionError_EnumeratesAttempts(t *testing.T) {
	err := &ConnectionError{
		Host: "drop.example.edu",
		Attempts: []AttemptError{
			{Description: "agent key (work)", Err: errors.New("permission denied")},
			{Description: "private key file /keys/id_rsa", Err: errors.New("no such file")},
			{Description: "password", Err: errors.New("permission denied")},
		},
	}

	msg := err.Error()
	if !strings.Contains(msg, "all 3 authentication attempts to drop.example.edu failed") {
		t.Errorf("message missing summary line: %q", msg)
	}
	for _, want := range []string{"agent key (work)", "private key file /keys/id_rsa", "password", "no such file"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
}

func TestPreconditionError(t *testing.T) {
	err := &PreconditionError{Check: "BagIt", Path: "/work/au", Hint: "package the directory first"}

	msg := err.Error()
	if !strings.Contains(msg, "BagIt check failed for /work/au") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "package the directory first") {
		t.Errorf("message missing hint: %q", msg)
	}
}

func TestRemoteNotFoundError(t *testing.T) {
	err := &RemoteNotFoundError{URL: "sftp://lockss@drop.example.edu/drop/missing"}
	if !strings.Contains(err.Error(), "sftp://lockss@drop.example.edu/drop/missing") {
		t.Errorf("message = %q", err.Error())
	}
}

package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"austage/internal/staging"
)

// promptSecret returns a PasswordSource that asks for a secret on first use.
// The prompt goes to stderr so it never corrupts piped stdout, and the echo
// is suppressed when stdin is a terminal.
func promptSecret(label string) staging.PasswordSource {
	return func() (string, error) {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", label, err)
			}
			return string(secret), nil
		}
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

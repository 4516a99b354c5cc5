// Command hashpw turns a password read from stdin into a bcrypt hash for
// AUTH_USERS or the credentials file.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"bookinventory/internal/platform/crypto"
)

func main() {
	var (
		user  = flag.String("user", "", "Print a full AUTH_USERS entry for this username")
		roles = flag.String("roles", "USER", "Roles for -user, separated by |")
	)
	flag.Parse()

	if err := run(os.Stdin, os.Stdout, *user, *roles); err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, user, roles string) error {
	password, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	if err := crypto.ValidatePasswordStrength(password); err != nil {
		return err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if user == "" {
		_, err = fmt.Fprintln(out, hash)
		return err
	}
	_, err = fmt.Fprintf(out, "%s:%s:%s\n", user, hash, roles)
	return err
}

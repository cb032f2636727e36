package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// terminal implements session.Input on a line-oriented reader. Secrets are read
// without echo when the reader is an interactive terminal.
type terminal struct {
	r   *bufio.Reader
	out io.Writer
	fd  int
	tty bool

	readPassword func(fd int) ([]byte, error)
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	t := &terminal{r: bufio.NewReader(in), out: out, fd: -1, readPassword: term.ReadPassword}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.tty = true
	}
	return t
}

func (t *terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", prompt)
	return t.line()
}

func (t *terminal) ReadSecret(prompt string) (string, error) {
	// Type-ahead already in the line buffer is consumed before the descriptor.
	if !t.tty || t.r.Buffered() > 0 {
		return t.ReadLine(prompt)
	}
	fmt.Fprintf(t.out, "%s: ", prompt)
	pw, err := t.readPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	defer zeroBytes(pw)
	return string(pw), nil
}

func (t *terminal) Confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(t.out, "%s [%s]: ", prompt, hint)
		answer, err := t.line()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.out, "Please answer y or n")
	}
}

func (t *terminal) Select(prompt string, items []string, def int) (int, error) {
	if len(items) == 0 {
		return 0, errors.New("nothing to select")
	}
	for {
		fmt.Fprintln(t.out, prompt)
		for i, item := range items {
			marker := " "
			if i == def {
				marker = ">"
			}
			fmt.Fprintf(t.out, "%s %d) %s\n", marker, i+1, item)
		}
		fmt.Fprintf(t.out, "Choice [%d]: ", def+1)

		answer, err := t.line()
		if err != nil {
			return 0, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return def, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(items) {
			return n - 1, nil
		}
		fmt.Fprintf(t.out, "Please enter a number between 1 and %d\n", len(items))
	}
}

// line returns the next input line. A final line without a newline is still returned;
// io.EOF is only reported once nothing is left.
func (t *terminal) line() (string, error) {
	s, err := t.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && s != "" {
			return strings.TrimRight(s, "\r\n"), nil
		}
		if !errors.Is(err, io.EOF) {
			err = fmt.Errorf("read input: %w", err)
		}
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

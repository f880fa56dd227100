package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// errAborted is returned when the user quits a prompt.
var errAborted = errors.New("aborted")

// prompter reads answers line by line. Secrets are read without echo when
// input is a terminal.
type prompter struct {
	reader *bufio.Reader
	out    io.Writer
	// fd is the terminal file descriptor, or -1 when input is not a terminal.
	fd int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{reader: bufio.NewReader(in), out: out, fd: fd}
}

func (p *prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ask prints label with a default and returns the answer or the default.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, err := p.readLine()
	if err != nil {
		return "", err
	}
	if input == "" {
		return def, nil
	}
	return input, nil
}

// askRequired repeats the prompt until a non-empty answer is given.
func (p *prompter) askRequired(label, def string) (string, error) {
	for {
		v, err := p.ask(label, def)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintln(p.out, "  Error: a value is required")
	}
}

// askSecret reads a value without echo on a terminal. An empty answer keeps
// the current value.
func (p *prompter) askSecret(label string, stored bool) (string, error) {
	if stored {
		fmt.Fprintf(p.out, "%s [stored, Enter to keep]: ", label)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if p.fd < 0 {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// confirm asks a yes/no question.
func (p *prompter) confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
	input, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(input) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// choose lists options and returns the chosen index. Extra single-letter
// actions may be offered; the chosen action is returned with index -1.
func (p *prompter) choose(label string, options []string, actions map[string]string) (int, string, error) {
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, o)
	}
	if len(options) == 0 && len(actions) == 0 {
		return -1, "", fmt.Errorf("nothing to choose for %s", strings.ToLower(label))
	}
	for _, key := range slices.Sorted(maps.Keys(actions)) {
		fmt.Fprintf(p.out, "  %s. %s\n", key, actions[key])
	}
	for {
		fmt.Fprintf(p.out, "%s [1-%d]: ", label, len(options))
		input, err := p.readLine()
		if err != nil {
			return -1, "", err
		}
		if _, ok := actions[strings.ToLower(input)]; ok {
			return -1, strings.ToLower(input), nil
		}
		if input == "q" {
			return -1, "", errAborted
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
			return n - 1, "", nil
		}
		fmt.Fprintln(p.out, "Invalid choice, please try again.")
	}
}

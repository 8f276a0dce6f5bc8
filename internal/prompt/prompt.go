// Package prompt reads operator decisions and bucket names from one shared
// input stream.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	affirmative = map[string]bool{"y": true, "yes": true}
	negative    = map[string]bool{"n": true, "no": true}
)

// Prompter owns the operator's input. Bucket names and confirmations are
// read through the same buffered reader so piped input stays in order.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm shows message and blocks until the operator answers yes or no.
// Anything else re-prompts. End of input counts as no.
func (p *Prompter) Confirm(message string) bool {
	for {
		fmt.Fprintf(p.out, "%s [y/n]: ", message)

		line, err := p.readLine()
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case affirmative[answer]:
			return true
		case negative[answer]:
			return false
		case err != nil:
			fmt.Fprintln(p.out)
			return false
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}

// ReadLines prints intro and collects non-empty lines until a blank line or
// end of input.
func (p *Prompter) ReadLines(intro string) ([]string, error) {
	if intro != "" {
		fmt.Fprintln(p.out, intro)
	}

	var lines []string
	for {
		line, err := p.readLine()
		value := strings.TrimSpace(line)
		if value != "" {
			lines = append(lines, value)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, fmt.Errorf("failed to read input: %w", err)
		}
		if value == "" {
			return lines, nil
		}
	}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

package reaper

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer asks an operator a yes/no question.
type Confirmer interface {
	Confirm(question string) bool
}

// PromptConfirmer asks on a writer and reads answers line by line from a
// reader. One buffered reader is kept across questions so piped answers are
// not lost between prompts.
type PromptConfirmer struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer io.Writer
}

// NewPromptConfirmer creates a PromptConfirmer reading from r and prompting on w.
func NewPromptConfirmer(r io.Reader, w io.Writer) *PromptConfirmer {
	return &PromptConfirmer{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// Confirm asks the question and returns true for an answer starting with y.
// A read error or end of input means no.
func (c *PromptConfirmer) Confirm(question string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "%s (y/n): ", question)

	answer, err := c.reader.ReadString('\n')
	if err != nil && answer == "" {
		_, _ = fmt.Fprintln(c.writer)
		return false
	}

	answer = strings.TrimSpace(answer)
	return strings.HasPrefix(strings.ToLower(answer), "y")
}

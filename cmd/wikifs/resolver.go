package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"wikifs/internal/document"
	"wikifs/internal/wikierr"
)

// promptResolver asks on the terminal which backend wins when input
// backends disagree. Without a terminal every conflict is an error.
type promptResolver struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	tty bool
}

func newPromptResolver() document.Resolver {
	return &promptResolver{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
		tty: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Resolve implements document.Resolver.
func (r *promptResolver) Resolve(ctx context.Context, what string, candidates []document.Candidate) (int, error) {
	if !r.tty {
		return -1, fmt.Errorf("%w: %s (no terminal to ask)", wikierr.ErrSourceConflict, what)
	}

	// FUSE calls arrive concurrently; one question at a time.
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\nSources disagree on %s:\n", what)
	for i, c := range candidates {
		fmt.Fprintf(r.out, "  [%d] %s: %s\n", i+1, c.Source, preview(c.Value))
	}

	for {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		fmt.Fprintf(r.out, "Use which value? [1-%d]: ", len(candidates))
		line, err := r.in.ReadString('\n')
		if err != nil {
			return -1, fmt.Errorf("%w: %s: %v", wikierr.ErrSourceConflict, what, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(candidates) {
			return n - 1, nil
		}
		fmt.Fprintln(r.out, "Invalid choice")
	}
}

func preview(s string) string {
	const limit = 60
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

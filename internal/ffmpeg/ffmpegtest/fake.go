// Package ffmpegtest provides a scripted ffmpeg.Runner for tests.
package ffmpegtest

import (
	"context"
	"strings"
	"sync"

	"media-board/internal/ffmpeg"
)

// Call records one invocation made through a Fake.
type Call struct {
	Tool ffmpeg.Tool
	Args []string
}

// Joined returns the arguments separated by spaces, for substring matching.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

// HasArg reports whether the call carried flag immediately followed by value.
func (c Call) HasArg(flag, value string) bool {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag && c.Args[i+1] == value {
			return true
		}
	}
	return false
}

// Handler produces the response for one invocation.
type Handler func(ctx context.Context, call Call) (ffmpeg.Result, error)

// Fake is a concurrency-safe Runner that records calls and delegates to Handler.
// A nil Handler succeeds with empty output.
type Fake struct {
	Handler Handler

	mu    sync.Mutex
	calls []Call
}

// Run implements ffmpeg.Runner.
func (f *Fake) Run(ctx context.Context, tool ffmpeg.Tool, args ...string) (ffmpeg.Result, error) {
	call := Call{Tool: tool, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Handler == nil {
		return ffmpeg.Result{}, nil
	}
	return f.Handler(ctx, call)
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many recorded calls satisfy match.
func (f *Fake) Count(match func(Call) bool) int {
	n := 0
	for _, c := range f.Calls() {
		if match(c) {
			n++
		}
	}
	return n
}

// Contains matches calls whose joined arguments contain every fragment.
func Contains(fragments ...string) func(Call) bool {
	return func(c Call) bool {
		joined := c.Joined()
		for _, f := range fragments {
			if !strings.Contains(joined, f) {
				return false
			}
		}
		return true
	}
}

// OutputPath returns the last argument of a call, which is where ffmpeg and
// gifsicle invocations in this repository put their output file.
func (c Call) OutputPath() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// Package search walks directory trees in parallel and reports entries whose
// name or content matches a predicate, optionally rewriting matches in place.
//
// A fixed pool of workers pulls directories from a self-feeding work queue.
// Listing a directory may enqueue its subdirectories, each carrying its own
// clone of the queue's sender, so the queue closes by itself once nothing
// left in flight can discover more work. Matches travel to a single
// aggregator over a separate result queue.
package search

import (
	"github.com/sys-apps-go/search/internal/what"
)

// Options is the flat set of settings delivered by the command line.
type Options struct {
	What        string
	Paths       []string
	Content     bool
	Recursive   bool
	Insensitive bool
	Sort        bool
	Mute        bool
	Counts      bool
	Regex       bool
	Linenos     bool
	Replace     *string
	IgnoreExts  []string
	Threads     int
	SkipHidden  bool
}

// Request is the immutable description of one run. It is built once and
// shared by every worker without locking; nothing mutates it afterwards.
type Request struct {
	Options
	What *what.What
}

// NewRequest applies the leading-backslash convention to the search term,
// defaults the root list to ".", and builds the predicate. An invalid
// regular expression yields a *what.PatternError.
func NewRequest(opts Options) (*Request, error) {
	opts.What = what.Unescape(opts.What)
	if len(opts.Paths) == 0 {
		opts.Paths = []string{"."}
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	w, err := what.New(opts.What, opts.Regex, opts.Insensitive)
	if err != nil {
		return nil, err
	}
	return &Request{Options: opts, What: w}, nil
}

// ContentMode reports whether file bodies are searched or rewritten rather
// than entry names. Replacing implies content mode.
func (r *Request) ContentMode() bool {
	return r.Content || r.Replace != nil
}

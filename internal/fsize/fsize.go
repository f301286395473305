// Package fsize reports disk usage of files and directories using the same
// self-feeding worker pool as the search engine. Sizes flow back to a single
// consumer that sums them per root; workers share no counters.
package fsize

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/sys-apps-go/search/internal/logger"
	"github.com/sys-apps-go/search/internal/queue"
)

// Matcher selects entry names. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

// Options configures a size run.
//
// When Match is set, a file below a root is counted only if its name
// matches, and a subdirectory is entered only if its name with a trailing
// "/" matches. Exclude inverts the match. FilesOnly applies the match to
// files alone and DirsOnly to directories alone.
type Options struct {
	Paths     []string
	Recursive bool
	Threads   int
	Total     bool
	SI        bool
	Bytes     bool
	Match     Matcher
	Exclude   bool
	FilesOnly bool
	DirsOnly  bool
}

// selects reports whether the entry name is counted or descended into.
// Directory names carry a trailing "/".
func (o *Options) selects(name string) bool {
	if o.Match == nil {
		return true
	}
	dir := strings.HasSuffix(name, "/")
	if (o.FilesOnly && dir) || (o.DirsOnly && !dir) {
		return true
	}
	return o.Match.MatchString(name) != o.Exclude
}

type item struct {
	root int
	path string
	tx   *queue.Sender[item]
}

type sized struct {
	root int
	size uint64
}

// Sizes computes the size of each root in opts.Paths. A directory's size is
// the sum of the regular files directly inside it, or beneath it when
// Recursive is set. ok[i] is false when root i could not be read at all.
func Sizes(opts Options, log *logger.Logger) (sizes []uint64, ok []bool) {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	work, workTx := queue.New[item]()
	results, resultsTx := queue.New[sized]()

	var g errgroup.Group
	for i := 0; i < threads; i++ {
		id, out := i, resultsTx.Clone()
		g.Go(func() (err error) {
			defer out.Drop()
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker #%d panicked: %v", id, r)
				}
			}()
			for {
				it, more := work.Receive()
				if !more {
					return nil
				}
				measure(it, &opts, out, log)
			}
		})
	}
	resultsTx.Drop()

	for i, p := range paths {
		if err := workTx.Send(item{root: i, path: p, tx: workTx.Clone()}); err != nil {
			log.Fatalf("all worker receivers dropped")
		}
	}
	workTx.Drop()

	sizes = make([]uint64, len(paths))
	ok = make([]bool, len(paths))
	for {
		r, more := results.Receive()
		if !more {
			break
		}
		sizes[r.root] += r.size
		ok[r.root] = true
	}
	if err := g.Wait(); err != nil {
		log.Warnf("error joining worker: %v", err)
	}
	return sizes, ok
}

// Run prints one "<size>\t<path>" line per readable root, followed by a
// total line when requested.
func Run(opts Options, log *logger.Logger, out io.Writer) error {
	paths := opts.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	sizes, ok := Sizes(opts, log)

	var total uint64
	for i, p := range paths {
		if !ok[i] {
			continue
		}
		total += sizes[i]
		if _, err := fmt.Fprintf(out, "%s\t%s\n", Format(sizes[i], opts.SI, opts.Bytes), p); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	if opts.Total {
		if _, err := fmt.Fprintf(out, "%s\ttotal\n", Format(total, opts.SI, opts.Bytes)); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	return nil
}

// Format renders n as raw bytes, SI units (kB, MB) or IEC units (KiB, MiB).
func Format(n uint64, si, raw bool) string {
	switch {
	case raw:
		return strconv.FormatUint(n, 10)
	case si:
		return humanize.Bytes(n)
	default:
		return humanize.IBytes(n)
	}
}

func measure(it item, opts *Options, out *queue.Sender[sized], log *logger.Logger) {
	defer it.tx.Drop()

	info, err := os.Stat(it.path)
	if err != nil {
		log.Errorf(it.path, "getting metadata", err)
		return
	}
	if !info.IsDir() {
		send(out, sized{root: it.root, size: uint64(info.Size())}, log)
		return
	}
	send(out, sized{root: it.root}, log)

	f, err := os.Open(it.path)
	if err != nil {
		log.Errorf(it.path, "reading directory", err)
		return
	}
	defer f.Close()

	for {
		entries, err := f.ReadDir(256)
		for _, ent := range entries {
			visit(it, ent, opts, out, log)
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Errorf(it.path, "getting directory entry", err)
			return
		}
	}
}

func visit(it item, ent fs.DirEntry, opts *Options, out *queue.Sender[sized], log *logger.Logger) {
	full := filepath.Join(it.path, ent.Name())
	switch typ := ent.Type(); {
	case typ&fs.ModeSymlink != 0:
	case typ.IsDir():
		if !opts.Recursive || !opts.selects(ent.Name()+"/") {
			return
		}
		if err := it.tx.Send(item{root: it.root, path: full, tx: it.tx.Clone()}); err != nil {
			log.Fatalf("worker receiver has been dropped")
		}
	case typ.IsRegular():
		if !opts.selects(ent.Name()) {
			return
		}
		info, err := ent.Info()
		if err != nil {
			log.Errorf(full, "getting metadata", err)
			return
		}
		send(out, sized{root: it.root, size: uint64(info.Size())}, log)
	}
}

func send(out *queue.Sender[sized], s sized, log *logger.Logger) {
	if err := out.Send(s); err != nil {
		log.Fatalf("results receiver has been dropped")
	}
}

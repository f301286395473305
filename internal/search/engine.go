package search

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sys-apps-go/search/internal/classify"
	"github.com/sys-apps-go/search/internal/logger"
	"github.com/sys-apps-go/search/internal/queue"
)

// workItem is a pending path paired with the handle used to submit the
// work it discovers. Whoever dequeues it must drop tx when done.
type workItem struct {
	path string
	tx   *queue.Sender[workItem]
}

// Searcher executes a Request.
type Searcher struct {
	req        *Request
	classifier *classify.Classifier
	log        *logger.Logger
	out        io.Writer
}

// New creates a Searcher that prints results to out and reports errors
// through log.
func New(req *Request, log *logger.Logger, out io.Writer) *Searcher {
	return &Searcher{
		req:        req,
		classifier: classify.New(req.IgnoreExts),
		log:        log,
		out:        out,
	}
}

// Run spawns the worker pool, seeds it with the root paths, and prints every
// result. It returns once all workers have exited. A panicking worker is
// reported but does not fail the run.
func (s *Searcher) Run() error {
	work, workTx := queue.New[workItem]()
	results, resultsTx := queue.New[string]()

	var g errgroup.Group
	for i := 1; i <= s.req.Threads; i++ {
		id := i
		out := resultsTx.Clone()
		g.Go(func() error {
			return s.runWorker(id, work, out)
		})
	}
	resultsTx.Drop()

	for _, path := range s.req.Paths {
		s.log.Debugf("seeding %s", path)
		if err := workTx.Send(workItem{path: path, tx: workTx.Clone()}); err != nil {
			s.log.Fatalf("all worker receivers dropped")
		}
	}
	workTx.Drop()

	aggErr := s.aggregate(results)

	if err := g.Wait(); err != nil {
		s.log.Warnf("error joining worker: %v", err)
	}
	return aggErr
}

func (s *Searcher) runWorker(id int, work *queue.Queue[workItem], results *queue.Sender[string]) (err error) {
	defer results.Drop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker #%d panicked: %v", id, r)
		}
	}()

	s.log.Debugf("worker #%d started", id)
	for {
		item, ok := work.Receive()
		if !ok {
			s.log.Debugf("worker #%d done", id)
			return nil
		}
		s.process(item, results)
	}
}

func (s *Searcher) process(item workItem, results *queue.Sender[string]) {
	defer item.tx.Drop()

	info, err := os.Stat(item.path)
	if err != nil {
		s.log.Errorf(item.path, "getting metadata", err)
		return
	}
	switch {
	case info.IsDir():
		s.searchDir(item.path, item.tx, results)
	case info.Mode().IsRegular():
		// A file named on the command line is always searched by content.
		s.searchFile(item.path, results)
	}
}

func (s *Searcher) emit(results *queue.Sender[string], line string) {
	if err := results.Send(line); err != nil {
		s.log.Fatalf("results receiver has been dropped")
	}
}

// aggregate drains results until every worker has dropped its sender. If
// the aggregator stops early the queue is disconnected, which turns any
// later send into a fatal error instead of a silent leak.
func (s *Searcher) aggregate(results *queue.Queue[string]) error {
	defer results.Disconnect()

	var sorted []string
	for {
		line, ok := results.Receive()
		if !ok {
			break
		}
		line = strings.TrimPrefix(line, "./")
		if s.req.Sort {
			sorted = append(sorted, line)
			continue
		}
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	sort.Strings(sorted)
	for _, line := range sorted {
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	return nil
}

package search

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sys-apps-go/search/common"
	"github.com/sys-apps-go/search/internal/queue"
	"github.com/sys-apps-go/search/internal/what"
)

// Entries are read in batches so a huge directory never has to be held in
// memory at once.
const readDirBatch = 256

// searchDir lists one directory. Names are matched in name mode, regular
// files are scanned inline in content mode, and subdirectories are handed
// back to the queue in recursive mode. Symbolic links and entries whose names
// are not valid UTF-8 are never followed or reported. Errors skip the
// offending entry, never the whole run.
func (s *Searcher) searchDir(dir string, tx *queue.Sender[workItem], results *queue.Sender[string]) {
	f, err := os.Open(dir)
	if err != nil {
		s.log.Errorf(dir, "reading directory", err)
		return
	}
	defer f.Close()

	for {
		entries, err := f.ReadDir(readDirBatch)
		for _, ent := range entries {
			s.visit(dir, ent, tx, results)
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.log.Errorf(dir, "getting directory entry", err)
			return
		}
	}
}

func (s *Searcher) visit(dir string, ent fs.DirEntry, tx *queue.Sender[workItem], results *queue.Sender[string]) {
	typ := ent.Type()
	if typ&fs.ModeSymlink != 0 {
		return
	}
	name := ent.Name()
	if !utf8.ValidString(name) {
		return
	}
	if s.req.SkipHidden && common.IsHidden(name) {
		return
	}
	fullPath := filepath.Join(dir, name)
	isDir := typ.IsDir()

	if s.req.ContentMode() {
		if typ.IsRegular() {
			s.searchFile(fullPath, results)
		}
	} else if s.matchName(name) {
		if isDir {
			s.emit(results, fullPath+string(filepath.Separator))
		} else {
			s.emit(results, fullPath)
		}
	}

	if s.req.Recursive && isDir {
		if err := tx.Send(workItem{path: fullPath, tx: tx.Clone()}); err != nil {
			s.log.Fatalf("worker receiver has been dropped")
		}
	}
}

func (s *Searcher) matchName(name string) bool {
	if s.req.Insensitive {
		name = what.LowerASCII(name)
	}
	return s.req.What.Matches(name)
}

// searchFile applies the extension and content-type filters, then scans or
// rewrites the file.
func (s *Searcher) searchFile(path string, results *queue.Sender[string]) {
	if s.classifier.Ignored(path) {
		return
	}
	isText, err := s.classifier.IsText(path)
	if err != nil {
		s.log.Errorf(path, "inferring file type", err)
		return
	}
	if !isText {
		return
	}
	if s.req.Replace != nil {
		s.replaceFile(path, *s.req.Replace)
		return
	}
	s.scanFile(path, results)
}

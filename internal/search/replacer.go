package search

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// TempSuffix is appended to a file's name to form the sibling that receives
// rewritten content before it is renamed over the original.
const TempSuffix = ".search-tmp"

var errLocked = errors.New("file is locked by another process")

// File operations used by replaceFile. Tests swap them to inject failures.
var (
	openSource = func(name string) (io.ReadCloser, error) {
		return os.Open(name)
	}
	createTemp = func(name string, perm os.FileMode) (io.WriteCloser, error) {
		return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	}
	renameFile = os.Rename
)

// replaceFile streams path into a sibling temp file with every match
// substituted, then renames the temp file over path. A read or write failure
// removes the temp file and leaves the original untouched. A failed rename
// leaves the temp file in place. Content after the first line that is not
// valid UTF-8 is dropped and the shortened result is still renamed into
// place.
func (s *Searcher) replaceFile(path, to string) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		s.log.Errorf(path, "locking file", err)
		return
	}
	if !locked {
		s.log.Errorf(path, "locking file", errLocked)
		return
	}
	defer lock.Unlock()

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	in, err := openSource(path)
	if err != nil {
		s.log.Errorf(path, "opening file", err)
		return
	}
	defer in.Close()

	tempPath := path + TempSuffix
	tmp, err := createTemp(tempPath, perm)
	if err != nil {
		s.log.Errorf(tempPath, "creating temp file", err)
		return
	}

	abort := func(errPath, action string, err error) {
		s.log.Errorf(errPath, action, err)
		tmp.Close()
		if err := os.Remove(tempPath); err != nil {
			s.log.Errorf(tempPath, "removing file", err)
		}
	}

	w := bufio.NewWriter(tmp)
	lr := newLineReader(in)
	for {
		line, err := lr.next()
		if errors.Is(err, io.EOF) || errors.Is(err, errInvalidData) {
			break
		}
		if err != nil {
			abort(path, "reading line", err)
			return
		}
		if _, err := w.WriteString(s.req.What.Replace(line, to) + "\n"); err != nil {
			abort(tempPath, "writing to file", err)
			return
		}
	}
	if err := w.Flush(); err != nil {
		abort(tempPath, "flushing to file", err)
		return
	}
	if err := tmp.Close(); err != nil {
		abort(tempPath, "closing file", err)
		return
	}

	if err := renameFile(tempPath, path); err != nil {
		s.log.Errorf(fmt.Sprintf("%s, %s", tempPath, path), "renaming file", err)
	}
}

package search

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sys-apps-go/search/internal/queue"
	"github.com/sys-apps-go/search/internal/what"
)

// errInvalidData marks a line that is not valid UTF-8. Readers treat it as
// the end of the file's text.
var errInvalidData = errors.New("stream did not contain valid UTF-8")

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// next returns the following line without its "\n" or "\r\n" terminator.
// It returns io.EOF once input is exhausted and errInvalidData for a line
// that does not decode as UTF-8. Lines are unbounded in length.
func (lr *lineReader) next() (string, error) {
	line, err := lr.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", errInvalidData
	}
	return line, nil
}

// scanFile tests the file line by line. In the default mode the first
// matching line emits the path and ends the scan. With line numbers or
// counts requested the whole file is read and a single summary is emitted
// if anything matched.
func (s *Searcher) scanFile(path string, results *queue.Sender[string]) {
	f, err := os.Open(path)
	if err != nil {
		s.log.Errorf(path, "opening file", err)
		return
	}
	defer f.Close()

	var (
		count   int
		linenos []int
	)
	lr := newLineReader(f)
	for lineno := 1; ; lineno++ {
		line, err := lr.next()
		if errors.Is(err, io.EOF) || errors.Is(err, errInvalidData) {
			break
		}
		if err != nil {
			s.log.Errorf(path, "reading line", err)
			return
		}
		if s.req.Insensitive {
			line = what.LowerASCII(line)
		}
		if !s.req.What.Matches(line) {
			continue
		}
		switch {
		case s.req.Linenos:
			linenos = append(linenos, lineno)
		case s.req.Counts:
			count++
		default:
			s.emit(results, path)
			return
		}
	}

	if out, ok := formatMatch(path, linenos, count, s.req.Linenos, s.req.Counts); ok {
		s.emit(results, out)
	}
}

// formatMatch renders a content summary:
//
//	path | 3,7,9          line numbers
//	path | 3,7,9 | (3)    line numbers and count
//	path | (3)            count only
//
// ok is false when nothing matched.
func formatMatch(path string, linenos []int, count int, withLinenos, withCounts bool) (string, bool) {
	if withLinenos {
		if len(linenos) == 0 {
			return "", false
		}
		nums := make([]string, len(linenos))
		for i, n := range linenos {
			nums[i] = strconv.Itoa(n)
		}
		if withCounts {
			return fmt.Sprintf("%s | %s | (%d)", path, strings.Join(nums, ","), len(linenos)), true
		}
		return fmt.Sprintf("%s | %s", path, strings.Join(nums, ",")), true
	}
	if withCounts && count > 0 {
		return fmt.Sprintf("%s | (%d)", path, count), true
	}
	return "", false
}

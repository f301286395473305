// Package classify decides whether a file's content is worth scanning.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classifier filters files by extension and by sniffed content type.
type Classifier struct {
	ignore map[string]struct{}
}

// New returns a Classifier that rejects the given extensions. Extensions are
// compared case-sensitively and may be given with or without a leading dot.
func New(ignoreExts []string) *Classifier {
	c := &Classifier{ignore: make(map[string]struct{}, len(ignoreExts))}
	for _, ext := range ignoreExts {
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			c.ignore[ext] = struct{}{}
		}
	}
	return c
}

// Ignored reports whether path carries an ignored extension.
func (c *Classifier) Ignored(path string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	_, ok := c.ignore[ext]
	return ok
}

// IsText sniffs the head of the file and reports whether it may be scanned.
// Only files recognised as a concrete type outside the text family are
// rejected. Content with no recognised signature is reported as text and
// left to the line reader, which stops at the first line that is not UTF-8.
func (c *Classifier) IsText(path string) (bool, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	return isText(mt), nil
}

func isText(mt *mimetype.MIME) bool {
	if mt.Parent() == nil {
		// The root of the tree, application/octet-stream: nothing matched.
		return true
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

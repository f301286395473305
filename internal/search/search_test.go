package search

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sys-apps-go/search/internal/logger"
	"github.com/sys-apps-go/search/internal/what"
)

// writeTree creates files under root. Keys ending in "/" create directories.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type runResult struct {
	lines  []string
	stderr string
}

func runSearch(t *testing.T, opts Options) runResult {
	t.Helper()
	req, err := NewRequest(opts)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	log := logger.New(&errOut, opts.Mute, false)
	log.SetExit(func(int) { t.Errorf("unexpected fatal error: %s", errOut.String()) })

	require.NoError(t, New(req, log, &out).Run())
	return runResult{lines: splitLines(out.String()), stderr: errOut.String()}
}

func TestNameSearchNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"needle.txt":          "",
		"other.txt":           "needle",
		"needle_dir/":         "",
		"sub/needle_deep.txt": "",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Threads: 4})
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "needle.txt"),
		filepath.Join(root, "needle_dir") + string(filepath.Separator),
	}, res.lines)
	assert.Empty(t, res.stderr)
}

func TestNameSearchRecursive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"needle.txt":            "",
		"a/b/c/needle.md":       "",
		"a/b/needle/":           "",
		"a/b/needle/inside.txt": "",
		"a/plain.txt":           "",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true, Threads: 3})
	sep := string(filepath.Separator)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "needle.txt"),
		filepath.Join(root, "a", "b", "c", "needle.md"),
		filepath.Join(root, "a", "b", "needle") + sep,
	}, res.lines)
}

func TestSymlinksAreNeverFollowedOrReported(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	writeTree(t, root, map[string]string{"needle.txt": "needle"})
	writeTree(t, target, map[string]string{"needle_inside.txt": "needle"})

	require.NoError(t, os.Symlink(filepath.Join(root, "needle.txt"), filepath.Join(root, "needle_link.txt")))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "needle_dirlink")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	names := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true, Threads: 2})
	assert.Equal(t, []string{filepath.Join(root, "needle.txt")}, names.lines)

	content := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true, Content: true, Threads: 2})
	assert.Equal(t, []string{filepath.Join(root, "needle.txt")}, content.lines)
}

func TestSortIsDeterministic(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("d%d/match_%02d.txt", i%5, i)] = ""
	}
	writeTree(t, root, files)

	opts := Options{What: "match", Paths: []string{root}, Recursive: true, Sort: true, Threads: 8}
	first := runSearch(t, opts)
	second := runSearch(t, opts)

	require.Len(t, first.lines, 40)
	assert.Equal(t, first.lines, second.lines)
	assert.True(t, sort.StringsAreSorted(first.lines))

	opts.Sort = false
	unsorted := runSearch(t, opts)
	assert.ElementsMatch(t, first.lines, unsorted.lines)
}

func TestLineNumbersAndCounts(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		if i == 3 || i == 7 || i == 9 {
			b.WriteString("a needle here\n")
		} else {
			b.WriteString("nothing\n")
		}
	}
	writeTree(t, root, map[string]string{"f.txt": b.String(), "none.txt": "nothing\n"})
	path := filepath.Join(root, "f.txt")

	tests := []struct {
		name    string
		linenos bool
		counts  bool
		want    string
	}{
		{"first match", false, false, path},
		{"line numbers", true, false, path + " | 3,7,9"},
		{"counts", false, true, path + " | (3)"},
		{"line numbers and counts", true, true, path + " | 3,7,9 | (3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runSearch(t, Options{
				What: "needle", Paths: []string{root}, Content: true,
				Linenos: tt.linenos, Counts: tt.counts, Threads: 2,
			})
			assert.Equal(t, []string{tt.want}, res.lines)
		})
	}
}

func TestIgnoreExtsScenario(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "hello\nworld\n",
		"b.log": "hello\n",
	})
	chdir(t, root)

	res := runSearch(t, Options{What: "hello", Content: true, IgnoreExts: []string{"log"}, Threads: 2})
	assert.Equal(t, []string{"a.txt"}, res.lines)
}

func TestRecursiveLineNumberScenario(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"root/sub/deep.txt": "one\ntwo\nthree\nfour\nneedle\nsix\n",
	})
	chdir(t, dir)

	res := runSearch(t, Options{
		What: "needle", Paths: []string{"root"}, Recursive: true, Content: true, Linenos: true, Threads: 4,
	})
	assert.Equal(t, []string{"root/sub/deep.txt | 5"}, res.lines)
}

func TestDotRootPrefixIsStripped(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"needle.txt": "needle"})
	chdir(t, dir)

	res := runSearch(t, Options{What: "needle", Paths: []string{"./needle.txt"}, Content: true})
	assert.Equal(t, []string{"needle.txt"}, res.lines)
}

func TestContentSearchNonRecursiveStaysAtTop(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"top.txt":     "needle",
		"sub/low.txt": "needle",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true, Threads: 2})
	assert.Equal(t, []string{filepath.Join(root, "top.txt")}, res.lines)
}

func TestInsensitive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"NeedleName.txt": "nothing",
		"body.txt":       "a NEEDLE in caps",
	})

	names := runSearch(t, Options{What: "NEEDLE", Paths: []string{root}, Insensitive: true})
	assert.Equal(t, []string{filepath.Join(root, "NeedleName.txt")}, names.lines)

	content := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true, Insensitive: true})
	assert.Equal(t, []string{filepath.Join(root, "body.txt")}, content.lines)

	sensitive := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true})
	assert.Empty(t, sensitive.lines)
}

func TestRegexContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "id: 42\n",
		"b.txt": "id: none\n",
	})

	res := runSearch(t, Options{What: `id: \d+`, Regex: true, Paths: []string{root}, Content: true})
	assert.Equal(t, []string{filepath.Join(root, "a.txt")}, res.lines)
}

func TestBinaryFilesAreNotScanned(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"image.png": "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR needle",
		"blob.dat":  "\x00\xff\x00needle\n",
		"text.txt":  "needle",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true})
	assert.Equal(t, []string{filepath.Join(root, "text.txt")}, res.lines)
}

func TestUnrecognisedContentIsScanned(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"log.txt":  "needle here\nstray \x01 control byte\n",
		"nul.txt":  "needle here\nfoo\x00bar\n",
		"late.txt": "foo\x00bar\nneedle\n",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true, Linenos: true})
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "log.txt") + " | 1",
		filepath.Join(root, "nul.txt") + " | 1",
		filepath.Join(root, "late.txt") + " | 2",
	}, res.lines)
}

func TestInvalidUTF8EndsScan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"before.txt": "needle\nbad \xff\xfd line\n",
		"after.txt":  "ok\nbad \xff\xfd line\nneedle\n",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Content: true, Linenos: true})
	assert.Equal(t, []string{filepath.Join(root, "before.txt") + " | 1"}, res.lines)
	assert.Empty(t, res.stderr)
}

func TestThreadCountInvariance(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	var want []string
	for i := 0; i < 500; i++ {
		dir := fmt.Sprintf("d%d/e%d", i%7, i%3)
		name := fmt.Sprintf("file_%03d.txt", i)
		if i%10 == 0 {
			name = fmt.Sprintf("match_%03d.txt", i)
			want = append(want, filepath.Join(root, filepath.FromSlash(dir), name))
		}
		files[dir+"/"+name] = ""
	}
	writeTree(t, root, files)
	require.Len(t, want, 50)

	for _, threads := range []int{1, 8} {
		res := runSearch(t, Options{What: "match", Paths: []string{root}, Recursive: true, Threads: threads})
		assert.ElementsMatch(t, want, res.lines, "threads=%d", threads)
	}
}

func TestMultipleRootsAndMissingRoot(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeTree(t, a, map[string]string{"needle1": ""})
	writeTree(t, b, map[string]string{"needle2": ""})
	missing := filepath.Join(a, "does-not-exist")

	res := runSearch(t, Options{What: "needle", Paths: []string{a, missing, b}, Threads: 2})
	assert.ElementsMatch(t, []string{filepath.Join(a, "needle1"), filepath.Join(b, "needle2")}, res.lines)
	assert.Contains(t, res.stderr, missing+": error getting metadata")

	muted := runSearch(t, Options{What: "needle", Paths: []string{missing}, Mute: true})
	assert.Empty(t, muted.lines)
	assert.Empty(t, muted.stderr)
}

func TestFileRootIsSearchedByContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"needle.txt": "", "other.txt": "needle"})

	res := runSearch(t, Options{
		What:  "needle",
		Paths: []string{filepath.Join(root, "needle.txt"), filepath.Join(root, "other.txt")},
	})
	assert.Equal(t, []string{filepath.Join(root, "other.txt")}, res.lines)
}

func TestNonUTF8NamesAreSkipped(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "needle\xff")
	if err := os.WriteFile(bad, []byte("needle"), 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "dir\xfe"), 0o755); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	writeTree(t, root, map[string]string{
		"dir\xfe/needle.txt": "needle",
		"needle.txt":         "needle",
	})

	names := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true})
	assert.Equal(t, []string{filepath.Join(root, "needle.txt")}, names.lines)

	content := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true, Content: true})
	assert.Equal(t, []string{filepath.Join(root, "needle.txt")}, content.lines)
}

func TestSkipHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".hidden/needle.txt": "",
		".needle":            "",
		"needle.txt":         "",
	})

	res := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true, SkipHidden: true})
	assert.Equal(t, []string{filepath.Join(root, "needle.txt")}, res.lines)

	all := runSearch(t, Options{What: "needle", Paths: []string{root}, Recursive: true})
	assert.Len(t, all.lines, 3)
}

func TestUnreadableDirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"locked/needle.txt": "",
		"open/needle.txt":   "",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	res := runSearch(t, Options{What: "needle.txt", Paths: []string{root}, Recursive: true})
	assert.Equal(t, []string{filepath.Join(root, "open", "needle.txt")}, res.lines)
	assert.Contains(t, res.stderr, locked+": error reading directory")
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(Options{What: `\--foo`})
	require.NoError(t, err)
	assert.Equal(t, "--foo", req.What.Pattern())
	assert.Equal(t, []string{"."}, req.Paths)
	assert.Equal(t, 1, req.Threads)
	assert.False(t, req.ContentMode())

	to := "x"
	req, err = NewRequest(Options{What: "a", Replace: &to})
	require.NoError(t, err)
	assert.True(t, req.ContentMode())

	_, err = NewRequest(Options{What: "(", Regex: true})
	var perr *what.PatternError
	assert.True(t, errors.As(err, &perr))
}

func TestWorkerPanicIsReported(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": ""})

	// A nil predicate makes name matching panic inside the worker.
	req := &Request{Options: Options{Paths: []string{root}, Threads: 2}}

	var out, errOut bytes.Buffer
	log := logger.New(&errOut, false, false)
	require.NoError(t, New(req, log, &out).Run())

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "error joining worker")
	assert.Contains(t, errOut.String(), "panicked")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDaily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	w := NewWriteDaily(dir)
	require.NoError(t, w.WriteString("line 1\n"))
	require.NoError(t, w.WriteString("line 2\n"))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	// Close is idempotent
	require.NoError(t, w.Close())

	name := time.Now().UTC().Format("2006-01-02") + ".txt"
	d, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", string(d))

	// re-opens and appends
	require.NoError(t, w.WriteString("line 3\n"))
	require.NoError(t, w.Close())
	d, err = os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\nline 3\n", string(d))

	var nilw *WriteDaily
	assert.NoError(t, nilw.WriteString("ignored"))
	assert.NoError(t, nilw.Close())
}

func TestFormatEvent(t *testing.T) {
	tm := time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)
	d := FormatEvent("wrote", tm)
	assert.Equal(t, "# wrote 2024-03-05T10:11:12Z\n", string(d))

	d = FormatEvent("wrote", tm, "records", 2, "path", "quijote0.seq")
	s := string(d)
	assert.True(t, strings.HasPrefix(s, "# wrote 2024-03-05T10:11:12Z\n"))
	assert.Contains(t, s, "records")
	assert.Contains(t, s, "quijote0.seq")
	assert.True(t, strings.HasSuffix(s, "\n"))

	assert.Panics(t, func() { FormatEvent("bad", tm, "odd") })
	assert.Panics(t, func() { FormatEvent("bad", tm, []string{"a"}, 1) })
}

func TestLogToFiles(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	defer func() { Output = prev }()

	dir := t.TempDir()
	Init(&Config{Dir: dir})
	Logf("hello %s\n", "world")
	Verbosef("not logged\n")
	Errorf("something failed")
	Event("wrote", "records", 3)
	Close()

	assert.Equal(t, "hello world\nsomething failed\n", buf.String())
	name := time.Now().UTC().Format("2006-01-02") + ".txt"
	d, err := os.ReadFile(filepath.Join(dir, "log", name))
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsomething failed\n", string(d))

	d, err = os.ReadFile(filepath.Join(dir, "errors", name))
	require.NoError(t, err)
	assert.Contains(t, string(d), "something failed\n")
	assert.Contains(t, string(d), "log_test.go")

	d, err = os.ReadFile(filepath.Join(dir, "events", name))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(d), "# wrote "))

	// after Close, Event is a no-op
	Event("ignored")
}

func TestIfErrf(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	defer func() { Output = prev }()

	assert.False(t, IfErrf(nil))
	assert.True(t, IfErrf(os.ErrNotExist))
	assert.True(t, IfErrf(os.ErrNotExist, "failed with %d", 5))
	assert.Equal(t, "file does not exist\nfailed with 5\n", buf.String())
}

package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/logging"
	"github.com/shimomut/tfm-sub008/internal/vpath/local"
)

// runSearch submits Search through a real Runner so the test exercises the
// same jobs.Progress plumbing the CLI action layer uses.
func runSearch(t *testing.T, dir string, opts Options) []Match {
	t.Helper()
	runner := jobs.New(1, logging.Nop(), nil)
	done := make(chan []Match, 1)
	runner.Submit(context.Background(), jobs.KindSearch, dir, func(ctx context.Context, p *jobs.Progress) error {
		results, err := Search(ctx, local.New(dir), opts, p)
		if err != nil {
			t.Errorf("Search: %v", err)
		}
		done <- results
		return err
	})
	return <-done
}

func runGrep(t *testing.T, dir string, opts Options) []GrepMatch {
	t.Helper()
	runner := jobs.New(1, logging.Nop(), nil)
	done := make(chan []GrepMatch, 1)
	runner.Submit(context.Background(), jobs.KindGrep, dir, func(ctx context.Context, p *jobs.Progress) error {
		results, err := Grep(ctx, local.New(dir), opts, p)
		if err != nil {
			t.Errorf("Grep: %v", err)
		}
		done <- results
		return err
	})
	return <-done
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSearchGlobMatchesAcrossSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "world")
	writeFile(t, filepath.Join(dir, "sub", "c.go"), "package sub")

	results := runSearch(t, dir, Options{Pattern: "*.txt"})
	require.Len(t, results, 2, "%v", results)
}

func TestSearchRegexMatchesName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "report_2024.csv"), "x")
	writeFile(t, filepath.Join(dir, "notes.md"), "x")

	results := runSearch(t, dir, Options{Pattern: `report_\d+\.csv`, Regex: true})
	require.Len(t, results, 1)
}

func TestGrepSubstringFindsLineAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "line one\nTODO fix this\nline three")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "nothing here")

	results := runGrep(t, dir, Options{Pattern: "TODO"})
	require.Len(t, results, 1, "%v", results)
	require.Equal(t, 2, results[0].Line)
}

func TestGrepRegexMatchesMultipleLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "err1\nok\nerr2")

	results := runGrep(t, dir, Options{Pattern: `^err\d`, Regex: true})
	require.Len(t, results, 2)
}

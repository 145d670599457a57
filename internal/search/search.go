// Package search implements the JobRunner's search and grep task kinds
// (spec.md §4.10: "search (filename glob/regex over a subtree), grep
// (content search)"). Both walk a subtree via vpath.Path.Iterdir, yielding
// cooperatively at each directory boundary so the caller's
// jobs.Progress.Cancelled check (spec.md §4.10, "Suspension") can stop the
// walk between directories. There is no rclone analogue for recursive
// filename/content search (fs/operations' Walk helpers are filtered out of
// this retrieval), so the walk shape follows vpath.Iterator's own
// "Iterdir again to restart" contract (spec.md §9) directly; regexp and
// path.Match are stdlib because no pack dependency offers glob/regex
// matching (DESIGN.md records this).
package search

import (
	"bufio"
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// Match is one filename-search hit.
type Match struct {
	Path vpath.Path
}

// GrepMatch is one content-search hit: a line within a file.
type GrepMatch struct {
	Path vpath.Path
	Line int
	Text string
}

// Options configures a name or content search (spec.md §4.13's List
// dialog is the natural consumer of either result set).
type Options struct {
	Pattern string
	Regex   bool // if false, Pattern is a path.Match-style glob
}

func (o Options) matcher() (func(name string) bool, error) {
	if o.Regex {
		re, err := regexp.Compile(o.Pattern)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}
	return func(name string) bool {
		ok, err := path.Match(o.Pattern, name)
		return err == nil && ok
	}, nil
}

// lineMatcher builds a content matcher for Grep: a compiled regexp when
// Options.Regex is set, otherwise plain substring containment.
func (o Options) lineMatcher() (func(line string) bool, error) {
	if o.Regex {
		re, err := regexp.Compile(o.Pattern)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}
	return func(line string) bool {
		return strings.Contains(line, o.Pattern)
	}, nil
}

// Search walks root recursively, matching each entry's name against
// Options (spec.md §4.10's "search" task kind). It yields at every
// directory boundary via p.Cancelled (spec.md §4.10, "Suspension").
func Search(ctx context.Context, root vpath.Path, opts Options, p *jobs.Progress) ([]Match, error) {
	match, err := opts.matcher()
	if err != nil {
		return nil, err
	}
	var results []Match
	var walk func(dir vpath.Path) error
	walk = func(dir vpath.Path) error {
		if p.Cancelled() {
			return nil
		}
		it, err := dir.Iterdir(ctx)
		if err != nil {
			return err
		}
		for {
			if p.Cancelled() {
				return nil
			}
			child, ok, err := it.Next(ctx)
			if err != nil {
				p.Advance(dir.URI(), err)
				return nil
			}
			if !ok {
				return nil
			}
			if match(child.Name()) {
				results = append(results, Match{Path: child})
			}
			p.Advance(child.URI(), nil)
			isDir, err := child.IsDir(ctx)
			if err == nil && isDir {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return results, nil
}

// Grep walks root recursively, scanning the text contents of every
// regular file for Pattern (spec.md §4.10's "grep" task kind). Contents are
// decoded by ReadText's UTF-8/Latin-1/CP-1252 fallback, which never fails,
// so binary files are scanned as Latin-1 text rather than skipped. A file
// whose read fails is skipped rather than reported as an error, since a
// best-effort content scan should not stop at the first unreadable file.
func Grep(ctx context.Context, root vpath.Path, opts Options, p *jobs.Progress) ([]GrepMatch, error) {
	match, err := opts.lineMatcher()
	if err != nil {
		return nil, err
	}
	var results []GrepMatch
	var walk func(dir vpath.Path) error
	walk = func(dir vpath.Path) error {
		if p.Cancelled() {
			return nil
		}
		it, err := dir.Iterdir(ctx)
		if err != nil {
			return err
		}
		for {
			if p.Cancelled() {
				return nil
			}
			child, ok, err := it.Next(ctx)
			if err != nil {
				p.Advance(dir.URI(), err)
				return nil
			}
			if !ok {
				return nil
			}
			isDir, err := child.IsDir(ctx)
			if err != nil {
				p.Advance(child.URI(), err)
				continue
			}
			if isDir {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			text, err := child.ReadText(ctx)
			if err != nil {
				p.Advance(child.URI(), nil)
				continue
			}
			scanner := bufio.NewScanner(strings.NewReader(text))
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				if match(scanner.Text()) {
					results = append(results, GrepMatch{Path: child, Line: lineNo, Text: scanner.Text()})
				}
			}
			p.Advance(child.URI(), nil)
		}
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return results, nil
}

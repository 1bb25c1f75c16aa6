package packer

import (
	"io/fs"
	"path/filepath"
)

// IncludeRule pairs a raw include pattern with its dialect and anchor
// mode, as read from a pattern/include list.
type IncludeRule struct {
	Pattern string
	Type    PatternType
	Mode    MatchMode
}

// ExcludeRule is the same shape for the exclude list, applied after
// every include rule matches.
type ExcludeRule = IncludeRule

// Collector walks the filesystem rooted at each include rule's base
// path, applies include-then-exclude matching, and pushes the names
// of regular files onto a Queue for the Packer to consume.
type Collector struct {
	includes []compiledRule
	excludes []compiledRule
	queue    *Queue
	followSymlinks bool
}

type compiledRule struct {
	base    string
	pattern *Pattern
}

// NewCollector compiles includes/excludes and returns a Collector
// that will feed q. followSymlinks controls whether symlink entries
// that match are pushed onto the queue; symlinked directories are never
// descended into during the walk.
func NewCollector(includes, excludes []IncludeRule, q *Queue, followSymlinks bool) (*Collector, error) {
	c := &Collector{queue: q, followSymlinks: followSymlinks}
	for _, r := range includes {
		p, err := Compile(r.Pattern, r.Type, r.Mode)
		if err != nil {
			return nil, err
		}
		c.includes = append(c.includes, compiledRule{base: BasePath(r.Pattern), pattern: p})
	}
	for _, r := range excludes {
		p, err := Compile(r.Pattern, r.Type, r.Mode)
		if err != nil {
			return nil, err
		}
		c.excludes = append(c.excludes, compiledRule{pattern: p})
	}
	return c, nil
}

// Run walks every include rule's base path and pushes matching
// regular file names onto the queue, closing it once every rule has
// been drained regardless of outcome.
func (c *Collector) Run() error {
	defer c.queue.Close()

	seen := make(map[string]struct{})
	for _, rule := range c.includes {
		err := filepath.WalkDir(rule.base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !c.followSymlinks && d.Type()&fs.ModeSymlink != 0 {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 && !c.followSymlinks {
				return nil
			}
			if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			if !rule.pattern.Match(path) {
				return nil
			}
			if c.excluded(path) {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			c.queue.Push(path)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) excluded(path string) bool {
	for _, rule := range c.excludes {
		if rule.pattern.Match(path) {
			return true
		}
	}
	return false
}

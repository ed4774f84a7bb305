package sstable

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cqlite/cqlite/cqlerr"
)

const component = "sstable"

// componentFileName matches one SSTable component file: a generation
// prefix ("na", "me", ...), a generation number, a format tag ("big"
// or "bti"), and the component name itself. TOC.txt and *.crc32
// sidecars share the same naming convention with a different
// extension.
var componentFileName = regexp.MustCompile(`^([a-zA-Z]+)-(\d+)-([a-zA-Z]+)-([A-Za-z0-9]+)\.(db|txt|crc32)$`)

// Generation groups every component file sharing one generation id
// within a single directory.
type Generation struct {
	Prefix     string // generation-id prefix, e.g. "na", "me", "oa"
	Number     string
	FormatTag  string // "big" or "bti", as encoded in the filename
	Dir        string
	Components map[string]string // component name ("Data", "Index", "TOC", ...) -> path
}

// Discover scans the directory containing path (path itself may be a
// single component file, or the directory of a single- or multi-
// generation table) and groups every recognized component file into
// its Generation, in ascending numeric generation-number order (ties
// broken by the prefix-number-tag name).
func Discover(path string) ([]Generation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Io, component, err, "stat %s", path)
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Io, component, err, "reading directory %s", dir)
	}

	gens := map[string]*Generation{}
	var order []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := componentFileName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		key := m[1] + "-" + m[2] + "-" + m[3]
		g, ok := gens[key]
		if !ok {
			g = &Generation{Prefix: m[1], Number: m[2], FormatTag: m[3], Dir: dir, Components: map[string]string{}}
			gens[key] = g
			order = append(order, key)
		}
		g.Components[m[4]] = filepath.Join(dir, e.Name())
	}
	if len(gens) == 0 {
		return nil, cqlerr.New(cqlerr.UnsupportedFormat, component, "no SSTable component files found under %s", dir)
	}

	// Number is the zero-padding-free decimal generation id from the
	// filename (e.g. "2", "10"); comparing it as a string would put
	// "10" before "2", so sort numerically and fall back to the
	// (prefix, tag) key only to break ties or when a number somehow
	// doesn't parse.
	sort.Slice(order, func(i, j int) bool {
		gi, gj := gens[order[i]], gens[order[j]]
		ni, ei := strconv.ParseUint(gi.Number, 10, 64)
		nj, ej := strconv.ParseUint(gj.Number, 10, 64)
		if ei == nil && ej == nil && ni != nj {
			return ni < nj
		}
		return order[i] < order[j]
	})
	out := make([]Generation, 0, len(order))
	for _, k := range order {
		out = append(out, *gens[k])
	}
	return out, nil
}

// validate checks that the minimum required component set is present
// and that the index-family components form exactly one of the two
// consistent combinations: Big's Index+Summary, or BTI's
// Partitions+Rows, never a mix or neither.
func (g Generation) validate() error {
	for _, req := range []string{"Data", "Statistics", "TOC"} {
		if _, ok := g.Components[req]; !ok {
			return cqlerr.New(cqlerr.UnsupportedFormat, component, "generation %s-%s-%s missing required component %s", g.Prefix, g.Number, g.FormatTag, req)
		}
	}
	_, hasIndex := g.Components["Index"]
	_, hasSummary := g.Components["Summary"]
	_, hasPartitions := g.Components["Partitions"]
	_, hasRows := g.Components["Rows"]
	switch {
	case hasIndex && hasSummary && !hasPartitions && !hasRows:
		return nil
	case hasPartitions && hasRows && !hasIndex && !hasSummary:
		return nil
	default:
		return cqlerr.New(cqlerr.UnsupportedFormat, component, "generation %s-%s-%s has an inconsistent index component combination", g.Prefix, g.Number, g.FormatTag)
	}
}

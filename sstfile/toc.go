package sstfile

import (
	"bufio"
	"io"
	"strings"

	"github.com/cqlite/cqlite/cqlerr"
)

// ReadTOC parses TOC.txt: one component name per line (e.g. "Data.db",
// "Statistics.db"), blank lines ignored. The sstable facade only checks
// that the list names Data.db and Statistics.db; it does not check the
// other entries against the files on disk, and it opens components from
// the directory listing, whether or not TOC.txt lists them.
func ReadTOC(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, cqlerr.Wrap(cqlerr.Io, component, err, "reading TOC.txt")
	}
	return names, nil
}

// HasComponent reports whether names (as returned by ReadTOC) contains
// the given component file name, case-sensitively.
func HasComponent(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

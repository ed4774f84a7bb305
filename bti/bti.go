// Package bti decodes the Cassandra 5 "da" (BTI) trie-indexed SSTable
// variant: Partitions.db's partition-key trie and the per-partition
// clustering-key mini-tries stored in Rows.db. Once a trie lookup has
// resolved a Data.db byte offset, partition/row/cell decoding is
// identical to the Big format and is delegated straight to bigformat
// rather than reimplemented here.
package bti

import (
	"bytes"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

const component = "bti"

type nodeType int

const (
	payloadOnlyNode nodeType = iota
	singleNode
	sparseNode
	denseNode
)

const (
	nodePayloadFlag      = 0x08
	nodePointerWidthMask = 0x07
)

// childEdge is one outgoing transition of a trie node, resolved to an
// absolute byte offset of the child node.
type childEdge struct {
	transition byte
	offset     uint64
}

// parsedNode is one trie node's header and child table, already walked
// past regardless of shape, with payloadStart pointing at whatever
// shape-specific payload bytes follow (meaningful only if hasPayload).
type parsedNode struct {
	hasPayload   bool
	payloadStart uint64
	children     []childEdge // ascending by transition byte
}

// parseNode reads the node at offset: a 1-byte header (high nibble =
// node shape, low nibble = has-payload flag + pointer width code) plus
// a shape-specific child table.
//
//   - PAYLOAD_ONLY has no children.
//   - SINGLE: one transition byte, one pointer.
//   - SPARSE: a VInt count, that many ascending transition bytes, then
//     that many pointers (binary-searchable).
//   - DENSE: a first/last byte pair, then one pointer per byte in that
//     inclusive range (missing entries read back as "no child").
func parseNode(buf []byte, offset uint64) (parsedNode, error) {
	if offset >= uint64(len(buf)) {
		return parsedNode{}, cqlerr.New(cqlerr.Corrupt, component, "trie node offset %d out of range (size %d)", offset, len(buf))
	}
	header := buf[offset]
	kind := nodeType(header >> 4)
	hasPayload := header&nodePayloadFlag != 0
	ptrWidth := int(header&nodePointerWidthMask) + 1
	pos := offset + 1

	var children []childEdge

	switch kind {
	case payloadOnlyNode:
		// no children

	case singleNode:
		if pos >= uint64(len(buf)) {
			return parsedNode{}, cqlerr.New(cqlerr.Truncated, component, "single trie node truncated at offset %d", offset)
		}
		transition := buf[pos]
		pos++
		ptr, ok, consumed, err := readPointer(buf, pos, ptrWidth, offset)
		if err != nil {
			return parsedNode{}, err
		}
		pos += uint64(consumed)
		if ok {
			children = append(children, childEdge{transition, ptr})
		}

	case sparseNode:
		count, n, err := vint.ReadVInt(bytes.NewReader(buf[pos:]))
		if err != nil {
			return parsedNode{}, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading sparse trie node count at offset %d", offset)
		}
		pos += uint64(n)
		if pos+count > uint64(len(buf)) {
			return parsedNode{}, cqlerr.New(cqlerr.Truncated, component, "sparse trie node transitions truncated at offset %d", offset)
		}
		transitions := buf[pos : pos+count]
		pos += count
		for i := uint64(0); i < count; i++ {
			ptr, ok, consumed, err := readPointer(buf, pos, ptrWidth, offset)
			if err != nil {
				return parsedNode{}, err
			}
			pos += uint64(consumed)
			if ok {
				children = append(children, childEdge{transitions[i], ptr})
			}
		}

	case denseNode:
		if pos+2 > uint64(len(buf)) {
			return parsedNode{}, cqlerr.New(cqlerr.Truncated, component, "dense trie node range truncated at offset %d", offset)
		}
		first, last := buf[pos], buf[pos+1]
		pos += 2
		n := int(last) - int(first) + 1
		for i := 0; i < n; i++ {
			ptr, ok, consumed, err := readPointer(buf, pos, ptrWidth, offset)
			if err != nil {
				return parsedNode{}, err
			}
			pos += uint64(consumed)
			if ok {
				children = append(children, childEdge{first + byte(i), ptr})
			}
		}

	default:
		return parsedNode{}, cqlerr.New(cqlerr.Corrupt, component, "unknown trie node type %d at offset %d", kind, offset)
	}

	return parsedNode{hasPayload: hasPayload, payloadStart: pos, children: children}, nil
}

// readPointer reads one width-byte big-endian child pointer at pos,
// relative to nodeOffset. Raw value 0 means "no child". A pointer
// whose width bytes have every bit set (all 0xFF) is the long-pointer escape: the
// four bytes immediately following it hold the child's absolute
// offset in full, used when the natural relative distance wouldn't
// fit in width bytes (e.g. a child on a distant page).
func readPointer(buf []byte, pos uint64, width int, nodeOffset uint64) (abs uint64, hasChild bool, consumed int, err error) {
	if pos+uint64(width) > uint64(len(buf)) {
		return 0, false, 0, cqlerr.New(cqlerr.Truncated, component, "trie pointer truncated at offset %d", pos)
	}
	var raw uint64
	for i := 0; i < width; i++ {
		raw = raw<<8 | uint64(buf[pos+uint64(i)])
	}
	if raw == 0 {
		return 0, false, width, nil
	}
	if raw == (uint64(1)<<uint(8*width))-1 {
		if pos+uint64(width)+4 > uint64(len(buf)) {
			return 0, false, 0, cqlerr.New(cqlerr.Truncated, component, "long trie pointer truncated at offset %d", pos)
		}
		abs = uint64(buf[pos+uint64(width)])<<24 | uint64(buf[pos+uint64(width)+1])<<16 |
			uint64(buf[pos+uint64(width)+2])<<8 | uint64(buf[pos+uint64(width)+3])
		return abs, true, width + 4, nil
	}

	signBit := uint64(1) << uint(8*width-1)
	var delta int64
	if raw&signBit != 0 {
		delta = int64(raw) - int64(uint64(1)<<uint(8*width))
	} else {
		delta = int64(raw)
	}
	target := int64(nodeOffset) + delta
	if target < 0 {
		return 0, false, 0, cqlerr.New(cqlerr.Corrupt, component, "trie pointer at offset %d resolves to a negative offset", pos)
	}
	return uint64(target), true, width, nil
}

// lookup walks the trie rooted at root matching key byte by byte,
// returning the offset its terminal node's payload bytes start at.
func lookup(buf []byte, root uint64, key []byte) (uint64, bool, error) {
	offset := root
	for _, b := range key {
		n, err := parseNode(buf, offset)
		if err != nil {
			return 0, false, err
		}
		child, ok := findChild(n.children, b)
		if !ok {
			return 0, false, nil
		}
		offset = child
	}
	n, err := parseNode(buf, offset)
	if err != nil {
		return 0, false, err
	}
	if !n.hasPayload {
		return 0, false, nil
	}
	return n.payloadStart, true, nil
}

func findChild(children []childEdge, b byte) (uint64, bool) {
	lo, hi := 0, len(children)
	for lo < hi {
		mid := (lo + hi) / 2
		if children[mid].transition < b {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(children) && children[lo].transition == b {
		return children[lo].offset, true
	}
	return 0, false
}

// walk visits every payload in the trie rooted at offset in ascending
// key order: a node's own payload (if any) sorts before its children's,
// matching the same "shorter prefix first" ordering EncodeText's
// terminator convention already relies on.
func walk(buf []byte, offset uint64, yield func(payloadStart uint64) bool) (bool, error) {
	n, err := parseNode(buf, offset)
	if err != nil {
		return false, err
	}
	if n.hasPayload {
		if !yield(n.payloadStart) {
			return false, nil
		}
	}
	for _, c := range n.children {
		cont, err := walk(buf, c.offset, yield)
		if err != nil {
			return false, err
		}
		if !cont {
			return false, nil
		}
	}
	return true, nil
}

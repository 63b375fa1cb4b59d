// Package affixtree implements a character trie that returns the value of the
// longest registered prefix, or in suffix mode the longest registered suffix,
// of a string.
//
// Keys are walked one code point at a time. Bytes that are not valid UTF-8
// are walked one byte at a time and never match a code point. A Forward tree
// anchors keys at the start of the input, a Backward tree at the end. No
// compaction is done and nothing is ever removed: a tree only grows until it
// is dropped.
//
// A Tree is not safe for concurrent use while Insert is running. Concurrent
// Find calls on a tree nobody is inserting into are fine.
package affixtree

import "unicode/utf8"

// Direction selects which end of a string is anchored at the root.
type Direction int

const (
	// Forward walks strings left to right and matches prefixes.
	Forward Direction = iota
	// Backward walks strings right to left and matches suffixes.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "unknown"
}

// Tree is one node of an affix tree. The value returned by New is the root.
type Tree[T any] struct {
	value    T
	hasValue bool
	children map[rune]*Tree[T]
	dir      Direction
}

// New returns an empty tree walking strings in direction dir.
func New[T any](dir Direction) *Tree[T] {
	return &Tree[T]{dir: dir}
}

// NewPrefix returns an empty Forward tree.
func NewPrefix[T any]() *Tree[T] {
	return New[T](Forward)
}

// NewSuffix returns an empty Backward tree.
func NewSuffix[T any]() *Tree[T] {
	return New[T](Backward)
}

// Direction reports which end of a string the tree anchors at its root.
func (t *Tree[T]) Direction() Direction {
	return t.dir
}

// Insert associates value with key.
//
// It returns InvalidKeyError for an empty key and DuplicateKeyError when key
// already holds a value; in the latter case the stored value is kept. Nodes
// created on the way down to a duplicate are left in place.
func (t *Tree[T]) Insert(key string, value T) error {
	if key == "" {
		return InvalidKeyError{}
	}

	node := t
	t.walk(key, func(r rune) bool {
		node = node.ensureChild(r)
		return true
	})

	if node.hasValue {
		return DuplicateKeyError{Key: key, Value: value}
	}
	node.value = value
	node.hasValue = true
	return nil
}

// Find returns the value of the longest inserted key that is a prefix
// (Forward) or suffix (Backward) of input. The boolean is false when no key
// matches, including for an empty input.
func (t *Tree[T]) Find(input string) (T, bool) {
	var (
		best  T
		found bool
	)

	node := t
	t.walk(input, func(r rune) bool {
		if node = node.children[r]; node == nil {
			return false
		}
		if node.hasValue {
			best, found = node.value, true
		}
		return true
	})

	return best, found
}

// Len returns the number of keys holding a value.
func (t *Tree[T]) Len() int {
	n := 0
	if t.hasValue {
		n++
	}
	for _, c := range t.children {
		n += c.Len()
	}
	return n
}

func (t *Tree[T]) ensureChild(r rune) *Tree[T] {
	if c, ok := t.children[r]; ok {
		return c
	}
	if t.children == nil {
		t.children = make(map[rune]*Tree[T])
	}
	c := &Tree[T]{dir: t.dir}
	t.children[r] = c
	return c
}

// invalidByte maps a byte that is not part of valid UTF-8 to a key outside
// the Unicode range, so distinct invalid bytes stay distinct from each other
// and from U+FFFD.
func invalidByte(b byte) rune {
	return utf8.MaxRune + 1 + rune(b)
}

// walk calls fn for every code point of s in the tree's direction until fn
// returns false.
func (t *Tree[T]) walk(s string, fn func(r rune) bool) {
	if t.dir == Backward {
		for len(s) > 0 {
			r, size := utf8.DecodeLastRuneInString(s)
			if r == utf8.RuneError && size == 1 {
				r = invalidByte(s[len(s)-1])
			}
			if !fn(r) {
				return
			}
			s = s[:len(s)-size]
		}
		return
	}

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			r = invalidByte(s[0])
		}
		if !fn(r) {
			return
		}
		s = s[size:]
	}
}

// Package location models the abstract memory locations that
// instructions may read or write: individual fields, the elements of
// all arrays of one component kind, and a general location standing for
// any memory whatsoever.
package location

import (
	"fmt"
	"strings"

	"honnef.co/go/cse/ir"

	"golang.org/x/tools/container/intsets"
)

// Kind discriminates locations.
type Kind uint8

const (
	General Kind = iota
	ArrayInt
	ArrayByte
	ArrayChar
	ArrayWide
	ArrayShort
	ArrayObject
	ArrayBoolean

	// Field must be the last kind. Field locations are numbered after
	// all other kinds.
	Field
)

const numSpecial = int(Field)

var kindNames = [...]string{
	General:      "general",
	ArrayInt:     "array-int",
	ArrayByte:    "array-byte",
	ArrayChar:    "array-char",
	ArrayWide:    "array-wide",
	ArrayShort:   "array-short",
	ArrayObject:  "array-object",
	ArrayBoolean: "array-boolean",
	Field:        "field",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// A Location is either a special location or a field. The zero value
// is the general location.
type Location struct {
	kind  Kind
	field *ir.Field
}

// Special returns the location of the given non-field kind.
func Special(k Kind) Location {
	if k >= Field {
		panic(fmt.Sprintf("internal error: %s is not a special location", k))
	}
	return Location{kind: k}
}

// FieldLocation returns the location of field f.
func FieldLocation(f *ir.Field) Location {
	if f == nil {
		panic("internal error: nil field")
	}
	return Location{kind: Field, field: f}
}

// ArrayComponent returns the location of the elements accessed by an
// array get or put.
func ArrayComponent(op ir.Opcode) Location {
	switch op {
	case ir.OpAGet, ir.OpAPut:
		return Special(ArrayInt)
	case ir.OpAGetByte, ir.OpAPutByte:
		return Special(ArrayByte)
	case ir.OpAGetChar, ir.OpAPutChar:
		return Special(ArrayChar)
	case ir.OpAGetWide, ir.OpAPutWide:
		return Special(ArrayWide)
	case ir.OpAGetShort, ir.OpAPutShort:
		return Special(ArrayShort)
	case ir.OpAGetObject, ir.OpAPutObject:
		return Special(ArrayObject)
	case ir.OpAGetBoolean, ir.OpAPutBoolean:
		return Special(ArrayBoolean)
	}
	panic(fmt.Sprintf("internal error: %s does not access an array", op))
}

func (l Location) Kind() Kind { return l.kind }

// Field returns the field of a field location, or nil.
func (l Location) Field() *ir.Field { return l.field }

func (l Location) IsGeneral() bool { return l.kind == General }
func (l Location) IsSpecial() bool { return l.kind != Field }

// Ordinal returns a dense, non-negative number that uniquely identifies
// l within its program. Special locations come first.
func (l Location) Ordinal() int {
	if l.kind == Field {
		return numSpecial + l.field.ID
	}
	return int(l.kind)
}

// Compare orders locations: special locations in kind order, followed
// by fields in order of their qualified names.
func (l Location) Compare(o Location) int {
	a, b := l.Ordinal(), o.Ordinal()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (l Location) Equal(o Location) bool { return l == o }

func (l Location) String() string {
	if l.kind == Field {
		return l.field.String()
	}
	return "<" + l.kind.String() + ">"
}

// A Universe maps ordinals back to the locations of one program.
type Universe struct {
	fields []*ir.Field
}

func NewUniverse(prog *ir.Program) *Universe {
	return &Universe{fields: prog.Fields()}
}

// Location returns the location with the given ordinal.
func (u *Universe) Location(ord int) Location {
	if ord < numSpecial {
		return Location{kind: Kind(ord)}
	}
	return FieldLocation(u.fields[ord-numSpecial])
}

// Size returns the number of distinct locations in the program.
func (u *Universe) Size() int { return numSpecial + len(u.fields) }

// A Set is a set of locations. The zero value is an empty set. Sets
// must not be copied by value; use Copy.
type Set struct {
	s intsets.Sparse
}

// NewSet returns a set containing locs. Unlike the zero value, sets
// returned by NewSet may be read from multiple goroutines as long as
// nobody modifies them.
func NewSet(locs ...Location) *Set {
	s := new(Set)
	s.s.Clear()
	for _, l := range locs {
		s.Insert(l)
	}
	return s
}

// Insert adds l to s and reports whether s changed.
func (s *Set) Insert(l Location) bool { return s.s.Insert(l.Ordinal()) }

// Remove removes l from s and reports whether s changed.
func (s *Set) Remove(l Location) bool { return s.s.Remove(l.Ordinal()) }

func (s *Set) Has(l Location) bool { return s.s.Has(l.Ordinal()) }

// HasGeneral reports whether s contains the general location.
func (s *Set) HasGeneral() bool { return s.s.Has(int(General)) }

// UnionWith sets s to s ∪ o and reports whether s changed.
func (s *Set) UnionWith(o *Set) bool { return s.s.UnionWith(&o.s) }

// IntersectionWith sets s to s ∩ o.
func (s *Set) IntersectionWith(o *Set) { s.s.IntersectionWith(&o.s) }

// Intersects reports whether s ∩ o is non-empty.
func (s *Set) Intersects(o *Set) bool { return s.s.Intersects(&o.s) }

func (s *Set) Equals(o *Set) bool { return s.s.Equals(&o.s) }
func (s *Set) Len() int           { return s.s.Len() }
func (s *Set) IsEmpty() bool      { return s.s.IsEmpty() }
func (s *Set) Clear()             { s.s.Clear() }

// Copy sets s to the value of o.
func (s *Set) Copy(o *Set) { s.s.Copy(&o.s) }

// Clone returns a copy of s.
func (s *Set) Clone() *Set {
	c := NewSet()
	c.Copy(s)
	return c
}

// Locations returns the elements of s in ascending order.
func (s *Set) Locations(u *Universe) []Location {
	ords := s.s.AppendTo(nil)
	out := make([]Location, len(ords))
	for i, ord := range ords {
		out[i] = u.Location(ord)
	}
	return out
}

// Format returns a human-readable representation of s.
func (s *Set) Format(u *Universe) string {
	locs := s.Locations(u)
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = l.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Package style renders scalar values under number, string block and binary
// styles and parses them back.
//
// A style declared on a property reaches into nested values for Depth
// levels. Context carries the active styles down the tree: Enter installs
// the styles of a property, Descend moves to a sequence element or mapping
// value. Once the depth is used up the default style applies again.
package style

// Set is the group of styles declared on one property. Nil members leave
// the inherited style in place.
type Set struct {
	Number      *NumberStyle
	StringBlock *StringBlockStyle
	Binary      *BinaryStyle
}

// IsZero reports whether no style is declared.
func (s Set) IsZero() bool {
	return s.Number == nil && s.StringBlock == nil && s.Binary == nil
}

// Effective is the style resolved for one position in the tree. Nil members
// mean the default rendering.
type Effective struct {
	Number      *NumberStyle
	StringBlock *StringBlockStyle
	Binary      *BinaryStyle
}

// Context is the style state at a tree position. It is a value type and is
// copied, never mutated, on every step down the tree.
type Context struct {
	number     *NumberStyle
	numberLeft int

	block     *StringBlockStyle
	blockLeft int

	binary     *BinaryStyle
	binaryLeft int
}

// Enter installs the styles declared in s with their full depth budget.
func (c Context) Enter(s Set) Context {
	if s.Number != nil {
		c.number, c.numberLeft = s.Number, s.Number.Depth
	}
	if s.StringBlock != nil {
		c.block, c.blockLeft = s.StringBlock, s.StringBlock.Depth
	}
	if s.Binary != nil {
		c.binary, c.binaryLeft = s.Binary, s.Binary.Depth
	}
	return c
}

// Descend returns the context of a child node one level deeper.
func (c Context) Descend() Context {
	if c.number != nil {
		if c.numberLeft--; c.numberLeft < 0 {
			c.number = nil
		}
	}
	if c.block != nil {
		if c.blockLeft--; c.blockLeft < 0 {
			c.block = nil
		}
	}
	if c.binary != nil {
		if c.binaryLeft--; c.binaryLeft < 0 {
			c.binary = nil
		}
	}
	return c
}

// Effective returns the styles that apply at this position.
func (c Context) Effective() Effective {
	return Effective{Number: c.number, StringBlock: c.block, Binary: c.binary}
}

// Resolve returns the effective style of a property declaring s inside
// parent.
func Resolve(s Set, parent Context) Effective {
	return parent.Enter(s).Effective()
}

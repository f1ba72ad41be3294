package binder

import "fmt"

// Direction of a directional binding.
type Direction int

const (
	In Direction = iota
	Out
	ReturnValue
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case ReturnValue:
		return "return"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// SQLType is the store-side type of a bound value. It drives how OUT and
// return values are scanned back.
type SQLType string

const (
	Decimal   SQLType = "decimal"
	Int       SQLType = "int"
	Varchar   SQLType = "varchar"
	Clob      SQLType = "clob"
	Timestamp SQLType = "timestamp"
)

// Binding is one argument of a call description. It is one of Named,
// Positional or Directional.
type Binding interface {
	binding()
}

// Named binds Value to the parameter Key.
type Named struct {
	Key   string
	Value any
}

// Positional binds Value by its position among the positional bindings of
// the same call; it is named p1, p2, ... in the rendered text.
type Positional struct {
	Value any
}

// Directional declares a typed parameter with an explicit direction. Value is
// only meaningful for In.
type Directional struct {
	Name      string
	Type      SQLType
	Direction Direction
	Value     any
}

func (Named) binding()       {}
func (Positional) binding()  {}
func (Directional) binding() {}

// Param is a binding after validation and naming.
type Param struct {
	Name      string
	Value     any
	Type      SQLType
	Direction Direction
}

// IsResult reports whether the store writes this parameter back.
func (p Param) IsResult() bool {
	return p.Direction == Out || p.Direction == ReturnValue
}

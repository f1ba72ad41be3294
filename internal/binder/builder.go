package binder

import "errors"

// CallBuilder assembles the bindings of one procedure call step by step and
// renders them with Bind. Errors from the steps are kept and reported by Build.
type CallBuilder struct {
	text     string
	bindings []Binding
	errs     []error
}

// NewCall starts a call description for procedure (or any call text).
func NewCall(procedure string) *CallBuilder {
	return &CallBuilder{text: procedure}
}

// WithNamed binds value to name as an IN parameter.
func (b *CallBuilder) WithNamed(name string, value any) *CallBuilder {
	if name == "" {
		b.errs = append(b.errs, errors.New("call builder: named binding without a name"))
		return b
	}
	b.bindings = append(b.bindings, Named{Key: name, Value: value})
	return b
}

// WithPositional binds value by position.
func (b *CallBuilder) WithPositional(value any) *CallBuilder {
	b.bindings = append(b.bindings, Positional{Value: value})
	return b
}

// WithIn binds a typed IN parameter.
func (b *CallBuilder) WithIn(name string, typ SQLType, value any) *CallBuilder {
	b.bindings = append(b.bindings, Directional{Name: name, Type: typ, Direction: In, Value: value})
	return b
}

// WithOut declares an OUT parameter written back by the store.
func (b *CallBuilder) WithOut(name string, typ SQLType) *CallBuilder {
	b.bindings = append(b.bindings, Directional{Name: name, Type: typ, Direction: Out})
	return b
}

// WithReturn declares the function's return value.
func (b *CallBuilder) WithReturn(name string, typ SQLType) *CallBuilder {
	b.bindings = append(b.bindings, Directional{Name: name, Type: typ, Direction: ReturnValue})
	return b
}

// Build validates the accumulated bindings and renders the statement.
func (b *CallBuilder) Build() (*Statement, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return Bind(b.text, b.bindings...)
}

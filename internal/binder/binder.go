// Package binder turns a procedure reference and a list of bindings into the
// text and parameters of one executable statement.
package binder

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the wrapping shape chosen for a statement.
type Kind int

const (
	// Query is a bare SELECT.
	Query Kind = iota
	// Mutation is an INSERT/UPDATE/DELETE wrapped in a block that commits.
	Mutation
	// Call is a stored-procedure call wrapped in a block without a commit.
	Call
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case Mutation:
		return "mutation"
	default:
		return "call"
	}
}

var (
	placeholderRe = regexp.MustCompile(`(?:^|[^:A-Za-z0-9_]):([A-Za-z_][A-Za-z0-9_]*)`)
	selectRe      = regexp.MustCompile(`(?i)\bSELECT\s`)
	mutationRe    = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE)\s`)
	commitRe      = regexp.MustCompile(`(?i)\bCOMMIT\b`)
)

// Statement is the result of binding. Body is the unwrapped statement
// terminated by ';', Text is Body wrapped according to Kind.
type Statement struct {
	Kind Kind
	// Procedure is the bare procedure reference when the argument list was
	// synthesized; empty in placeholder mode.
	Procedure string
	Body      string
	Text      string
	// Params holds every bound parameter except the return value, in the
	// order they appear in Body.
	Params []Param
	Return *Param
}

// Synthesized reports whether Body was generated from the bindings rather
// than taken from placeholders already present in the call text.
func (s *Statement) Synthesized() bool {
	return s.Procedure != ""
}

// Args returns the IN values keyed by parameter name.
func (s *Statement) Args() map[string]any {
	args := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		if p.Direction == In {
			args[p.Name] = p.Value
		}
	}
	return args
}

// OwnCommit reports whether a mutation carries its own COMMIT.
func (s *Statement) OwnCommit() bool {
	return s.Kind == Mutation && commitRe.MatchString(s.Body)
}

// Results returns the parameters the store writes back: the return value
// first, then OUT parameters in declaration order.
func (s *Statement) Results() []Param {
	var results []Param
	if s.Return != nil {
		results = append(results, *s.Return)
	}
	for _, p := range s.Params {
		if p.IsResult() {
			results = append(results, p)
		}
	}
	return results
}

// Bind builds a statement from callText and bindings.
//
// When callText already carries :name placeholders, only bindings whose name
// matches a placeholder are kept, in placeholder order. Otherwise the return
// binding (if any) becomes a ":name := " prefix and every other binding is
// appended as "name => :name" inside the call's parentheses.
func Bind(callText string, bindings ...Binding) (*Statement, error) {
	params, err := normalize(bindings)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(callText)
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	if text == "" {
		return nil, fmt.Errorf("bind: empty call text")
	}

	stmt := &Statement{}
	if placeholders := findPlaceholders(text); len(placeholders) > 0 {
		bindPlaceholders(stmt, placeholders, params)
	} else {
		text = synthesize(stmt, text, params)
	}

	stmt.Body = text + ";"
	stmt.Kind, stmt.Text = wrap(text)
	return stmt, nil
}

func normalize(bindings []Binding) ([]Param, error) {
	params := make([]Param, 0, len(bindings))
	seen := make(map[string]struct{}, len(bindings))
	returns := 0
	positional := 0

	for i, b := range bindings {
		var p Param
		switch v := b.(type) {
		case Named:
			p = Param{Name: v.Key, Value: v.Value, Direction: In}
		case *Named:
			p = Param{Name: v.Key, Value: v.Value, Direction: In}
		case Positional:
			positional++
			p = Param{Name: fmt.Sprintf("p%d", positional), Value: v.Value, Direction: In}
		case *Positional:
			positional++
			p = Param{Name: fmt.Sprintf("p%d", positional), Value: v.Value, Direction: In}
		case Directional:
			p = Param{Name: v.Name, Value: v.Value, Type: v.Type, Direction: v.Direction}
		case *Directional:
			p = Param{Name: v.Name, Value: v.Value, Type: v.Type, Direction: v.Direction}
		default:
			return nil, fmt.Errorf("bind: binding %d has unsupported type %T", i, b)
		}

		p.Name = strings.TrimPrefix(strings.TrimSpace(p.Name), ":")
		if p.Name == "" {
			return nil, fmt.Errorf("bind: binding %d has no name", i)
		}
		if p.Direction < In || p.Direction > ReturnValue {
			return nil, fmt.Errorf("bind: parameter %q has invalid direction %s", p.Name, p.Direction)
		}

		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("bind: parameter %q is bound more than once", p.Name)
		}
		seen[key] = struct{}{}

		if p.Direction == ReturnValue {
			returns++
			if returns > 1 {
				return nil, fmt.Errorf("bind: more than one return value binding (second is %q)", p.Name)
			}
		}
		params = append(params, p)
	}

	return params, nil
}

func findPlaceholders(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// ReplacePlaceholders substitutes every :name placeholder of text with
// repl(name), using the same matching rules as Bind.
func ReplacePlaceholders(text string, repl func(name string) string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		i := strings.IndexByte(m, ':')
		return m[:i] + repl(m[i+1:])
	})
}

func bindPlaceholders(stmt *Statement, placeholders []string, params []Param) {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[strings.ToLower(p.Name)] = p
	}

	for _, name := range placeholders {
		p, ok := byName[strings.ToLower(name)]
		if !ok {
			continue
		}
		// the placeholder spelling wins so the name resolves against the text
		p.Name = name
		if p.Direction == ReturnValue {
			ret := p
			stmt.Return = &ret
			continue
		}
		stmt.Params = append(stmt.Params, p)
	}
}

func synthesize(stmt *Statement, text string, params []Param) string {
	procedure := strings.TrimSpace(strings.TrimSuffix(text, "()"))
	stmt.Procedure = procedure

	args := make([]string, 0, len(params))
	for _, p := range params {
		if p.Direction == ReturnValue {
			ret := p
			stmt.Return = &ret
			continue
		}
		stmt.Params = append(stmt.Params, p)
		args = append(args, fmt.Sprintf("%s => :%s", p.Name, p.Name))
	}

	if len(args) > 0 {
		text = procedure + "(" + strings.Join(args, ", ") + ")"
	}
	if stmt.Return != nil {
		text = fmt.Sprintf(":%s := %s", stmt.Return.Name, text)
	}
	return text
}

func wrap(text string) (Kind, string) {
	switch {
	case selectRe.MatchString(text):
		return Query, text + ";"
	case mutationRe.MatchString(text):
		if commitRe.MatchString(text) {
			return Mutation, "BEGIN\n" + text + ";\nEND;"
		}
		return Mutation, "BEGIN\n" + text + ";\nCOMMIT;\nEND;"
	default:
		return Call, "BEGIN\n" + text + ";\nEND;"
	}
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openclaw/completion-gateway/internal/binder"
	apperrors "github.com/openclaw/completion-gateway/internal/errors"
)

var assignmentRe = regexp.MustCompile(`^\s*:[A-Za-z_][A-Za-z0-9_]*\s*:=\s*`)

// Outcome carries what the store wrote back for a statement.
type Outcome struct {
	// Return is the function result, nil when the statement has none or the
	// store returned NULL.
	Return any
	// Out holds OUT parameters by name.
	Out map[string]any
	// RowsAffected is set for statements executed without a result row.
	RowsAffected int64
}

// Executor runs bound statements against PostgreSQL.
//
// Call statements are rendered as "SELECT * FROM proc(name => $n, ...)" when
// they produce a return value or OUT parameters (scanned in that order), and
// as "CALL proc(name => $n, ...)" otherwise. Mutations run in a transaction
// that commits before Exec returns.
type Executor struct {
	timeout time.Duration
}

func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Rendered is a statement in the driver's dialect.
type Rendered struct {
	Query string
	Args  []any
	// Scan lists the parameters read back from the first result row.
	Scan []binder.Param
}

// Render translates stmt into PostgreSQL text with positional arguments.
func (e *Executor) Render(stmt *binder.Statement) (*Rendered, error) {
	results := stmt.Results()

	if stmt.Kind == binder.Call && stmt.Synthesized() {
		args := make([]any, 0, len(stmt.Params))
		named := make([]string, 0, len(stmt.Params))
		for _, p := range stmt.Params {
			if p.Direction != binder.In {
				continue
			}
			args = append(args, p.Value)
			named = append(named, fmt.Sprintf("%s => $%d", p.Name, len(args)))
		}
		call := stmt.Procedure + "(" + strings.Join(named, ", ") + ")"
		if len(results) > 0 {
			return &Rendered{Query: "SELECT * FROM " + call, Args: args, Scan: results}, nil
		}
		return &Rendered{Query: "CALL " + call, Args: args}, nil
	}

	body := strings.TrimSpace(strings.TrimSuffix(stmt.Body, ";"))
	if stmt.Return != nil {
		body = assignmentRe.ReplaceAllString(body, "")
	}

	query, args, err := positional(body, stmt.Params)
	if err != nil {
		return nil, err
	}

	switch {
	case stmt.Kind == binder.Call && len(results) > 0:
		query = "SELECT * FROM " + query
	case stmt.Kind == binder.Call:
		query = "CALL " + query
	case stmt.Kind == binder.Query:
		return &Rendered{Query: query, Args: args, Scan: queryScan(stmt)}, nil
	}
	return &Rendered{Query: query, Args: args, Scan: results}, nil
}

// positional rewrites :name placeholders to $n. A name used twice reuses its
// index; OUT parameters are passed as NULL.
func positional(body string, params []binder.Param) (string, []any, error) {
	values := make(map[string]any, len(params))
	for _, p := range params {
		if p.Direction == binder.In {
			values[strings.ToLower(p.Name)] = p.Value
		} else {
			values[strings.ToLower(p.Name)] = nil
		}
	}

	var args []any
	var missing []string
	index := make(map[string]int, len(params))
	query := binder.ReplacePlaceholders(body, func(name string) string {
		key := strings.ToLower(name)
		if n, ok := index[key]; ok {
			return fmt.Sprintf("$%d", n)
		}
		value, ok := values[key]
		if !ok {
			missing = append(missing, name)
			return ":" + name
		}
		args = append(args, value)
		index[key] = len(args)
		return fmt.Sprintf("$%d", len(args))
	})

	if len(missing) > 0 {
		return "", nil, fmt.Errorf("render statement: unbound placeholders %s", strings.Join(missing, ", "))
	}
	return query, args, nil
}

// queryScan reads the first column of a bare query into the return value.
func queryScan(stmt *binder.Statement) []binder.Param {
	if stmt.Return != nil {
		return []binder.Param{*stmt.Return}
	}
	return []binder.Param{{Name: "value", Type: binder.Varchar, Direction: binder.ReturnValue}}
}

// Exec renders and runs stmt on conn.
func (e *Executor) Exec(ctx context.Context, conn TxBeginner, stmt *binder.Statement) (*Outcome, error) {
	rendered, err := e.Render(stmt)
	if err != nil {
		return nil, apperrors.Database(stmt.Text, err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var outcome *Outcome
	switch {
	case len(rendered.Scan) > 0:
		outcome, err = scanRow(ctx, conn, rendered)
	case stmt.Kind == binder.Mutation && !stmt.OwnCommit():
		outcome = &Outcome{}
		err = WithTx(ctx, conn, func(tx *sqlx.Tx) error {
			n, execErr := execCount(ctx, tx, rendered)
			outcome.RowsAffected = n
			return execErr
		})
	default:
		outcome = &Outcome{}
		outcome.RowsAffected, err = execCount(ctx, conn, rendered)
	}

	log.Debug().
		Str("kind", stmt.Kind.String()).
		Str("query", rendered.Query).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("statement executed")

	if err != nil {
		return nil, apperrors.Database(stmt.Text, err)
	}
	return outcome, nil
}

func execCount(ctx context.Context, conn DBTX, rendered *Rendered) (int64, error) {
	res, err := conn.ExecContext(ctx, rendered.Query, rendered.Args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// CALL reports no row count
		return 0, nil
	}
	return n, nil
}

func scanRow(ctx context.Context, conn DBTX, rendered *Rendered) (*Outcome, error) {
	dests := make([]any, len(rendered.Scan))
	for i, p := range rendered.Scan {
		dests[i] = scanTarget(p.Type)
	}

	row := conn.QueryRowxContext(ctx, rendered.Query, rendered.Args...)
	if err := row.Scan(dests...); err != nil {
		if err == sql.ErrNoRows {
			return &Outcome{Out: map[string]any{}}, nil
		}
		return nil, err
	}

	outcome := &Outcome{Out: make(map[string]any, len(rendered.Scan))}
	for i, p := range rendered.Scan {
		value := scannedValue(dests[i])
		if p.Direction == binder.ReturnValue {
			outcome.Return = value
			continue
		}
		outcome.Out[p.Name] = value
	}
	return outcome, nil
}

func scanTarget(typ binder.SQLType) any {
	switch typ {
	case binder.Decimal:
		return &decimal.NullDecimal{}
	case binder.Int:
		return &sql.NullInt64{}
	case binder.Timestamp:
		return &sql.NullTime{}
	default:
		return &sql.NullString{}
	}
}

func scannedValue(dest any) any {
	switch v := dest.(type) {
	case *decimal.NullDecimal:
		if v.Valid {
			return v.Decimal
		}
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}

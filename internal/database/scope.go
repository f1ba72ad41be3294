package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type scopeKey struct{}

// Scope holds the data store connection of one request. The connection is
// taken from the pool on the first Conn call, reused for every later
// statement of the request, and handed back by Close.
//
// A Scope belongs to a single request and is not safe for concurrent use.
type Scope struct {
	db   *sqlx.DB
	conn *sqlx.Conn
}

func NewScope(db *sqlx.DB) *Scope {
	return &Scope{db: db}
}

// Conn returns the request connection, opening it on first use.
func (s *Scope) Conn(ctx context.Context) (*sqlx.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// Opened reports whether the connection has been taken from the pool.
func (s *Scope) Opened() bool {
	return s.conn != nil
}

// Close releases the connection if one was opened.
func (s *Scope) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// WithScope attaches scope to ctx.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope attached to ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	if scope, ok := ctx.Value(scopeKey{}).(*Scope); ok {
		return scope
	}
	return nil
}

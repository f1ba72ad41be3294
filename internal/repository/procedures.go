package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/openclaw/completion-gateway/internal/binder"
	"github.com/openclaw/completion-gateway/internal/database"
	apperrors "github.com/openclaw/completion-gateway/internal/errors"
	"github.com/openclaw/completion-gateway/internal/model"
)

// SessionStore is what the pipeline needs from the data store.
type SessionStore interface {
	CheckQuota(ctx context.Context, sessionID string) (bool, error)
	FetchHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error)
	WriteAudit(ctx context.Context, entry *model.AuditLogEntry) error
}

// StatementRunner executes bound statements. *database.Executor satisfies it.
type StatementRunner interface {
	Exec(ctx context.Context, conn database.TxBeginner, stmt *binder.Statement) (*database.Outcome, error)
}

// Procedures names the stored procedures behind the store.
type Procedures struct {
	Quota   string
	History string
	Audit   string
}

type procedureStore struct {
	pool   database.TxBeginner
	runner StatementRunner
	procs  Procedures
}

// NewSessionStore returns a SessionStore that calls procs through runner. The
// request Scope on the context is used when present, pool otherwise.
func NewSessionStore(pool database.TxBeginner, runner StatementRunner, procs Procedures) SessionStore {
	return &procedureStore{pool: pool, runner: runner, procs: procs}
}

var acceptedQuota = decimal.NewFromInt(1)

func (s *procedureStore) CheckQuota(ctx context.Context, sessionID string) (bool, error) {
	stmt, err := binder.NewCall(s.procs.Quota).
		WithNamed("p_sid", sessionID).
		WithReturn("result", binder.Decimal).
		Build()
	if err != nil {
		return false, err
	}

	outcome, err := s.exec(ctx, stmt)
	if err != nil {
		return false, err
	}

	switch v := outcome.Return.(type) {
	case decimal.Decimal:
		return v.Equal(acceptedQuota), nil
	case int64:
		return v == 1, nil
	default:
		return false, nil
	}
}

func (s *procedureStore) FetchHistory(ctx context.Context, sessionID string) ([]model.HistoryRecord, error) {
	stmt, err := binder.NewCall(s.procs.History).
		WithNamed("p_sid", sessionID).
		WithReturn("result", binder.Clob).
		Build()
	if err != nil {
		return nil, err
	}

	outcome, err := s.exec(ctx, stmt)
	if err != nil {
		return nil, err
	}

	raw, _ := outcome.Return.(string)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var records []model.HistoryRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode history of session %s: %w", sessionID, err)
	}
	return records, nil
}

func (s *procedureStore) WriteAudit(ctx context.Context, entry *model.AuditLogEntry) error {
	stmt, err := binder.NewCall(s.procs.Audit).
		WithIn("p_request_date", binder.Timestamp, entry.Timestamp).
		WithIn("p_request", binder.Clob, entry.Request).
		WithIn("p_response", binder.Clob, entry.Response).
		WithIn("p_uri", binder.Varchar, entry.URI).
		WithIn("p_sid", binder.Varchar, entry.SessionID).
		WithIn("p_status", binder.Int, entry.Status).
		Build()
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, stmt)
	return err
}

func (s *procedureStore) exec(ctx context.Context, stmt *binder.Statement) (*database.Outcome, error) {
	conn := s.pool
	if scope := database.ScopeFrom(ctx); scope != nil {
		scoped, err := scope.Conn(ctx)
		if err != nil {
			return nil, apperrors.Database(stmt.Text, err)
		}
		conn = scoped
	}

	log.Debug().Str("statement", stmt.Text).Msg("calling store")
	return s.runner.Exec(ctx, conn, stmt)
}

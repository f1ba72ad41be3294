package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/completion-gateway/internal/binder"
	"github.com/openclaw/completion-gateway/internal/database"
	"github.com/openclaw/completion-gateway/internal/model"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Exec(ctx context.Context, conn database.TxBeginner, stmt *binder.Statement) (*database.Outcome, error) {
	args := m.Called(ctx, stmt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Outcome), args.Error(1)
}

var testProcs = Procedures{Quota: "GPT_PKG.IS_ACCEPT", History: "GPT_PKG.GET_HISTORY", Audit: "GPT_PKG.WRITE"}

func bodyIs(body string) any {
	return mock.MatchedBy(func(stmt *binder.Statement) bool { return stmt.Body == body })
}

func TestCheckQuota(t *testing.T) {
	tests := []struct {
		name     string
		ret      any
		expected bool
	}{
		{"one accepts", decimal.NewFromInt(1), true},
		{"one point zero accepts", decimal.RequireFromString("1.0"), true},
		{"zero rejects", decimal.Zero, false},
		{"two rejects", decimal.NewFromInt(2), false},
		{"null rejects", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := new(mockRunner)
			store := NewSessionStore(nil, runner, testProcs)

			runner.On("Exec", mock.Anything, bodyIs(":result := GPT_PKG.IS_ACCEPT(p_sid => :p_sid);")).
				Return(&database.Outcome{Return: tc.ret}, nil)

			ok, err := store.CheckQuota(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
			runner.AssertExpectations(t)
		})
	}

	t.Run("binds the session id instead of interpolating it", func(t *testing.T) {
		runner := new(mockRunner)
		store := NewSessionStore(nil, runner, testProcs)

		runner.On("Exec", mock.Anything, mock.MatchedBy(func(stmt *binder.Statement) bool {
			return stmt.Args()["p_sid"] == "x'); DROP TABLE t; --"
		})).Return(&database.Outcome{Return: decimal.NewFromInt(1)}, nil)

		ok, err := store.CheckQuota(context.Background(), "x'); DROP TABLE t; --")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		runner := new(mockRunner)
		store := NewSessionStore(nil, runner, testProcs)
		runner.On("Exec", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := store.CheckQuota(context.Background(), "s1")
		assert.Error(t, err)
	})
}

func TestFetchHistory(t *testing.T) {
	t.Run("decodes records in order", func(t *testing.T) {
		runner := new(mockRunner)
		store := NewSessionStore(nil, runner, testProcs)

		raw := `[{"request":"{\"text\":\"a\"}","response":"{}"},{"request":"{\"text\":\"b\"}","response":"{}"}]`
		runner.On("Exec", mock.Anything, bodyIs(":result := GPT_PKG.GET_HISTORY(p_sid => :p_sid);")).
			Return(&database.Outcome{Return: raw}, nil)

		records, err := store.FetchHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, model.JSONText(`{"text":"a"}`), records[0].Request)
		assert.Equal(t, model.JSONText(`{"text":"b"}`), records[1].Request)
	})

	t.Run("null and empty mean no history", func(t *testing.T) {
		for _, ret := range []any{nil, "", "  "} {
			runner := new(mockRunner)
			store := NewSessionStore(nil, runner, testProcs)
			runner.On("Exec", mock.Anything, mock.Anything).Return(&database.Outcome{Return: ret}, nil)

			records, err := store.FetchHistory(context.Background(), "s1")
			require.NoError(t, err)
			assert.Empty(t, records)
		}
	})

	t.Run("non-array document is an error", func(t *testing.T) {
		runner := new(mockRunner)
		store := NewSessionStore(nil, runner, testProcs)
		runner.On("Exec", mock.Anything, mock.Anything).Return(&database.Outcome{Return: `{"oops":1}`}, nil)

		_, err := store.FetchHistory(context.Background(), "s1")
		assert.Error(t, err)
	})
}

func TestWriteAudit(t *testing.T) {
	runner := new(mockRunner)
	store := NewSessionStore(nil, runner, testProcs)

	ts := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	entry := &model.AuditLogEntry{
		Timestamp: ts,
		SessionID: "s1",
		URI:       "https://model.test/completion",
		Request:   `{"text":"hi"}`,
		Response:  `{"result":{}}`,
		Status:    200,
	}

	runner.On("Exec", mock.Anything, mock.MatchedBy(func(stmt *binder.Statement) bool {
		args := stmt.Args()
		return stmt.Kind == binder.Call &&
			stmt.Return == nil &&
			stmt.Procedure == "GPT_PKG.WRITE" &&
			args["p_request_date"] == ts &&
			args["p_request"] == `{"text":"hi"}` &&
			args["p_response"] == `{"result":{}}` &&
			args["p_uri"] == "https://model.test/completion" &&
			args["p_sid"] == "s1" &&
			args["p_status"] == 200
	})).Return(&database.Outcome{}, nil)

	require.NoError(t, store.WriteAudit(context.Background(), entry))
	runner.AssertExpectations(t)
}

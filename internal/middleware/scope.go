package middleware

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/completion-gateway/internal/database"
)

// Scope gives each request its own lazily opened store connection and
// returns it to the pool when the request ends.
func Scope(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := database.NewScope(db)
			defer func() {
				if err := scope.Close(); err != nil {
					log.Warn().Err(err).Msg("release request connection")
				}
			}()

			next.ServeHTTP(w, r.WithContext(database.WithScope(r.Context(), scope)))
		})
	}
}

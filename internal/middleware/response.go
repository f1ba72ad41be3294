package middleware

import (
	"net/http"

	"github.com/openclaw/completion-gateway/internal/httputil"
)

func writeResult(w http.ResponseWriter, status int, message string) {
	httputil.WriteResult(w, status, message)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

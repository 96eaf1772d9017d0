package httpapi

import (
	"net/http"
	"strings"

	"orchestrator/pkg/apperror"
	"orchestrator/pkg/passhash"
)

// requireBearer wraps next so it only runs once a valid JWT has been
// presented via the Authorization header. Nodes reporting chain
// completions authenticate this way rather than via mTLS, matching how
// the rest of this module's services gate their mutating RPCs.
func requireBearer(mgr *passhash.JWTManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, apperror.New(apperror.CodeUnauthenticated, "missing bearer token"))
			return
		}
		if _, err := mgr.ValidateToken(token); err != nil {
			writeError(w, apperror.Wrap(err, apperror.CodeUnauthenticated, "invalid bearer token"))
			return
		}
		next(w, r)
	}
}

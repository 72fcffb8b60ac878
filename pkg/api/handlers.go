package api

import (
	"net/http"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/contextkeys"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
)

// requireCaller extracts the authenticated user or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok || authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return authCtx.User, true
}

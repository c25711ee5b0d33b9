package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/orderium/internal/pkg/requestid"
)

// PropagateRequestID copies the id assigned by middleware.RequestID into
// the request context under requestid's key and echoes it to the client.
// It must run after middleware.RequestID.
func PropagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestid.Header)
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		if id != "" {
			w.Header().Set(requestid.Header, id)
		}
		next.ServeHTTP(w, r.WithContext(requestid.WithID(r.Context(), id)))
	})
}

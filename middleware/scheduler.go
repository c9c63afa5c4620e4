package middleware

import (
	"crypto/subtle"
	"net/http"
)

// FunctionCORS answers preflight requests for the scheduled functions with a
// bare 200 and adds permissive CORS headers to every response.
func FunctionCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SchedulerOnly lets a request through only when header carries the
// scheduler's caller identity. Everything else gets 401 before the handler
// runs.
func SchedulerOnly(header, expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get(header)
			if expected == "" || subtle.ConstantTimeCompare([]byte(caller), []byte(expected)) != 1 {
				authRejections.WithLabelValues("scheduler_caller").Inc()
				respondWithError(w, http.StatusUnauthorized, "Unauthorized: This function can only be called by the scheduler.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker holds the probes reported by /healthz. Nil probes are skipped.
type Checker struct {
	DBPing  func(ctx context.Context) error
	RPCPing func(ctx context.Context) error
}

// Handler returns the /healthz handler. Failing probes yield 503 with the probe
// marked "fail" and its error under "<probe>_error".
func Handler(checker Checker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				status[name] = "fail"
				status[name+"_error"] = err.Error()
				code = http.StatusServiceUnavailable
				return
			}
			status[name] = "ok"
		}
		probe("db", checker.DBPing)
		probe("rpc", checker.RPCPing)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Serve starts the health server on addr in the background.
func Serve(addr string, checker Checker) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(checker),
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Shutdown gracefully shuts down the health server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}

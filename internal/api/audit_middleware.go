package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/example/resortledger/pkg/audit"
)

// Auditor receives one tamper-evident record per mutating request.
type Auditor interface {
	Record(ctx context.Context, actor, action, subject, detail string) (*audit.Event, error)
}

// AuditMiddleware appends a hash-chained audit event for every request that
// can change accounting state. Reads pass through unrecorded.
func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			cid := CorrelationIDFromContext(r.Context())
			detail := fmt.Sprintf("cid=%s status=%d dur_ms=%d", cid, sw.status, dur.Milliseconds())
			_, _ = a.Record(r.Context(), r.RemoteAddr, r.Method, r.URL.Path, detail)
		})
	}
}

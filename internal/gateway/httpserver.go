package gateway

import (
	"fmt"
	"net/http"
)

// NewHandler returns the gateway's liveness/readiness surface, grounded
// on the teacher's cmd/agentd/main.go mux.HandleFunc("/healthz", ...)
// pattern. The turn envelope itself never crosses this HTTP server: C1
// and C2 are separate processes with no shared in-process memory (spec
// §5), and coordinate over TurnTopic/TurnReplyTopic instead (see
// RunTurnConsumer in turnconsumer.go). This endpoint exists only so an
// orchestrator (k8s, compose) has something to probe.
func NewHandler(g *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})

	return mux
}

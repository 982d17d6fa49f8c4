package gateway

import "tzurot/internal/worker"

// splitDelivery chunks final content for C1 delivery (spec §4.2 step
// vii), reusing C4's splitter: chunking is a pure function of content
// and the platform's per-message limit, not job state, so sharing it
// across C2 and C4 costs nothing and keeps chunk boundaries consistent
// wherever a message happens to get split.
func splitDelivery(content string) []string {
	chunks := worker.SplitForDelivery(content, 0)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}

package gateway

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// digest hashes the sorted external-name/upstream-name pairs of a route
// set so two snapshots with identical routing produce the same digest
// regardless of map iteration order.
func digest(routes []Route) string {
	h := xxhash.New()
	for _, r := range routes {
		h.WriteString(r.ExternalToolName)
		h.WriteString("\x00")
		h.WriteString(r.UpstreamName)
		h.WriteString("\x00")
		h.WriteString(r.UpstreamToolName)
		h.WriteString("\x1e")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

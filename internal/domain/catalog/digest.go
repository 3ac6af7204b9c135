package catalog

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/contextify/contextify/internal/domain/tool"
)

// digest computes a content address for a snapshot's tool list: the
// xxhash64 of each tool's name, description and input schema in
// insertion order. It is exposed as an ETag-like signal on diagnostics
// endpoints so a poller can cheaply tell whether anything changed
// (spec.md SPEC_FULL §3 SUPPLEMENT).
func digest(order []string, byName map[string]tool.Descriptor) string {
	h := xxhash.New()
	for _, name := range order {
		td := byName[name]
		_, _ = h.WriteString(td.ToolName)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(td.Description)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(td.InputSchemaJSON)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

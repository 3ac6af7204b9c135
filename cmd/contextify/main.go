// Command contextify runs either the in-process tool host or the
// multi-upstream gateway host, speaking the /mcp JSON-RPC surface
// shared by both (spec.md §2).
package main

import "github.com/contextify/contextify/cmd/contextify/cmd"

func main() {
	cmd.Execute()
}

package gateway

import "sort"

func sortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool { return routes[i].ExternalToolName < routes[j].ExternalToolName })
}

package storage

import "fmt"

// ResourceScheme prefixes the URIs of stored runs.
const ResourceScheme = "rental://"

// CalculateResourcePaths lists the resource URIs available for a run.
func CalculateResourcePaths(runID string) []string {
	return []string{
		fmt.Sprintf("%s%s", ResourceScheme, runID),
		fmt.Sprintf("%s%s/answers", ResourceScheme, runID),
		fmt.Sprintf("%s%s/summary", ResourceScheme, runID),
	}
}

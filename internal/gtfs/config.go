package gtfs

import (
	"slices"

	"transitcore.delaycast.org/internal/appconf"
)

// Config holds the schedule store configuration.
type Config struct {
	// BaseDir is searched first for <city>_GTFS folders or archives.
	BaseDir string
	// ProjectRoot is the secondary search root.
	ProjectRoot string
	Env         appconf.Environment
	Verbose     bool
}

// searchRoots returns the configured roots in lookup order, skipping blanks
// and duplicates. With nothing configured the working directory is used.
func (config Config) searchRoots() []string {
	var roots []string
	for _, root := range []string{config.BaseDir, config.ProjectRoot} {
		if root == "" {
			continue
		}
		if !slices.Contains(roots, root) {
			roots = append(roots, root)
		}
	}
	if len(roots) == 0 {
		roots = append(roots, ".")
	}
	return roots
}

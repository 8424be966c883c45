// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Set at build time with -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString renders the build metadata for "memorag version".
func VersionString() string {
	return fmt.Sprintf("memorag %s (%s, built %s)", Version, Sha, Buildtime)
}

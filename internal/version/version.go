// Package version holds build information set via ldflags:
//
//	go build -ldflags "-X air-server/internal/version.Version=1.2.0 \
//	                   -X air-server/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns "<version> (<commit>)".
func String() string {
	return Version + " (" + Commit + ")"
}

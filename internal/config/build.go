package config

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X hlsrecon/internal/config.version=1.2.3 \
//	    -X hlsrecon/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X hlsrecon/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Default values are used during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// BuildInfo carries build metadata for cold-start logging.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

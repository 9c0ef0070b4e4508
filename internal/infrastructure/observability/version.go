package observability

// Build metadata, set with -ldflags "-X replay-proxy/internal/infrastructure/observability.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = ""
)

// BuildInfo is the payload of /api/version.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
}

func Build() BuildInfo { return BuildInfo{Version: Version, Commit: Commit, Date: Date} }

// Package version reports the build version of the Shadow Room binaries.
//
// Release builds inject the values with ldflags:
//
//	go build -ldflags "-X github.com/NicolasHaas/shadowroom/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/shadowroom/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/shadowroom/pkg/version.date=2026-01-01" ./cmd/server
package version

var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

// String returns the tag, else the commit, else "dev".
func String() string {
	switch {
	case tag != "":
		return tag
	case commit != "unknown":
		return commit
	default:
		return "dev"
	}
}

// Full adds the commit and build date to String when they are known.
func Full() string {
	switch {
	case tag != "":
		return tag + " (" + commit + ") built " + date
	case commit != "unknown":
		return commit + " built " + date
	default:
		return "dev"
	}
}

// Labels returns the build facts as Prometheus label pairs.
func Labels() string {
	return `version="` + String() + `",commit="` + commit + `",date="` + date + `"`
}

// Package version carries build metadata injected with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/erasure-api/internal/version.Version=1.4.0 \
//	  -X github.com/jmylchreest/erasure-api/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Product is the name used in logs and outbound User-Agent headers.
const Product = "erasure-api"

var (
	Version = "0.0.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
	Dirty   = "false"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build info of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Dirty:     Dirty == "true",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) built %s", i.Short(), i.Commit, i.Date)
}

// Short is the version, suffixed with -dirty for builds from a modified tree.
func (i Info) Short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// UserAgent identifies this service to customer endpoints, e.g.
// "erasure-api/1.4.0 (+abc1234)".
func (i Info) UserAgent() string {
	if i.Commit == "" || i.Commit == "unknown" {
		return Product + "/" + i.Short()
	}
	return fmt.Sprintf("%s/%s (+%s)", Product, i.Short(), i.Commit)
}

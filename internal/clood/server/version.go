package server

import (
	"github.com/Masterminds/semver/v3"
)

// Version is the version of the clood server.
const Version = "0.1.0"

// ApiVersion is the version of the HTTP API. Clients accept servers whose
// API version satisfies ">= ApiVersion, < next major".
const ApiVersion = "1.0.0"

var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("^" + ApiVersion)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether an API version reported by a server
// can be used by this build. Invalid version strings are incompatible.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return versionConstraint.Check(v)
}

// Package version classifies transitions between published version strings.
//
// Parsing is deliberately permissive: registry version strings are not
// guaranteed to be well-formed semver, so malformed input degrades to
// Unknown instead of producing an error.
package version

import (
	"strconv"
	"strings"
)

// NoPrior is the sentinel recorded as the prior version when a package is
// observed for the first time. It is display-only and never compared as a
// real version.
const NoPrior = "none"

// ChangeKind describes the nature of a version transition.
type ChangeKind string

const (
	Major      ChangeKind = "major"
	Minor      ChangeKind = "minor"
	Patch      ChangeKind = "patch"
	Prerelease ChangeKind = "prerelease"
	Unknown    ChangeKind = "unknown"
)

// Classify compares two version strings and returns the kind of change.
//
// An absent or sentinel prior version yields Unknown. A hyphen in the new
// version marks a prerelease regardless of the prior version. Otherwise the
// strings are reduced to their numeric major.minor.patch components and
// compared in order; equal versions, downgrades, and unparsable input all
// yield Unknown.
func Classify(from, to string) ChangeKind {
	if from == "" || from == NoPrior {
		return Unknown
	}
	if strings.Contains(to, "-") {
		return Prerelease
	}

	oldMajor, oldMinor, oldPatch := components(from)
	newMajor, newMinor, newPatch := components(to)

	switch {
	case newMajor > oldMajor:
		return Major
	case newMinor > oldMinor:
		return Minor
	case newPatch > oldPatch:
		return Patch
	}
	return Unknown
}

// components extracts up to three numeric components from a version string.
// Missing or unparsable components are treated as zero.
func components(v string) (major, minor, patch int) {
	var b strings.Builder
	for _, r := range v {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	parts := strings.Split(b.String(), ".")
	nums := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			continue
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2]
}

package domain

import (
	"fmt"
)

// APIVersion is a validated API version string, set into the request
// context by the version middleware and carried into logs.
type APIVersion string

// Supported API versions.
const (
	APIVersionV1 APIVersion = "v1"
)

var versionOrder = map[APIVersion]int{
	APIVersionV1: 1,
}

// ParseAPIVersion validates and returns an APIVersion.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := versionOrder[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string { return string(v) }

// IsNil reports whether the version is unset.
func (v APIVersion) IsNil() bool { return v == "" }

// IsAtLeast reports whether v is the same as or newer than other.
// Unknown versions order below every known version.
func (v APIVersion) IsAtLeast(other APIVersion) bool {
	thisOrder, thisOK := versionOrder[v]
	otherOrder, otherOK := versionOrder[other]
	if !thisOK {
		return false
	}
	if !otherOK {
		return true
	}
	return thisOrder >= otherOrder
}

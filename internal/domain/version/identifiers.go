package version

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	gameIDMinLen = 3
	gameIDMaxLen = 50
)

var (
	gameIDCharset = regexp.MustCompile(`^[a-z0-9.-]+$`)
	semverPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
		`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)
)

// FieldResult is the outcome of a single-field grammar check.
type FieldResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func fieldOK() FieldResult { return FieldResult{Valid: true} }

func fieldErr(msg string) FieldResult { return FieldResult{Error: msg} }

// ValidateGameID checks the game identifier grammar: lowercase letters, digits,
// dot and hyphen, 3-50 characters, no leading or trailing dot or hyphen.
func ValidateGameID(id string) FieldResult {
	if strings.TrimSpace(id) == "" {
		return fieldErr("game id is required")
	}
	if !gameIDCharset.MatchString(id) {
		return fieldErr("game id may only contain lowercase letters, digits, dots and hyphens")
	}
	if len(id) < gameIDMinLen || len(id) > gameIDMaxLen {
		return fieldErr("game id must be between 3 and 50 characters")
	}
	first, last := id[0], id[len(id)-1]
	if first == '.' || first == '-' || last == '.' || last == '-' {
		return fieldErr("game id cannot start or end with '.' or '-'")
	}
	return fieldOK()
}

// ValidateVersion checks MAJOR.MINOR.PATCH[-pre][+build].
func ValidateVersion(v string) FieldResult {
	if strings.TrimSpace(v) == "" {
		return fieldErr("version is required")
	}
	if !semverPattern.MatchString(v) {
		return fieldErr("version must follow semantic versioning (MAJOR.MINOR.PATCH, e.g. 1.0.0)")
	}
	return fieldOK()
}

// CompareVersions orders two valid semantic versions the way semver precedence does.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

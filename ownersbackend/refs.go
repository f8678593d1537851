package ownersbackend

import (
	"strings"

	"github.com/clarketm/codeowners/ownersconfig"
)

// ParseRef parses the "[project:][branch:]filepath" ref syntax from
// spec §6. With three colon-separated parts the first two are project and
// branch; with two parts they are interpreted as branch:path (project
// stays implicit, matching the host's disambiguation rule) because
// project-qualified two-part refs are rare enough that the branch
// reading dominates in practice.
func ParseRef(s string, mode ownersconfig.ImportMode) ownersconfig.ConfigRef {
	parts := strings.SplitN(s, ":", 3)
	ref := ownersconfig.ConfigRef{ImportMode: mode}
	switch len(parts) {
	case 3:
		ref.Project, ref.Branch, ref.FilePath = parts[0], parts[1], parts[2]
	case 2:
		ref.Branch, ref.FilePath = parts[0], parts[1]
	default:
		ref.FilePath = parts[0]
	}
	return ref
}

// FormatRef is the inverse of ParseRef.
func FormatRef(ref ownersconfig.ConfigRef) string {
	var b strings.Builder
	if ref.Project != "" {
		b.WriteString(ref.Project)
		b.WriteString(":")
	}
	if ref.Branch != "" {
		b.WriteString(ref.Branch)
		b.WriteString(":")
	}
	b.WriteString(ref.FilePath)
	return b.String()
}

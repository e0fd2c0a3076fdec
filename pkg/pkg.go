// Package pkg holds the identity of the catapillar project and the
// per-user directories its command-line host reads and writes.
//
//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the semantic version embedded at build time.
var Version = strings.TrimSpace(version)

const (
	// Name is the command name and the base name of the configuration and
	// cache directories.
	Name = "catapillar"
	// Description is the one-line summary shown in help output.
	Description = "Embeddable scripting language with a pluggable grammar"
	// Extension is the conventional file extension of catapillar sources.
	Extension = ".cat"
)

// AuthorInfo is an author's name and email address.
type AuthorInfo struct {
	Name  string
	Email string
}

// Author lists the primary author(s) of the project.
var Author = []AuthorInfo{
	{"ardnew", "andrew@ardnew.com"},
}

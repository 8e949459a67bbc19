// Package resource implements the concrete rule kinds: files, copies,
// packages, users, services, executables on PATH, and host declarations.
package resource

import "github.com/kurtbuilds/cook/pkg/rule"

// RegisterAll binds every resource tag into the registry. Called once
// before loading; tags are stable and collision-free by construction.
func RegisterAll(reg *rule.Registry) {
	reg.MustRegister("file", fileHandler)
	reg.MustRegister("cp", copyHandler)
	reg.MustRegister("package", packageHandler)
	reg.MustRegister("user", userHandler)
	reg.MustRegister("service", serviceHandler)
	reg.MustRegister("which", whichHandler)
	reg.MustRegister("host", hostHandler)
}

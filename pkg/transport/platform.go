package transport

import (
	"fmt"
	"strings"

	"github.com/kurtbuilds/cook/pkg/types"
)

// parsePlatform maps "uname -s / uname -m / glibc path" probe output to a
// target triple. Unknown OS or architecture is fatal for the host.
func parsePlatform(probe string) (types.Platform, error) {
	parts := strings.Fields(probe)
	if len(parts) < 2 {
		return types.Platform{}, fmt.Errorf("unexpected platform probe output %q", probe)
	}
	uname, arch := parts[0], parts[1]
	libcPath := ""
	if len(parts) > 2 {
		libcPath = parts[2]
	}

	var p types.Platform
	switch uname {
	case "Linux":
		p.OS = "unknown-linux"
	case "Darwin":
		p.OS = "apple-darwin"
	default:
		return types.Platform{}, fmt.Errorf("unsupported OS %q", uname)
	}

	switch arch {
	case "x86_64":
		p.Arch = "x86_64"
	case "aarch64", "arm64":
		p.Arch = "aarch64"
	default:
		return types.Platform{}, fmt.Errorf("unsupported architecture %q", arch)
	}

	if p.OS == "unknown-linux" {
		if libcPath != "" {
			p.Libc = "gnu"
		} else {
			p.Libc = "musl"
		}
	}
	return p, nil
}

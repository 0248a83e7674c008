package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/insurag/internal/dagger"
)

// Build and return directory of go binaries
func (m *Insurag) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()

	// sqlite storage and sqlite-vec need cgo, so only the host matrix of
	// the bookworm image is built.
	for _, goarch := range []string{"amd64", "arm64"} {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := m.goContainer().
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", goarch).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/insurag"}).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/insuragapi"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (m *Insurag) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	pkg := "github.com/papercomputeco/insurag/pkg/utils"
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", pkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", pkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", pkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return m.Build(ctx, strings.Join(ldflags, " "))
}

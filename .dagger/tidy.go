package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagger/insurag/internal/dagger"
)

// goSourceDirs are the directories holding the module's Go packages.
var goSourceDirs = []string{"api", "cli", "cmd", "pkg"}

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (m *Insurag) CheckGoModTidy(ctx context.Context) (string, error) {
	return m.checkUnchanged(ctx, []string{"go", "mod", "tidy"}, "go.mod", "go.sum")
}

// CheckGofmt fails when a Go file under the package directories is not
// gofmt formatted.
//
// +check
func (m *Insurag) CheckGofmt(ctx context.Context) (string, error) {
	out, err := m.goContainer().
		WithExec(append([]string{"gofmt", "-l"}, goSourceDirs...)).
		Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("running gofmt: %w", err)
	}
	if files := strings.TrimSpace(out); files != "" {
		return "", fmt.Errorf("files need gofmt:\n%s", files)
	}
	return "all Go files are gofmt formatted", nil
}

// checkUnchanged runs cmd and fails with a diff when it rewrote any of files.
func (m *Insurag) checkUnchanged(ctx context.Context, cmd []string, files ...string) (string, error) {
	ctr := m.goContainer()
	diffs := make([]string, 0, len(files))
	for _, f := range files {
		ctr = ctr.WithExec([]string{"cp", f, f + ".HEAD"})
		diffs = append(diffs, fmt.Sprintf("diff -u %s.HEAD %s", f, f))
	}

	_, err := ctr.
		WithExec(cmd).
		WithExec([]string{"sh", "-c", strings.Join(diffs, " && ")}).
		Stdout(ctx)

	name := strings.Join(cmd, " ")
	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("%s changed %s: run it and commit the result\n\n%s",
			name, strings.Join(files, " or "), e.Stdout)
	} else if err != nil {
		return "", fmt.Errorf("running %s: %w", name, err)
	}

	return fmt.Sprintf("%s left %s unchanged", name, strings.Join(files, " and ")), nil
}

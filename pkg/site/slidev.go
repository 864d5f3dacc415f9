package site

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
)

// BuildDeckWithSlidev compiles one deck by shelling out to the Slidev CLI
// via npx. The output path is made absolute first: slidev resolves --out
// relative to the deck source file, not the working directory.
func BuildDeckWithSlidev(ctx context.Context, sourcePath, outDir, baseURL string) error {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return errors.Wrapf(err, "resolving output directory %s", outDir)
	}

	cmd := exec.CommandContext(ctx, "npx", "slidev", "build", sourcePath, "--base", baseURL, "--out", absOut)
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "output: %s", string(output))
	}
	return nil
}

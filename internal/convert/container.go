// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pdiddy/word2pdf/internal/container"
	"github.com/pdiddy/word2pdf/pkg/types"
)

// DefaultImage is the local image expected to provide soffice.
const DefaultImage = "libreoffice:latest"

const (
	containerIn  = "/in"
	containerOut = "/out"
)

// ContainerConverter converts documents with LibreOffice inside a container.
// It depends on a container.Runtime (docker or podman) injected at
// construction time.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter creates a converter that runs cfg.Image (default
// DefaultImage) with rt. It verifies that the image exists locally before
// returning.
func NewContainerConverter(rt container.Runtime, cfg types.ContainerConfig) (*ContainerConverter, error) {
	image := cfg.Image
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("%w: image %s not available in %s: %v", ErrBackendUnavailable, image, rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

func (c *ContainerConverter) Name() string { return string(types.BackendContainer) }

// Convert mounts the source directory read-only and a scratch output
// directory, runs soffice in the container, and moves the PDF into place.
func (c *ContainerConverter) Convert(ctx context.Context, src, dst string) error {
	work, err := workDir(dst)
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	// The image may run soffice as an unprivileged user.
	if err := os.Chmod(work, 0o777); err != nil {
		return fmt.Errorf("preparing work directory: %w", err)
	}

	var stderr bytes.Buffer
	spec := container.RunSpec{
		Image: c.image,
		Mounts: []container.Mount{
			{Host: filepath.Dir(src), Container: containerIn, ReadOnly: true},
			{Host: work, Container: containerOut},
		},
		Args: []string{
			"soffice", "--headless", "--norestore", "--nolockcheck",
			"--convert-to", "pdf",
			"--outdir", containerOut,
			path.Join(containerIn, filepath.Base(src)),
		},
		Stderr: &stderr,
	}

	if err := c.runtime.Run(ctx, spec); err != nil {
		return fmt.Errorf("converting %s in %s: %w: %s", filepath.Base(src), c.runtime.Name(), err, tail(stderr.Bytes()))
	}
	if err := placePDF(filepath.Join(work, pdfName(src)), dst); err != nil {
		return fmt.Errorf("converting %s in %s: %w: %s", filepath.Base(src), c.runtime.Name(), err, tail(stderr.Bytes()))
	}
	return nil
}

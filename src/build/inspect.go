package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/docker/docker/client"
)

const shortIDLength = 12

// ImageInfo is what an Inspector reports about a built image.
type ImageInfo struct {
	ID   string // short image ID
	Size datasize.ByteSize
}

// Inspector looks up a local image by reference.
type Inspector interface {
	Inspect(ctx context.Context, image string) (ImageInfo, error)
}

// DockerInspector inspects images through the Docker Engine API.
type DockerInspector struct {
	cli *client.Client
}

// NewDockerInspector connects to the daemon configured by DOCKER_HOST and
// friends.
func NewDockerInspector() (*DockerInspector, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerInspector{cli: cli}, nil
}

// Inspect returns the short ID and size of image.
func (d *DockerInspector) Inspect(ctx context.Context, image string) (ImageInfo, error) {
	resp, _, err := d.cli.ImageInspectWithRaw(ctx, image)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("inspecting %s: %w", image, err)
	}
	return ImageInfo{
		ID:   ShortID(resp.ID),
		Size: datasize.ByteSize(resp.Size),
	}, nil
}

// Close releases the client's connections.
func (d *DockerInspector) Close() error {
	return d.cli.Close()
}

// ShortID trims the digest algorithm and truncates an image ID.
func ShortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

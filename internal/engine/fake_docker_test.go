package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeContainer struct {
	id      string
	image   string
	labels  map[string]string
	env     []string
	exposed nat.PortSet
	memory  int64
	network string
	running bool
}

// fakeDocker — Docker API в памяти.
type fakeDocker struct {
	mu sync.Mutex

	seq        int
	containers map[string]*fakeContainer
	images     map[string]bool

	created   []string // образы в порядке создания контейнеров
	pulled    []string
	removed   []string
	commits   []container.CommitOptions
	createErr map[string]error // image → ошибка ContainerCreate
	startErr  map[string]error // image → ошибка ContainerStart
}

func newFakeDocker(images ...string) *fakeDocker {
	f := &fakeDocker{
		containers: make(map[string]*fakeContainer),
		images:     make(map[string]bool),
		createErr:  make(map[string]error),
		startErr:   make(map[string]error),
	}
	for _, img := range images {
		f.images[img] = true
	}
	return f
}

func notFound(format string, args ...any) error {
	return errdefs.NotFound(fmt.Errorf(format, args...))
}

// addContainer регистрирует контейнер, созданный «до» запуска теста.
func (f *fakeDocker) addContainer(id, img string, labels map[string]string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[id] = &fakeContainer{id: id, image: img, labels: labels, running: running}
}

func (f *fakeDocker) container(id string) (*fakeContainer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	return c, ok
}

func (f *fakeDocker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, hostCfg *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.createErr[cfg.Image]; err != nil {
		return container.CreateResponse{}, err
	}

	f.seq++
	id := fmt.Sprintf("container-%d", f.seq)
	f.containers[id] = &fakeContainer{
		id:      id,
		image:   cfg.Image,
		labels:  cfg.Labels,
		env:     cfg.Env,
		exposed: cfg.ExposedPorts,
		memory:  hostCfg.Memory,
		network: string(hostCfg.NetworkMode),
	}
	f.created = append(f.created, cfg.Image)
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return notFound("no such container: %s", id)
	}
	if err := f.startErr[c.image]; err != nil {
		return err
	}
	c.running = true
	return nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return notFound("no such container: %s", id)
	}
	c.running = false
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.containers[id]; !ok {
		return notFound("no such container: %s", id)
	}
	delete(f.containers, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[id]
	if !ok {
		return types.ContainerJSON{}, notFound("no such container: %s", id)
	}

	ports := nat.PortMap{}
	hostPort := 32768
	for p := range c.exposed {
		ports[p] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: fmt.Sprint(hostPort)}}
		hostPort++
	}

	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    c.id,
			State: &types.ContainerState{Running: c.running},
		},
		Config: &container.Config{Image: c.image, Labels: c.labels},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{Ports: ports},
			Networks: map[string]*network.EndpointSettings{
				"bridge": {IPAddress: "172.17.0.2"},
			},
		},
	}, nil
}

func (f *fakeDocker) ContainerList(_ context.Context, opts container.ListOptions) ([]types.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := opts.Filters.Get("label")
	var out []types.Container
	for _, c := range f.containers {
		match := true
		for _, kv := range want {
			k, v, _ := strings.Cut(kv, "=")
			if c.labels[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, types.Container{ID: c.id, Labels: c.labels})
		}
	}
	return out, nil
}

func (f *fakeDocker) ContainerCommit(_ context.Context, id string, opts container.CommitOptions) (types.IDResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.containers[id]; !ok {
		return types.IDResponse{}, notFound("no such container: %s", id)
	}
	f.seq++
	imageID := fmt.Sprintf("sha256:image-%d", f.seq)
	f.images[imageID] = true
	f.commits = append(f.commits, opts)
	return types.IDResponse{ID: imageID}, nil
}

func (f *fakeDocker) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.images[ref] {
		return types.ImageInspect{}, nil, notFound("no such image: %s", ref)
	}
	return types.ImageInspect{ID: ref}, nil, nil
}

func (f *fakeDocker) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.images[ref] = true
	f.pulled = append(f.pulled, ref)
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded newer image"}`)), nil
}

func (f *fakeDocker) ImageRemove(_ context.Context, ref string, _ image.RemoveOptions) ([]image.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.images[ref] {
		return nil, notFound("no such image: %s", ref)
	}
	delete(f.images, ref)
	return []image.DeleteResponse{{Deleted: ref}}, nil
}

func (f *fakeDocker) Close() error { return nil }

var errDaemon = errors.New("docker daemon error")

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/wsmaster/internal/domain"
)

// fakeEngine — EnvironmentEngine в памяти, записывающий вызовы.
type fakeEngine struct {
	mu sync.Mutex

	machines map[string][]domain.Machine
	calls    []string

	// startResult переопределяет список машин, возвращаемый Start.
	startResult []domain.Machine

	// startGate блокирует Start до закрытия канала; startEntered получает ID при входе.
	startGate    chan struct{}
	startEntered chan string

	// stopGate и stopEntered — то же для Stop.
	stopGate    chan struct{}
	stopEntered chan string

	// ctx.Err() после выхода из gate.
	startCtxErr error
	stopCtxErrs []error

	startErr        error
	stopErr         error
	startMachineErr error
	getMachineErr   error
	saveErr         error

	stopCalls      int
	getMachinesCnt int
	removed        []domain.Snapshot
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{machines: make(map[string][]domain.Machine)}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Start(ctx context.Context, workspaceID string, env domain.Environment, recoverState bool, onMachineStarted func(domain.Machine)) ([]domain.Machine, error) {
	e.record("start:" + workspaceID)

	if e.startEntered != nil {
		e.startEntered <- workspaceID
	}
	if e.startGate != nil {
		<-e.startGate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.startCtxErr = ctx.Err()
	if e.startErr != nil {
		return nil, e.startErr
	}

	var machines []domain.Machine
	if e.startResult != nil {
		machines = e.startResult
	} else {
		for _, cfg := range env.Machines {
			machines = append(machines, newMachine(workspaceID, env.Name, cfg))
		}
	}

	for _, m := range machines {
		onMachineStarted(m)
	}

	e.machines[workspaceID] = machines
	return cloneMachines(machines), nil
}

func (e *fakeEngine) StartMachine(ctx context.Context, workspaceID string, cfg domain.MachineConfig) (domain.Machine, error) {
	e.record("startMachine:" + workspaceID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startMachineErr != nil {
		return domain.Machine{}, e.startMachineErr
	}
	m := newMachine(workspaceID, "default-env", cfg)
	e.machines[workspaceID] = append(e.machines[workspaceID], m)
	return m, nil
}

func (e *fakeEngine) StopMachine(ctx context.Context, workspaceID, machineID string) error {
	e.record("stopMachine:" + workspaceID + "/" + machineID)

	e.mu.Lock()
	defer e.mu.Unlock()

	var kept []domain.Machine
	for _, m := range e.machines[workspaceID] {
		if m.ID != machineID {
			kept = append(kept, m)
		}
	}
	e.machines[workspaceID] = kept
	return nil
}

func (e *fakeEngine) Stop(ctx context.Context, workspaceID string) error {
	e.record("stop:" + workspaceID)

	if e.stopEntered != nil {
		e.stopEntered <- workspaceID
	}
	if e.stopGate != nil {
		<-e.stopGate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopCtxErrs = append(e.stopCtxErrs, ctx.Err())
	e.stopCalls++
	if e.stopErr != nil {
		return e.stopErr
	}
	delete(e.machines, workspaceID)
	return nil
}

func (e *fakeEngine) GetMachines(ctx context.Context, workspaceID string) ([]domain.Machine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.getMachinesCnt++
	return cloneMachines(e.machines[workspaceID]), nil
}

func (e *fakeEngine) GetMachine(ctx context.Context, workspaceID, machineID string) (domain.Machine, error) {
	e.record("getMachine:" + workspaceID + "/" + machineID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.getMachineErr != nil {
		return domain.Machine{}, e.getMachineErr
	}
	for _, m := range e.machines[workspaceID] {
		if m.ID == machineID {
			return m, nil
		}
	}
	return domain.Machine{}, domain.NotFoundf("Machine '%s' is not found in workspace '%s'", machineID, workspaceID)
}

func (e *fakeEngine) SaveSnapshot(ctx context.Context, namespace, workspaceID, machineID string) (domain.Snapshot, error) {
	e.record("save:" + workspaceID + "/" + machineID)

	if e.saveErr != nil {
		return domain.Snapshot{}, e.saveErr
	}
	return domain.Snapshot{
		ID:          uuid.New(),
		ImageID:     "sha256:" + machineID,
		Namespace:   namespace,
		WorkspaceID: workspaceID,
		CreatedAt:   time.Now(),
	}, nil
}

func (e *fakeEngine) RemoveSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	e.record("removeSnapshot:" + snapshot.ID.String())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, snapshot)
	return nil
}

func (e *fakeEngine) setMachines(workspaceID string, machines []domain.Machine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machines[workspaceID] = machines
}

func (e *fakeEngine) called(call string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.calls {
		if c == call {
			return true
		}
	}
	return false
}

// recordingPublisher — EventPublisher, запоминающий события по порядку.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []domain.WorkspaceEvent
	ctxErrs []error

	// onPublish вызывается синхронно до записи события.
	onPublish func(domain.WorkspaceEvent)
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.WorkspaceEvent) error {
	if p.onPublish != nil {
		p.onPublish(event)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *recordingPublisher) typesFor(workspaceID string) []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	var types []domain.EventType
	for _, e := range p.events {
		if e.WorkspaceID == workspaceID {
			types = append(types, e.Type)
		}
	}
	return types
}

func (p *recordingPublisher) lastFor(workspaceID string) domain.WorkspaceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].WorkspaceID == workspaceID {
			return p.events[i]
		}
	}
	return domain.WorkspaceEvent{}
}

// cancelledPublishes возвращает количество событий, опубликованных с отменённым ctx.
func (p *recordingPublisher) cancelledPublishes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, err := range p.ctxErrs {
		if err != nil {
			n++
		}
	}
	return n
}

// failingLauncher — AgentLauncher, всегда возвращающий ошибку.
type failingLauncher struct {
	mu       sync.Mutex
	launched []string
}

func (l *failingLauncher) Launch(ctx context.Context, workspaceID string, dev domain.Machine) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, workspaceID+"/"+dev.ID)
	return errors.New("agent did not respond")
}

// --- helpers ---

const (
	testWorkspaceID = "workspace123"
	testEnvName     = "default-env"
)

func newMachine(workspaceID, envName string, cfg domain.MachineConfig) domain.Machine {
	return domain.Machine{
		ID:          fmt.Sprintf("machine-%s-%s", cfg.Name, uuid.NewString()[:8]),
		WorkspaceID: workspaceID,
		EnvName:     envName,
		Config:      cfg,
		Runtime:     domain.MachineRuntime{Ready: true},
	}
}

func createConfig(name string, dev bool) domain.MachineConfig {
	return domain.MachineConfig{
		Name:   name,
		Type:   "docker",
		Source: domain.MachineSource{Type: domain.MachineSourceImage, Location: "codenvy/ubuntu_jdk8"},
		Limits: domain.MachineLimits{RAMMB: 1024},
		Dev:    dev,
	}
}

func createWorkspace(id string) *domain.Workspace {
	return &domain.Workspace{
		ID:         id,
		Namespace:  "user123",
		DefaultEnv: testEnvName,
		Environments: []domain.Environment{
			{
				Name: testEnvName,
				Machines: []domain.MachineConfig{
					createConfig("dev-machine", true),
					createConfig("non-dev", false),
				},
			},
		},
	}
}

func cloneMachines(machines []domain.Machine) []domain.Machine {
	if machines == nil {
		return nil
	}
	out := make([]domain.Machine, len(machines))
	for i, m := range machines {
		out[i] = m.Clone()
	}
	return out
}

func newTestOrchestrator(engine *fakeEngine, pub *recordingPublisher) *Orchestrator {
	return New(Config{
		Engine:    engine,
		Publisher: pub,
	})
}

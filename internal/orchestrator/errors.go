package orchestrator

import (
	"errors"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Ошибки реестра.
var (
	// ErrInvalidTransition — недопустимый переход статуса runtime.
	ErrInvalidTransition = errors.New("invalid runtime status transition")

	// ErrRuntimeNotRegistered — runtime отсутствует в реестре.
	ErrRuntimeNotRegistered = errors.New("runtime not registered")
)

func errNotRunning(workspaceID string) error {
	return domain.NotFoundf("Workspace with id '%s' is not running.", workspaceID)
}

func errAlreadyHasRuntime(workspaceID string, status domain.RuntimeStatus) error {
	return domain.Conflictf("Could not start workspace '%s' because its status is '%s'", workspaceID, status)
}

func errCannotStop(workspaceID string, status domain.RuntimeStatus) error {
	return domain.Conflictf("Could not stop workspace '%s' because its status is '%s'", workspaceID, status)
}

func errEnvNotRunning(workspaceID string) error {
	return domain.Conflictf("Environment of workspace '%s' is not running", workspaceID)
}

func errEnvNotFound(workspaceID, envName string) error {
	return domain.NotFoundf("Environment '%s' is not found in workspace '%s'", envName, workspaceID)
}

func errDevMachineMissing(workspaceID string) error {
	return domain.ServerErrorf("Dev machine is not found in active environment of workspace '%s'", workspaceID)
}

func errTooManyDevMachines(workspaceID string) error {
	return domain.ServerErrorf("Environment of workspace '%s' contains more than one dev machine", workspaceID)
}

func errAppStopping() error {
	return domain.ServerErrorf("Could not perform operation because application server is stopping")
}

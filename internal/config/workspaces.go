package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/wsmaster/internal/domain"
)

// ErrInvalidWorkspaces — файл workspace содержит ошибки.
var ErrInvalidWorkspaces = errors.New("invalid workspaces file")

// workspacesFile — формат файла с описаниями workspace.
type workspacesFile struct {
	Workspaces []domain.Workspace `yaml:"workspaces"`
}

// LoadWorkspaces читает описания workspace из YAML файла.
// Пустой path — пустой каталог.
func LoadWorkspaces(path string) (map[string]*domain.Workspace, error) {
	catalog := make(map[string]*domain.Workspace)
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspaces file: %w", err)
	}

	return ParseWorkspaces(data)
}

// ParseWorkspaces разбирает YAML с описаниями workspace.
func ParseWorkspaces(data []byte) (map[string]*domain.Workspace, error) {
	var file workspacesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse workspaces file: %w", err)
	}

	var errs ValidationErrors
	catalog := make(map[string]*domain.Workspace, len(file.Workspaces))
	for i := range file.Workspaces {
		ws := file.Workspaces[i]
		field := fmt.Sprintf("workspaces[%d]", i)

		if ws.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Value: ws.ID, Message: "is required"})
			continue
		}
		if _, ok := catalog[ws.ID]; ok {
			errs = append(errs, ValidationError{Field: field + ".id", Value: ws.ID, Message: "duplicate workspace id"})
			continue
		}
		if ws.DefaultEnv == "" && len(ws.Environments) == 1 {
			ws.DefaultEnv = ws.Environments[0].Name
		}
		if _, ok := ws.Environment(""); !ok {
			errs = append(errs, ValidationError{Field: field + ".default_env", Value: ws.DefaultEnv, Message: "environment is not defined"})
			continue
		}

		catalog[ws.ID] = &ws
	}

	if len(errs) > 0 {
		return nil, errors.Join(ErrInvalidWorkspaces, errs)
	}
	return catalog, nil
}

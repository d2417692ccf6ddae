package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/filters"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Метки контейнеров.
const (
	LabelWorkspace = "org.wsmaster.workspace"
	LabelEnv       = "org.wsmaster.env"
	LabelMachine   = "org.wsmaster.machine"
	LabelDev       = "org.wsmaster.dev"
	LabelType      = "org.wsmaster.type"
)

// machineLabels возвращает метки контейнера машины.
func machineLabels(workspaceID, envName string, cfg domain.MachineConfig) map[string]string {
	return map[string]string{
		LabelWorkspace: workspaceID,
		LabelEnv:       envName,
		LabelMachine:   cfg.Name,
		LabelDev:       strconv.FormatBool(cfg.Dev),
		LabelType:      cfg.Type,
	}
}

// workspaceFilter — фильтр контейнеров workspace (и окружения, если envName не пуст).
func workspaceFilter(workspaceID, envName string) filters.Args {
	args := filters.NewArgs(filters.Arg("label", LabelWorkspace+"="+workspaceID))
	if envName != "" {
		args.Add("label", LabelEnv+"="+envName)
	}
	return args
}

// snapshotReference строит имя образа snapshot.
// Docker требует нижний регистр в имени репозитория.
func snapshotReference(namespace, workspaceID, machineName string, at time.Time) string {
	repo := fmt.Sprintf("wsmaster/%s/%s-%s", sanitize(namespace), sanitize(workspaceID), sanitize(machineName))
	return fmt.Sprintf("%s:%d", repo, at.Unix())
}

// sanitize оставляет символы, допустимые в компоненте имени образа.
func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

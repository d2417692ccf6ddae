package engine

import (
	"fmt"

	"github.com/docker/go-connections/nat"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Поддерживаемые типы источников.
var supportedSources = map[string]bool{
	domain.MachineSourceImage: true,
}

// ValidateEnvironment проверяет окружение до создания контейнеров.
//
// Проверяет:
// - Наличие машин
// - Уникальность имён машин
// - Тип и образ источника
// - Формат портов
//
// Количество dev-машин здесь не проверяется: это инвариант оркестратора.
func ValidateEnvironment(env domain.Environment) error {
	if len(env.Machines) == 0 {
		return NewValidationError("", "machines",
			fmt.Sprintf("environment %q has no machines", env.Name), ErrEmptyMachines)
	}

	names := make(map[string]bool, len(env.Machines))
	for _, cfg := range env.Machines {
		if cfg.Name == "" {
			return NewValidationError("", "name", "machine has empty name", ErrEmptyMachineName)
		}
		if names[cfg.Name] {
			return NewValidationError(cfg.Name, "name",
				fmt.Sprintf("duplicate machine name: %s", cfg.Name), ErrDuplicateMachineName)
		}
		names[cfg.Name] = true

		if err := ValidateMachine(cfg); err != nil {
			return err
		}
	}

	return nil
}

// ValidateMachine проверяет одну конфигурацию машины.
func ValidateMachine(cfg domain.MachineConfig) error {
	if cfg.Name == "" {
		return NewValidationError("", "name", "machine has empty name", ErrEmptyMachineName)
	}

	if !supportedSources[cfg.Source.Type] {
		return NewValidationError(cfg.Name, "source.type",
			fmt.Sprintf("unsupported source type: %q", cfg.Source.Type), ErrUnsupportedSource)
	}
	if cfg.Source.Location == "" {
		return NewValidationError(cfg.Name, "source.location",
			"source has empty image reference", ErrEmptySourceLocation)
	}

	for _, p := range cfg.Ports {
		if _, err := parsePort(p); err != nil {
			return NewValidationError(cfg.Name, "ports",
				fmt.Sprintf("invalid port %q: %v", p, err), ErrInvalidPort)
		}
	}

	return nil
}

// parsePort разбирает "4401/tcp" (протокол по умолчанию tcp).
func parsePort(raw string) (nat.Port, error) {
	proto, port := nat.SplitProtoPort(raw)
	if port == "" {
		return "", fmt.Errorf("empty port")
	}
	if _, err := nat.ParsePort(port); err != nil {
		return "", err
	}
	return nat.NewPort(proto, port)
}

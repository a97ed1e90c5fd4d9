package service

import (
	"context"
	"strings"

	"bambu_bridge/internal/repository"
)

// DatabaseService exposes the namespaced key-value store with two
// dashboard quirks applied at the edge:
//   - the "maintenance" namespace is blocked (Mainsail writes incomplete
//     entries there that later break its own UI),
//   - full reads of the "mainsail" namespace convert flat dotted keys to
//     nested objects, which its setDataDeep requires.
type DatabaseService struct {
	ns repository.NamespaceRepo
}

func NewDatabaseService(ns repository.NamespaceRepo) *DatabaseService {
	return &DatabaseService{ns: ns}
}

const maintenanceNamespace = "maintenance"

func (s *DatabaseService) GetItem(ctx context.Context, namespace, key string) (any, error) {
	if namespace == maintenanceNamespace {
		return map[string]any{}, nil
	}
	val, err := s.ns.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if namespace == "mainsail" && key == "" {
		if flat, ok := val.(map[string]any); ok {
			return flattenToNested(flat), nil
		}
	}
	return val, nil
}

func (s *DatabaseService) PostItem(ctx context.Context, namespace, key string, value any) (any, error) {
	if namespace == maintenanceNamespace {
		// Swallow the write, echo the value back.
		return value, nil
	}
	return s.ns.Put(ctx, namespace, key, value)
}

func (s *DatabaseService) DeleteItem(ctx context.Context, namespace, key string) (any, error) {
	return s.ns.Delete(ctx, namespace, key)
}

func (s *DatabaseService) ListNamespaces(ctx context.Context) ([]string, error) {
	namespaces, err := s.ns.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	if namespaces == nil {
		namespaces = []string{}
	}
	return namespaces, nil
}

// flattenToNested converts {"dashboard.layout": x} into
// {"dashboard": {"layout": x}}.
func flattenToNested(flat map[string]any) map[string]any {
	nested := map[string]any{}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		current := nested
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	return nested
}

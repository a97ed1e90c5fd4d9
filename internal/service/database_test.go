package service

import (
	"context"
	"reflect"
	"testing"
)

type fakeNamespaceRepo struct {
	items map[string]map[string]any
}

func newFakeNamespaceRepo() *fakeNamespaceRepo {
	return &fakeNamespaceRepo{items: map[string]map[string]any{}}
}

func (f *fakeNamespaceRepo) Get(ctx context.Context, namespace, key string) (any, error) {
	ns := f.items[namespace]
	if key == "" {
		if len(ns) == 0 {
			return nil, nil
		}
		return ns, nil
	}
	v, ok := ns[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeNamespaceRepo) GetAll(ctx context.Context, namespace string) (map[string]any, error) {
	return f.items[namespace], nil
}

func (f *fakeNamespaceRepo) Put(ctx context.Context, namespace, key string, value any) (any, error) {
	if f.items[namespace] == nil {
		f.items[namespace] = map[string]any{}
	}
	if key == "" {
		obj := value.(map[string]any)
		for k, v := range obj {
			f.items[namespace][k] = v
		}
		return f.items[namespace], nil
	}
	f.items[namespace][key] = value
	return value, nil
}

func (f *fakeNamespaceRepo) Delete(ctx context.Context, namespace, key string) (any, error) {
	delete(f.items[namespace], key)
	return f.items[namespace], nil
}

func (f *fakeNamespaceRepo) Namespaces(ctx context.Context) ([]string, error) {
	var out []string
	for ns := range f.items {
		out = append(out, ns)
	}
	return out, nil
}

func TestDatabase_MaintenanceNamespaceBlocked(t *testing.T) {
	repo := newFakeNamespaceRepo()
	svc := NewDatabaseService(repo)
	ctx := context.Background()

	// Writes are swallowed but echoed.
	v, err := svc.PostItem(ctx, "maintenance", "entry", map[string]any{"broken": true})
	if err != nil {
		t.Fatalf("PostItem: %v", err)
	}
	if v == nil {
		t.Fatalf("blocked write should echo the value")
	}
	if len(repo.items["maintenance"]) != 0 {
		t.Fatalf("maintenance must never be persisted: %v", repo.items)
	}

	// Reads return an empty object.
	got, err := svc.GetItem(ctx, "maintenance", "")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if m, ok := got.(map[string]any); !ok || len(m) != 0 {
		t.Fatalf("maintenance read should be empty object, got %#v", got)
	}
}

func TestDatabase_MainsailFullReadIsNested(t *testing.T) {
	repo := newFakeNamespaceRepo()
	svc := NewDatabaseService(repo)
	ctx := context.Background()

	if _, err := svc.PostItem(ctx, "mainsail", "dashboard.layout", []any{"card1"}); err != nil {
		t.Fatalf("PostItem: %v", err)
	}
	if _, err := svc.PostItem(ctx, "mainsail", "general.locale", "en"); err != nil {
		t.Fatalf("PostItem: %v", err)
	}

	got, err := svc.GetItem(ctx, "mainsail", "")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	want := map[string]any{
		"dashboard": map[string]any{"layout": []any{"card1"}},
		"general":   map[string]any{"locale": "en"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("nested conversion mismatch\ngot  %#v\nwant %#v", got, want)
	}

	// Single-key reads stay flat.
	flat, err := svc.GetItem(ctx, "mainsail", "general.locale")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if flat != "en" {
		t.Fatalf("single key read should be raw, got %#v", flat)
	}
}

func TestDatabase_OtherNamespacesUntouched(t *testing.T) {
	repo := newFakeNamespaceRepo()
	svc := NewDatabaseService(repo)
	ctx := context.Background()

	if _, err := svc.PostItem(ctx, "fluidd", "uiSettings.theme", "dark"); err != nil {
		t.Fatalf("PostItem: %v", err)
	}
	got, err := svc.GetItem(ctx, "fluidd", "")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	m := got.(map[string]any)
	if m["uiSettings.theme"] != "dark" {
		t.Fatalf("non-mainsail namespace must keep flat keys: %#v", m)
	}
}

func TestFlattenToNested(t *testing.T) {
	got := flattenToNested(map[string]any{
		"a.b.c": 1,
		"a.b.d": 2,
		"top":   "v",
	})
	want := map[string]any{
		"a":   map[string]any{"b": map[string]any{"c": 1, "d": 2}},
		"top": "v",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

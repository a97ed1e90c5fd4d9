package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNamespaceValue is returned when a whole-namespace write is not an
// object (the protocol requires merging an object when key is omitted).
var ErrNamespaceValue = errors.New("namespace value must be an object when key is omitted")

type NamespaceSQLite struct {
	db *sql.DB
}

func NewNamespaceSQLite(db *sql.DB) *NamespaceSQLite { return &NamespaceSQLite{db: db} }

// Get returns the decoded value for one key, or the whole namespace map
// when key is empty. Missing entries yield nil, not an error.
func (r *NamespaceSQLite) Get(ctx context.Context, namespace, key string) (any, error) {
	if key == "" {
		m, err := r.GetAll(ctx, namespace)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			return nil, nil
		}
		return m, nil
	}

	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM namespace_items WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

// GetAll returns every key in a namespace.
func (r *NamespaceSQLite) GetAll(ctx context.Context, namespace string) (map[string]any, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, value FROM namespace_items WHERE namespace = ?", namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, rows.Err()
}

// Put stores one key, or merges an object into the namespace when key is
// empty. It returns the stored value (single key) or the namespace map.
func (r *NamespaceSQLite) Put(ctx context.Context, namespace, key string, value any) (any, error) {
	if key == "" {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, ErrNamespaceValue
		}
		for k, v := range obj {
			if err := r.upsert(ctx, namespace, k, v); err != nil {
				return nil, err
			}
		}
		return r.GetAll(ctx, namespace)
	}

	if err := r.upsert(ctx, namespace, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *NamespaceSQLite) upsert(ctx context.Context, namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", namespace, key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO namespace_items (namespace, key, value)
		VALUES (?, ?, ?)
	`, namespace, key, string(raw))
	return err
}

// Delete removes one key and returns the remaining namespace map.
func (r *NamespaceSQLite) Delete(ctx context.Context, namespace, key string) (any, error) {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM namespace_items WHERE namespace = ? AND key = ?",
		namespace, key,
	)
	if err != nil {
		return nil, err
	}
	return r.GetAll(ctx, namespace)
}

// Namespaces lists every namespace with at least one key.
func (r *NamespaceSQLite) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT namespace FROM namespace_items ORDER BY namespace")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// Keep raw text if a legacy row was stored unencoded.
		return raw, nil
	}
	return v, nil
}

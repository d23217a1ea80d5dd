package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Storage bundles the three areas.
type Storage struct {
	Local   Store
	Sync    Store
	Session Store
}

func (s *Storage) Area(a Area) (Store, error) {
	switch a {
	case AreaLocal:
		return s.Local, nil
	case AreaSync:
		return s.Sync, nil
	case AreaSession:
		return s.Session, nil
	default:
		return nil, ErrUnknownArea
	}
}

// GetJSON decodes the value under key into v. It reports false, with v
// untouched, when the key is absent.
func GetJSON(ctx context.Context, st Store, key string, v any) (bool, error) {
	raw, err := st.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, st Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return st.Set(ctx, key, raw)
}

package storage

import (
	"context"
	"errors"
	"sort"
)

type Area string

const (
	AreaLocal   Area = "local"
	AreaSync    Area = "sync"
	AreaSession Area = "session"
)

var ErrUnknownArea = errors.New("unknown storage area")

// Store is a key-value view over a single area.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Apply(ctx context.Context, b Batch) error
}

// Batch is a group of writes applied all together or not at all. A nil
// value removes the key.
type Batch map[string][]byte

// sortedKeys returns the batch keys in a stable order.
func (b Batch) sortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ParseArea(s string) (Area, error) {
	switch a := Area(s); a {
	case AreaLocal, AreaSync, AreaSession:
		return a, nil
	default:
		return "", ErrUnknownArea
	}
}

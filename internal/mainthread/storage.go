package mainthread

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopware/exthost/internal/rpc"
	"github.com/shopware/exthost/internal/storage"
)

const globalScope = "global"

type storedValue struct {
	Value     []byte    `msgpack:"value"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

// Storage persists extension state. Shared values are visible in every
// workspace, the others only in the workspace they were written in.
type Storage struct {
	store     *storage.Store[storedValue]
	workspace string
}

func openStorage(path, workspace string) (*Storage, error) {
	store, err := storage.Open[storedValue](path)
	if err != nil {
		return nil, err
	}
	return &Storage{store: store, workspace: "workspace:" + workspace}, nil
}

func (s *Storage) methods() rpc.Methods {
	return rpc.Methods{
		"$getValue": rpc.Func2(s.GetValue),
		"$setValue": rpc.Action3(s.SetValue),
	}
}

func (s *Storage) scope(shared bool) string {
	if shared {
		return globalScope
	}
	return s.workspace
}

// GetValue returns nil for keys that were never set.
func (s *Storage) GetValue(_ context.Context, shared bool, key string) (json.RawMessage, error) {
	v, ok, err := s.store.Get(s.scope(shared), key)
	if err != nil || !ok {
		return nil, err
	}
	return json.RawMessage(v.Value), nil
}

// SetValue stores value under key. A null value deletes the key.
func (s *Storage) SetValue(_ context.Context, shared bool, key string, value json.RawMessage) error {
	if len(value) == 0 || string(value) == "null" {
		return s.store.Delete(s.scope(shared), key)
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: value of %s is not JSON", rpc.ErrInvalidArguments, key)
	}
	return s.store.Set(s.scope(shared), key, storedValue{Value: value, UpdatedAt: time.Now()})
}

// Keys lists the keys of one scope.
func (s *Storage) Keys(shared bool) ([]string, error) {
	return s.store.Keys(s.scope(shared))
}

func (s *Storage) close() error {
	return s.store.Close()
}

// Package ledger keeps the reviewer's device-local memory: which suspects
// were skipped recently, and how often the delete link was followed per day.
//
// Both ledgers sit on top of an injected KV capability so the review client
// can persist them in sqlite while tests use MemoryKV.
package ledger

import "sync"

// Keys used in the KV store.
const (
	IgnoredKey = "ignored"
	ClicksKey  = "delete-button-clicks"
)

// KV is a string key/value store.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// MemoryKV is an in-process KV.
type MemoryKV struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (kv *MemoryKV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *MemoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

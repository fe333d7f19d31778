// Package store holds the device-local key/value fallback store.
package store

import (
	"sort"
	"strings"
)

// KV is the contract of the local fallback store: synchronous
// get/set/remove/enumerate with a fixed capacity ceiling. Set returns a
// CapacityExceeded error instead of writing past the ceiling.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Keys() ([]string, error)
	Capacity() int64
}

const keySeparator = "/"

// Key builds the storage key of a record.
func Key(collection, id string) string {
	return collection + keySeparator + id
}

// SplitKey is the inverse of Key. Keys without a collection prefix return
// an empty collection.
func SplitKey(key string) (collection, id string) {
	idx := strings.Index(key, keySeparator)
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// CollectionKeys returns the sorted keys that belong to collection.
func CollectionKeys(kv KV, collection string) ([]string, error) {
	keys, err := kv.Keys()
	if err != nil {
		return nil, err
	}
	prefix := collection + keySeparator
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

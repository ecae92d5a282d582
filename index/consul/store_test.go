package consul

import (
	"os"
	"testing"

	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
	"github.com/mwantia/snapdu/index/indextest"
)

func TestNewConsulStore_Defaults(t *testing.T) {
	store, err := NewConsulStore(nil)
	if err != nil {
		t.Fatalf("NewConsulStore failed: %v", err)
	}

	if store.config.Address != "127.0.0.1:8500" {
		t.Errorf("Expected default address, got %s", store.config.Address)
	}
	if got := store.buildKey("repo/snapshots/abc"); got != "snapdu/repo/snapshots/abc" {
		t.Errorf("Expected prefixed key, got %s", got)
	}
}

func TestNewConsulStore_Prefix(t *testing.T) {
	store, err := NewConsulStore(&ConsulStoreConfig{Prefix: "/backup/index/"})
	if err != nil {
		t.Fatalf("NewConsulStore failed: %v", err)
	}

	if got := store.buildKey("repo/nodes/s1/%2F"); got != "backup/index/repo/nodes/s1/%2F" {
		t.Errorf("Expected prefixed key, got %s", got)
	}
}

// Requires a reachable agent, e.g. SNAPDU_TEST_CONSUL=127.0.0.1:8500
func TestConsulBackend(t *testing.T) {
	address := os.Getenv("SNAPDU_TEST_CONSUL")
	if address == "" {
		t.Skip("SNAPDU_TEST_CONSUL not set")
	}

	indextest.RunBackendTests(t, func(t *testing.T) func(namespace string) (index.Backend, error) {
		prefix := "snapdu-test/" + data.NewTransactionID()
		t.Cleanup(func() {
			if store, err := NewConsulStore(&ConsulStoreConfig{Address: address, Prefix: prefix}); err == nil {
				store.kv.DeleteTree(prefix+"/", nil)
			}
		})

		return func(namespace string) (index.Backend, error) {
			return NewConsulBackend(&ConsulStoreConfig{
				Address: address,
				Prefix:  prefix,
			}, namespace)
		}
	})
}

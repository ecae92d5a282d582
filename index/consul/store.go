package consul

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/snapdu/data"
	"github.com/mwantia/snapdu/index"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "snapdu"

// ConsulStore is a KeyValueStore on top of the HashiCorp Consul KV store.
//
// Limitations:
// - Consul KV has a 512KB limit per value, which caps the number of
// children a single directory can hold in one snapshot
type ConsulStore struct {
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulStoreConfig
}

// ConsulStoreConfig contains configuration options for the Consul store
type ConsulStoreConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Prefix for all keys in Consul KV (default: "snapdu")
	Prefix string
}

// NewConsulStore creates a new Consul-backed key/value store
func NewConsulStore(config *ConsulStoreConfig) (*ConsulStore, error) {
	if config == nil {
		config = &ConsulStoreConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	config.Prefix = strings.Trim(config.Prefix, "/")
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulStore{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// NewConsulBackend creates a size index stored in Consul KV.
func NewConsulBackend(config *ConsulStoreConfig, namespace string) (*index.KVBackend, error) {
	store, err := NewConsulStore(config)
	if err != nil {
		return nil, err
	}

	return index.NewKVBackend(store, namespace), nil
}

// Name returns the identifier name defined for this store
func (*ConsulStore) Name() string {
	return "consul"
}

// Open verifies that the agent is reachable
func (cs *ConsulStore) Open(ctx context.Context) error {
	if _, _, err := cs.kv.Keys(cs.buildKey(""), "/", cs.queryOptions(ctx)); err != nil {
		return fmt.Errorf("%w: %v", data.ErrIndexUnavailable, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this store
func (cs *ConsulStore) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// buildKey constructs the full Consul KV key from the store key
func (cs *ConsulStore) buildKey(key string) string {
	return cs.config.Prefix + "/" + strings.TrimPrefix(key, "/")
}

func (cs *ConsulStore) queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func (cs *ConsulStore) writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}

func (cs *ConsulStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pair, _, err := cs.kv.Get(cs.buildKey(key), cs.queryOptions(ctx))
	if err != nil {
		return nil, false, err
	}
	if pair == nil {
		return nil, false, nil
	}

	return pair.Value, true, nil
}

func (cs *ConsulStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := cs.kv.Put(&api.KVPair{
		Key:   cs.buildKey(key),
		Value: value,
	}, cs.writeOptions(ctx))

	return err
}

func (cs *ConsulStore) Delete(ctx context.Context, key string) error {
	_, err := cs.kv.Delete(cs.buildKey(key), cs.writeOptions(ctx))
	return err
}

func (cs *ConsulStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, _, err := cs.kv.Keys(cs.buildKey(prefix), "", cs.queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	base := cs.buildKey("")
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		result = append(result, strings.TrimPrefix(key, base))
	}

	return result, nil
}

func (cs *ConsulStore) DeleteTree(ctx context.Context, prefix string) error {
	_, err := cs.kv.DeleteTree(cs.buildKey(prefix), cs.writeOptions(ctx))
	return err
}

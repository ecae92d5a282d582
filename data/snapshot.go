package data

import (
	"encoding/json"
	"time"
)

// RepositoryConfig is the subset of the repository config returned by `cat config`.
type RepositoryConfig struct {
	ID                string `json:"id"`
	Version           int    `json:"version"`
	ChunkerPolynomial string `json:"chunker_polynomial"`
}

// Snapshot is a single point-in-time catalog of a backup repository.
// Only ID is relevant for equality, everything else is passed through.
type Snapshot struct {
	ID       string    `json:"id"`
	ShortID  string    `json:"short_id,omitempty"`
	Time     time.Time `json:"time"`
	Parent   string    `json:"parent,omitempty"`
	Tree     string    `json:"tree,omitempty"`
	Hostname string    `json:"hostname,omitempty"`
	Username string    `json:"username,omitempty"`
	Paths    []string  `json:"paths,omitempty"`
	Tags     []string  `json:"tags,omitempty"`

	// Raw holds the snapshot object exactly as received.
	Raw json.RawMessage `json:"-"`
}

type snapshotAlias Snapshot

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var alias snapshotAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}

	*s = Snapshot(alias)
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON returns the passthrough object when available.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}

	return json.Marshal((*snapshotAlias)(s))
}

// Equal compares two snapshots by identifier.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}

	return s.ID == other.ID
}

// Validate checks the minimum a snapshot needs before it can be indexed.
func (s *Snapshot) Validate() error {
	if s == nil || s.ID == "" {
		return ErrInvalidSnapshot
	}

	return nil
}

// SnapshotIDs returns the identifiers of all snapshots as a lookup set.
func SnapshotIDs(snapshots []*Snapshot) map[string]struct{} {
	ids := make(map[string]struct{}, len(snapshots))
	for _, s := range snapshots {
		ids[s.ID] = struct{}{}
	}

	return ids
}

// DecodeSnapshot restores a snapshot from its persisted passthrough form.
func DecodeSnapshot(id string, raw []byte) (*Snapshot, error) {
	if len(raw) == 0 {
		return &Snapshot{ID: id}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}

	if s.ID == "" {
		s.ID = id
	}

	return &s, nil
}

// EncodeSnapshot returns the form persisted alongside a membership record.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return s.MarshalJSON()
}

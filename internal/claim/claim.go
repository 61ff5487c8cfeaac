// Package claim implements the module claim protocol of spec §4.4.5: the
// v1 EXCL_WRITE claim and the v2 per-descriptor claim records with their
// compatibility rules.
package claim

import "sync"

// Type enumerates the claim types a descriptor may hold.
type Type int

const (
	None Type = iota
	ExclWrite
	ReadManyWriteOne
	ReadManyWriteNone
	ReadManyWriteShared
)

// isV2 reports whether t belongs to the v2 claim family that shares a list
// of per-descriptor records on the bdev.
func (t Type) isV2() bool {
	switch t {
	case ReadManyWriteOne, ReadManyWriteNone, ReadManyWriteShared:
		return true
	default:
		return false
	}
}

// impliesWriter reports whether holding a v2 claim of this type promotes
// the descriptor to writable, per spec §4.4.5 ("taking a v2 claim with
// write==false may promote the descriptor to writable if the type implies
// writer semantics").
func (t Type) impliesWriter() bool {
	switch t {
	case ReadManyWriteOne, ReadManyWriteShared:
		return true
	default:
		return false
	}
}

// Record is one descriptor's claim on a bdev.
type Record struct {
	Desc      any // descriptor identity; nil while examination is in progress (vestigial)
	Module    any // nil while the owning module hasn't finished examination
	Type      Type
	Write     bool
	SharedKey uint64
}

// Manager owns the claim state for a single bdev: at most one v1
// EXCL_WRITE claim, or a list of compatible v2 records.
type Manager struct {
	mu      sync.Mutex
	v1      bool
	records []*Record
}

// NewManager creates an empty claim manager.
func NewManager() *Manager {
	return &Manager{}
}

// ClaimError describes why a claim request was rejected.
type ClaimError string

func (e ClaimError) Error() string { return string(e) }

const (
	ErrExists            ClaimError = "a claim already exists on this bdev"
	ErrIncompatible      ClaimError = "requested claim type is incompatible with an existing claim"
	ErrSharedKeyMismatch ClaimError = "shared claim key does not match existing claimants"
	ErrMissingSharedKey  ClaimError = "READ_MANY_WRITE_SHARED requires a non-zero shared_claim_key"
	ErrAlreadyClaimed    ClaimError = "descriptor already holds a v2 claim"
)

// ClaimExclWrite takes the v1 EXCL_WRITE claim. It fails if any claim
// already exists, v1 or v2.
func (m *Manager) ClaimExclWrite() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.v1 || len(m.records) > 0 {
		return ErrExists
	}
	m.v1 = true
	return nil
}

// ClaimV2 attempts to add a v2 claim record for desc. Rules from spec
// §4.4.5: no EXCL_WRITE may coexist with any v2 claim; existing
// descriptors' writability must be compatible with the new claim's
// semantics; READ_MANY_WRITE_SHARED requires a non-zero key shared by all
// claimants; a descriptor may hold at most one v2 claim.
func (m *Manager) ClaimV2(desc any, t Type, write bool, sharedKey uint64) (*Record, error) {
	if !t.isV2() {
		return nil, ErrIncompatible
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.v1 {
		return nil, ErrExists
	}
	for _, r := range m.records {
		if r.Desc == desc {
			return nil, ErrAlreadyClaimed
		}
	}

	if t == ReadManyWriteShared {
		if sharedKey == 0 {
			return nil, ErrMissingSharedKey
		}
		for _, r := range m.records {
			if r.Write && r.Type == ReadManyWriteShared && r.SharedKey != sharedKey {
				return nil, ErrSharedKeyMismatch
			}
		}
	}

	if t == ReadManyWriteNone {
		for _, r := range m.records {
			if r.Write {
				return nil, ErrIncompatible
			}
		}
	}

	effectiveWrite := write || t.impliesWriter()
	if effectiveWrite {
		if t == ReadManyWriteNone {
			return nil, ErrIncompatible
		}
		for _, r := range m.records {
			if r.Type == ReadManyWriteNone {
				return nil, ErrIncompatible
			}
			if !r.Write {
				continue
			}
			switch t {
			case ReadManyWriteShared:
				if r.Type != ReadManyWriteShared || r.SharedKey != sharedKey {
					return nil, ErrIncompatible
				}
			default:
				// READ_MANY_WRITE_ONE (or any other writable type) never
				// coexists with an existing writer.
				return nil, ErrIncompatible
			}
		}
	}

	rec := &Record{Desc: desc, Type: t, Write: effectiveWrite, SharedKey: sharedKey}
	m.records = append(m.records, rec)
	return rec, nil
}

// Release removes desc's v1 or v2 claim.
func (m *Manager) Release(desc any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.v1 {
		m.v1 = false
		return
	}
	out := m.records[:0:0]
	for _, r := range m.records {
		if r.Desc != desc {
			out = append(out, r)
		}
	}
	m.records = out
}

// PurgeVestigial drops any claim record whose Module pointer is still nil,
// called when a bdev's examination completes, per spec §4.4.5.
func (m *Manager) PurgeVestigial() {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.records[:0:0]
	for _, r := range m.records {
		if r.Module != nil {
			out = append(out, r)
		}
	}
	m.records = out
}

// Records returns a snapshot of the current v2 claim records.
func (m *Manager) Records() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.records))
	copy(out, m.records)
	return out
}

// HasExclWrite reports whether the v1 EXCL_WRITE claim is held.
func (m *Manager) HasExclWrite() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v1
}

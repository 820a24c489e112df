package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Capability numbers one optional operation per storage system. The numeric
// value is the index into the capability bitmap, so values are append-only.
type Capability int

// Capability values, grouped by operation family. The base operations
// (systems, pools, job control, plugin_info) are unconditional and have no
// capability.
// Block / SAN: volumes (20–49).
const (
	CapVolumes Capability = 20 + iota
	CapVolumeCreate
	CapVolumeResize
	CapVolumeReplicate
	CapVolumeReplicateRange
	CapVolumeReplicateRangeBlockSize
	CapVolumeDelete
	CapVolumeOnline
	CapVolumeOffline
	CapVolumeChildDependency
	CapVolumeChildDependencyRm
	CapDisks
)

// Block / SAN: initiators and access groups (50–99).
const (
	CapInitiators Capability = 50 + iota
	CapInitiatorGrant
	CapInitiatorRevoke
	CapIscsiChapAuth
	CapAccessGroups
	CapAccessGroupCreate
	CapAccessGroupDelete
	CapAccessGroupAddInitiator
	CapAccessGroupDelInitiator
	CapAccessGroupGrant
	CapAccessGroupRevoke
	CapVolumesAccessibleByAccessGroup
	CapAccessGroupsGrantedToVolume
	CapVolumesAccessibleByInitiator
	CapInitiatorsGrantedToVolume
)

// File / NAS (100–119).
const (
	CapFs Capability = 100 + iota
	CapFsCreate
	CapFsDelete
	CapFsResize
	CapFsClone
	CapFileClone
	CapFsSnapshots
	CapFsSnapshotCreate
	CapFsSnapshotDelete
	CapFsSnapshotRevert
	CapFsChildDependency
	CapFsChildDependencyRm
)

// NFS exports (120–129).
const (
	CapExportAuth Capability = 120 + iota
	CapExports
	CapExportFs
	CapExportRemove
)

// Block / SAN: pool mutations (130–139).
const (
	CapPoolCreate Capability = 130 + iota
	CapPoolCreateFromDisks
	CapPoolCreateFromVolumes
	CapPoolCreateFromPool
	CapPoolDelete
)

// capBitmapLen leaves room for future capability numbers without changing
// the wire form.
const capBitmapLen = 256

// Capabilities is a per-system bitmap of supported operations. It is
// computed by the plugin and read-only to the client once queried.
type Capabilities struct {
	bits []byte
}

// NewCapabilities returns an empty capability set.
func NewCapabilities() *Capabilities {
	return &Capabilities{bits: make([]byte, capBitmapLen)}
}

// Set marks the given capabilities as supported and returns c for chaining.
func (c *Capabilities) Set(caps ...Capability) *Capabilities {
	if c.bits == nil {
		c.bits = make([]byte, capBitmapLen)
	}
	for _, op := range caps {
		if int(op) >= 0 && int(op) < capBitmapLen {
			c.bits[op] = 1
		}
	}
	return c
}

// Supported reports whether op is marked supported.
func (c *Capabilities) Supported(op Capability) bool {
	if c.bits == nil || int(op) < 0 || int(op) >= capBitmapLen {
		return false
	}
	return c.bits[op] != 0
}

func (*Capabilities) Class() string { return "Capabilities" }

// capWire is the serialized form: the bitmap as a hex string, matching the
// tagged-object convention of the other records.
type capWire struct {
	Cap string `json:"cap"`
}

// MarshalJSON encodes the bitmap as {"cap": "<hex>"}.
func (c *Capabilities) MarshalJSON() ([]byte, error) {
	bits := c.bits
	if bits == nil {
		bits = make([]byte, capBitmapLen)
	}
	return json.Marshal(capWire{Cap: hex.EncodeToString(bits)})
}

// UnmarshalJSON decodes the hex bitmap form.
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	var w capWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	bits, err := hex.DecodeString(w.Cap)
	if err != nil {
		return fmt.Errorf("capabilities: bad bitmap: %w", err)
	}
	if len(bits) != capBitmapLen {
		return fmt.Errorf("capabilities: bitmap length %d, want %d", len(bits), capBitmapLen)
	}
	c.bits = bits
	return nil
}

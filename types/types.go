// Package types holds the domain records exchanged between the management
// client and storage plugins.
//
// The core protocol treats these as opaque serializable records: each type
// carries ordinary json tags plus a Class method, and registers itself with
// the codec so it survives the wire as a tagged object.
package types

import (
	"time"

	"stormgmt/codec"
)

// Provisioning selects how a volume's space is allocated.
type Provisioning int32

const (
	ProvisionUnknown Provisioning = -1
	ProvisionThin    Provisioning = 1
	ProvisionFull    Provisioning = 2
	ProvisionDefault Provisioning = 3
)

// ReplicationType selects the copy semantics of volume_replicate.
type ReplicationType int32

const (
	ReplicateUnknown  ReplicationType = -1
	ReplicateSnapshot ReplicationType = 1
	ReplicateClone    ReplicationType = 2
	ReplicateCopy     ReplicationType = 3
	ReplicateMirror   ReplicationType = 4
)

// RaidType selects the redundancy layout of a created pool.
type RaidType int32

const (
	RaidUnknown RaidType = -1
	Raid0       RaidType = 0
	Raid1       RaidType = 1
	Raid5       RaidType = 5
	Raid6       RaidType = 6
	Raid10      RaidType = 10
)

// PoolMemberType identifies what a created pool is built from.
type PoolMemberType int32

const (
	MemberTypeUnknown PoolMemberType = 0
	MemberTypeDisk    PoolMemberType = 1
	MemberTypePool    PoolMemberType = 2
	MemberTypeVolume  PoolMemberType = 3
)

// InitiatorType identifies how an initiator names itself.
type InitiatorType int32

const (
	InitiatorUnknown  InitiatorType = 0
	InitiatorWWPN     InitiatorType = 1
	InitiatorWWNN     InitiatorType = 2
	InitiatorISCSIIQN InitiatorType = 3
)

// AccessType is the access level granted to a volume.
type AccessType int32

const (
	AccessReadOnly  AccessType = 1
	AccessReadWrite AccessType = 2
)

// System identifies one managed array; a plugin may manage several.
type System struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status uint32 `json:"status"`
}

func (*System) Class() string { return "System" }

// Pool is an allocation domain volumes and file systems are carved from.
type Pool struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalSpace uint64 `json:"total_space"`
	FreeSpace  uint64 `json:"free_space"`
	SystemID   string `json:"system_id"`
}

func (*Pool) Class() string { return "Pool" }

// Volume is a block device exported by an array.
type Volume struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	VPD83       string `json:"vpd83"`
	BlockSize   uint32 `json:"block_size"`
	NumOfBlocks uint64 `json:"num_of_blocks"`
	Status      uint32 `json:"status"`
	SystemID    string `json:"system_id"`
	PoolID      string `json:"pool_id"`
}

func (*Volume) Class() string { return "Volume" }

// SizeBytes is the volume's capacity.
func (v *Volume) SizeBytes() uint64 {
	return uint64(v.BlockSize) * v.NumOfBlocks
}

// Disk is a physical drive belonging to a system.
type Disk struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DiskType    int32  `json:"disk_type"`
	BlockSize   uint32 `json:"block_size"`
	NumOfBlocks uint64 `json:"num_of_blocks"`
	Status      uint32 `json:"status"`
	SystemID    string `json:"system_id"`
}

func (*Disk) Class() string { return "Disk" }

// Initiator is a host-side endpoint that may be granted volume access.
type Initiator struct {
	ID   string        `json:"id"`
	Type InitiatorType `json:"type"`
	Name string        `json:"name"`
}

func (*Initiator) Class() string { return "Initiator" }

// AccessGroup is a named set of initiators sharing volume access.
type AccessGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Initiators []string `json:"initiators"`
	SystemID   string   `json:"system_id"`
}

func (*AccessGroup) Class() string { return "AccessGroup" }

// FileSystem is a NAS file system.
type FileSystem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalSpace uint64 `json:"total_space"`
	FreeSpace  uint64 `json:"free_space"`
	PoolID     string `json:"pool_id"`
	SystemID   string `json:"system_id"`
}

func (*FileSystem) Class() string { return "FileSystem" }

// FsSnapshot is a point-in-time read-only copy of a file system.
type FsSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	TS   int64  `json:"ts"`
}

func (*FsSnapshot) Class() string { return "FsSnapshot" }

// Timestamp returns the snapshot creation time.
func (s *FsSnapshot) Timestamp() time.Time {
	return time.Unix(s.TS, 0)
}

// NfsExport describes one exported file system.
type NfsExport struct {
	ID         string   `json:"id"`
	FsID       string   `json:"fs_id"`
	ExportPath string   `json:"export_path"`
	Auth       string   `json:"auth"`
	Root       []string `json:"root"`
	RW         []string `json:"rw"`
	RO         []string `json:"ro"`
	AnonUID    int64    `json:"anonuid"`
	AnonGID    int64    `json:"anongid"`
	Options    string   `json:"options"`
}

func (*NfsExport) Class() string { return "NfsExport" }

// BlockRange addresses a span of blocks for volume_replicate_range.
type BlockRange struct {
	SrcBlock   uint64 `json:"src_block"`
	DestBlock  uint64 `json:"dest_block"`
	BlockCount uint64 `json:"block_count"`
}

func (*BlockRange) Class() string { return "BlockRange" }

func init() {
	codec.Register("System", func() codec.Record { return &System{} })
	codec.Register("Pool", func() codec.Record { return &Pool{} })
	codec.Register("Volume", func() codec.Record { return &Volume{} })
	codec.Register("Disk", func() codec.Record { return &Disk{} })
	codec.Register("Initiator", func() codec.Record { return &Initiator{} })
	codec.Register("AccessGroup", func() codec.Record { return &AccessGroup{} })
	codec.Register("FileSystem", func() codec.Record { return &FileSystem{} })
	codec.Register("FsSnapshot", func() codec.Record { return &FsSnapshot{} })
	codec.Register("NfsExport", func() codec.Record { return &NfsExport{} })
	codec.Register("BlockRange", func() codec.Record { return &BlockRange{} })
	codec.Register("Capabilities", func() codec.Record { return &Capabilities{} })
}

// Package plugin defines the capability-gated operation contract every
// storage plugin implements, and the Runner that serves it over a framed
// transport.
//
// The contract is split into a mandatory base (Plugin) and two optional
// operation families (SAN for block storage, NAS for file storage). A
// concrete plugin embeds Unsupported and overrides only what its backing
// systems can fulfill; everything else fails uniformly with a no-support
// fault, and Capabilities must predict exactly which operations those are.
package plugin

import (
	"stormgmt/jobs"
	"stormgmt/types"
)

// Plugin is the mandatory operation surface. Startup and Shutdown bracket
// the connection's usable lifetime: only PluginInfo is valid outside it.
type Plugin interface {
	// Startup connects the plugin to its array. uri selects the backend,
	// password is forwarded opaquely, timeoutMS seeds the plugin's own
	// operation timeout.
	Startup(uri, password string, timeoutMS uint32) error

	// Shutdown releases all plugin-held resources. It is also invoked
	// best-effort when the peer disappears, in which case any error is
	// recorded locally and never reaches the remote caller.
	Shutdown() error

	// PluginInfo returns the plugin's description and version. Valid
	// before Startup.
	PluginInfo() (description, version string, err error)

	SetTimeOut(ms uint32) error
	TimeOut() (uint32, error)

	// Capabilities reports, per system, which optional operations are
	// meaningfully implemented. It must be accurate: a capability marked
	// unsupported guarantees the operation fails with no-support, and one
	// marked supported guarantees it does not.
	Capabilities(systemID string) (*types.Capabilities, error)

	Systems() ([]*types.System, error)
	Pools() ([]*types.Pool, error)

	JobStatus(jobID string) (jobs.Info, error)
	JobFree(jobID string) error
}

// SAN is the block-storage operation family. Mutations either complete
// synchronously or defer to a job: value-bearing operations return an
// Outcome, void operations return a job handle ("" when already complete).
type SAN interface {
	Disks() ([]*types.Disk, error)

	// Pool creation variants mirror what arrays actually offer: let the
	// array pick members, name the disks or volumes explicitly, or carve
	// space out of an existing pool.
	PoolCreate(systemID, poolName string, sizeBytes uint64, raidType types.RaidType, memberType types.PoolMemberType) (jobs.Outcome[*types.Pool], error)
	PoolCreateFromDisks(systemID, poolName string, diskIDs []string, raidType types.RaidType) (jobs.Outcome[*types.Pool], error)
	PoolCreateFromVolumes(systemID, poolName string, volumeIDs []string, raidType types.RaidType) (jobs.Outcome[*types.Pool], error)
	PoolCreateFromPool(systemID, poolName, memberPoolID string, sizeBytes uint64) (jobs.Outcome[*types.Pool], error)
	PoolDelete(poolID string) (string, error)

	Volumes() ([]*types.Volume, error)
	VolumeCreate(poolID, name string, sizeBytes uint64, provisioning types.Provisioning) (jobs.Outcome[*types.Volume], error)
	VolumeDelete(volumeID string) (string, error)
	VolumeResize(volumeID string, newSizeBytes uint64) (jobs.Outcome[*types.Volume], error)
	VolumeReplicate(poolID string, repType types.ReplicationType, srcVolumeID, name string) (jobs.Outcome[*types.Volume], error)
	VolumeReplicateRangeBlockSize(systemID string) (uint32, error)
	VolumeReplicateRange(repType types.ReplicationType, srcVolumeID, destVolumeID string, ranges []*types.BlockRange) (string, error)
	VolumeOnline(volumeID string) error
	VolumeOffline(volumeID string) error
	VolumeChildDependency(volumeID string) (bool, error)
	VolumeChildDependencyRm(volumeID string) (string, error)

	Initiators() ([]*types.Initiator, error)
	InitiatorGrant(initiatorID string, initType types.InitiatorType, volumeID string, access types.AccessType) error
	InitiatorRevoke(initiatorID, volumeID string) error
	IscsiChapAuth(initiatorID, inUser, inPassword, outUser, outPassword string) error
	VolumesAccessibleByInitiator(initiatorID string) ([]*types.Volume, error)
	InitiatorsGrantedToVolume(volumeID string) ([]*types.Initiator, error)

	AccessGroups() ([]*types.AccessGroup, error)
	AccessGroupCreate(name, initiatorID string, initType types.InitiatorType, systemID string) (*types.AccessGroup, error)
	AccessGroupDelete(groupID string) error
	AccessGroupAddInitiator(groupID, initiatorID string, initType types.InitiatorType) error
	AccessGroupDelInitiator(groupID, initiatorID string) error
	AccessGroupGrant(groupID, volumeID string, access types.AccessType) error
	AccessGroupRevoke(groupID, volumeID string) error
	VolumesAccessibleByAccessGroup(groupID string) ([]*types.Volume, error)
	AccessGroupsGrantedToVolume(volumeID string) ([]*types.AccessGroup, error)
}

// NAS is the file-storage operation family.
type NAS interface {
	FileSystems() ([]*types.FileSystem, error)
	FsCreate(poolID, name string, sizeBytes uint64) (jobs.Outcome[*types.FileSystem], error)
	FsDelete(fsID string) (string, error)
	FsResize(fsID string, newSizeBytes uint64) (jobs.Outcome[*types.FileSystem], error)
	FsClone(srcFsID, destName, snapshotID string) (jobs.Outcome[*types.FileSystem], error)
	FileClone(fsID, srcFileName, destFileName, snapshotID string) (string, error)
	FsChildDependency(fsID string, files []string) (bool, error)
	FsChildDependencyRm(fsID string, files []string) (string, error)

	FsSnapshots(fsID string) ([]*types.FsSnapshot, error)
	FsSnapshotCreate(fsID, name string, files []string) (jobs.Outcome[*types.FsSnapshot], error)
	FsSnapshotDelete(fsID, snapshotID string) (string, error)
	FsSnapshotRevert(fsID, snapshotID string, files, restoreFiles []string, allFiles bool) (string, error)

	ExportAuthTypes() ([]string, error)
	Exports() ([]*types.NfsExport, error)
	ExportFs(fsID, exportPath string, root, rw, ro []string, anonUID, anonGID int64, authType, options string) (*types.NfsExport, error)
	ExportRemove(exportID string) error
}

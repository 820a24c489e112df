package plugin

import (
	"stormgmt/fault"
	"stormgmt/jobs"
	"stormgmt/types"
)

// Unsupported implements every optional operation with a uniform no-support
// fault. Concrete plugins embed it and override the subset they fulfill, so
// a partially implemented contract never leaves a method undefined.
type Unsupported struct{}

var _ SAN = Unsupported{}
var _ NAS = Unsupported{}

func (Unsupported) Disks() ([]*types.Disk, error) { return nil, fault.NoSupport() }

func (Unsupported) PoolCreate(string, string, uint64, types.RaidType, types.PoolMemberType) (jobs.Outcome[*types.Pool], error) {
	return jobs.Outcome[*types.Pool]{}, fault.NoSupport()
}

func (Unsupported) PoolCreateFromDisks(string, string, []string, types.RaidType) (jobs.Outcome[*types.Pool], error) {
	return jobs.Outcome[*types.Pool]{}, fault.NoSupport()
}

func (Unsupported) PoolCreateFromVolumes(string, string, []string, types.RaidType) (jobs.Outcome[*types.Pool], error) {
	return jobs.Outcome[*types.Pool]{}, fault.NoSupport()
}

func (Unsupported) PoolCreateFromPool(string, string, string, uint64) (jobs.Outcome[*types.Pool], error) {
	return jobs.Outcome[*types.Pool]{}, fault.NoSupport()
}

func (Unsupported) PoolDelete(string) (string, error) { return "", fault.NoSupport() }

func (Unsupported) Volumes() ([]*types.Volume, error) { return nil, fault.NoSupport() }

func (Unsupported) VolumeCreate(string, string, uint64, types.Provisioning) (jobs.Outcome[*types.Volume], error) {
	return jobs.Outcome[*types.Volume]{}, fault.NoSupport()
}

func (Unsupported) VolumeDelete(string) (string, error) { return "", fault.NoSupport() }

func (Unsupported) VolumeResize(string, uint64) (jobs.Outcome[*types.Volume], error) {
	return jobs.Outcome[*types.Volume]{}, fault.NoSupport()
}

func (Unsupported) VolumeReplicate(string, types.ReplicationType, string, string) (jobs.Outcome[*types.Volume], error) {
	return jobs.Outcome[*types.Volume]{}, fault.NoSupport()
}

func (Unsupported) VolumeReplicateRangeBlockSize(string) (uint32, error) {
	return 0, fault.NoSupport()
}

func (Unsupported) VolumeReplicateRange(types.ReplicationType, string, string, []*types.BlockRange) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) VolumeOnline(string) error  { return fault.NoSupport() }
func (Unsupported) VolumeOffline(string) error { return fault.NoSupport() }

func (Unsupported) VolumeChildDependency(string) (bool, error) { return false, fault.NoSupport() }

func (Unsupported) VolumeChildDependencyRm(string) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) Initiators() ([]*types.Initiator, error) { return nil, fault.NoSupport() }

func (Unsupported) InitiatorGrant(string, types.InitiatorType, string, types.AccessType) error {
	return fault.NoSupport()
}

func (Unsupported) InitiatorRevoke(string, string) error { return fault.NoSupport() }

func (Unsupported) IscsiChapAuth(string, string, string, string, string) error {
	return fault.NoSupport()
}

func (Unsupported) VolumesAccessibleByInitiator(string) ([]*types.Volume, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) InitiatorsGrantedToVolume(string) ([]*types.Initiator, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) AccessGroups() ([]*types.AccessGroup, error) { return nil, fault.NoSupport() }

func (Unsupported) AccessGroupCreate(string, string, types.InitiatorType, string) (*types.AccessGroup, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) AccessGroupDelete(string) error { return fault.NoSupport() }

func (Unsupported) AccessGroupAddInitiator(string, string, types.InitiatorType) error {
	return fault.NoSupport()
}

func (Unsupported) AccessGroupDelInitiator(string, string) error { return fault.NoSupport() }

func (Unsupported) AccessGroupGrant(string, string, types.AccessType) error {
	return fault.NoSupport()
}

func (Unsupported) AccessGroupRevoke(string, string) error { return fault.NoSupport() }

func (Unsupported) VolumesAccessibleByAccessGroup(string) ([]*types.Volume, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) AccessGroupsGrantedToVolume(string) ([]*types.AccessGroup, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) FileSystems() ([]*types.FileSystem, error) { return nil, fault.NoSupport() }

func (Unsupported) FsCreate(string, string, uint64) (jobs.Outcome[*types.FileSystem], error) {
	return jobs.Outcome[*types.FileSystem]{}, fault.NoSupport()
}

func (Unsupported) FsDelete(string) (string, error) { return "", fault.NoSupport() }

func (Unsupported) FsResize(string, uint64) (jobs.Outcome[*types.FileSystem], error) {
	return jobs.Outcome[*types.FileSystem]{}, fault.NoSupport()
}

func (Unsupported) FsClone(string, string, string) (jobs.Outcome[*types.FileSystem], error) {
	return jobs.Outcome[*types.FileSystem]{}, fault.NoSupport()
}

func (Unsupported) FileClone(string, string, string, string) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) FsChildDependency(string, []string) (bool, error) {
	return false, fault.NoSupport()
}

func (Unsupported) FsChildDependencyRm(string, []string) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) FsSnapshots(string) ([]*types.FsSnapshot, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) FsSnapshotCreate(string, string, []string) (jobs.Outcome[*types.FsSnapshot], error) {
	return jobs.Outcome[*types.FsSnapshot]{}, fault.NoSupport()
}

func (Unsupported) FsSnapshotDelete(string, string) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) FsSnapshotRevert(string, string, []string, []string, bool) (string, error) {
	return "", fault.NoSupport()
}

func (Unsupported) ExportAuthTypes() ([]string, error) { return nil, fault.NoSupport() }

func (Unsupported) Exports() ([]*types.NfsExport, error) { return nil, fault.NoSupport() }

func (Unsupported) ExportFs(string, string, []string, []string, []string, int64, int64, string, string) (*types.NfsExport, error) {
	return nil, fault.NoSupport()
}

func (Unsupported) ExportRemove(string) error { return fault.NoSupport() }

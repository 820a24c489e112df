// Package simulator is a fully in-memory storage array. It implements the
// whole block and file contract except CHAP configuration and sub-volume
// range replication, which stay unsupported on purpose so capability
// gating has something real to gate.
//
// Mutations above a size threshold run as jobs: the job is created
// immediately, a background goroutine walks its progress, and the state
// change lands when the job completes. Everything below the threshold
// applies synchronously.
package simulator

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"stormgmt/fault"
	"stormgmt/jobs"
	"stormgmt/plugin"
	"stormgmt/types"
)

const blockSize = 512

// Plugin simulates one system with two pools.
type Plugin struct {
	plugin.Unsupported

	mu      sync.Mutex
	reg     *jobs.Registry
	started bool
	timeout uint32

	asyncAt     uint64        // sizes at or above run through a job
	jobDuration time.Duration // simulated runtime of one job

	system     *types.System
	pools      map[string]*types.Pool
	volumes    map[string]*types.Volume
	offline    map[string]bool
	initiators map[string]*types.Initiator
	groups     map[string]*types.AccessGroup
	fss        map[string]*types.FileSystem
	snaps      map[string]map[string]*types.FsSnapshot
	exports    map[string]*types.NfsExport

	initGrants  map[string]map[string]types.AccessType // initiator id -> volume id
	groupGrants map[string]map[string]types.AccessType // group id -> volume id
	volChildren map[string][]string                    // volume id -> replica ids
	fsChildren  map[string][]string                    // fs id -> clone ids
	poolDisks   map[string][]string                    // pool id -> backing disk ids
	poolCarves  map[string]poolCarve                   // carved pool id -> parent accounting

	seq uint64
}

var _ plugin.SAN = (*Plugin)(nil)
var _ plugin.NAS = (*Plugin)(nil)

// New returns a simulator with one system and two empty pools.
func New() *Plugin {
	p := &Plugin{
		reg:         jobs.NewRegistry(),
		asyncAt:     1 << 30,
		jobDuration: 100 * time.Millisecond,
		system:      &types.System{ID: "sim-1", Name: "Storage simulator"},
		pools:       make(map[string]*types.Pool),
		volumes:     make(map[string]*types.Volume),
		offline:     make(map[string]bool),
		initiators:  make(map[string]*types.Initiator),
		groups:      make(map[string]*types.AccessGroup),
		fss:         make(map[string]*types.FileSystem),
		snaps:       make(map[string]map[string]*types.FsSnapshot),
		exports:     make(map[string]*types.NfsExport),
		initGrants:  make(map[string]map[string]types.AccessType),
		groupGrants: make(map[string]map[string]types.AccessType),
		volChildren: make(map[string][]string),
		fsChildren:  make(map[string][]string),
		poolDisks:   make(map[string][]string),
		poolCarves:  make(map[string]poolCarve),
	}
	p.pools["POOL_1"] = &types.Pool{ID: "POOL_1", Name: "default", TotalSpace: 1 << 40, FreeSpace: 1 << 40, SystemID: p.system.ID}
	p.pools["POOL_2"] = &types.Pool{ID: "POOL_2", Name: "archive", TotalSpace: 2 << 40, FreeSpace: 2 << 40, SystemID: p.system.ID}
	return p
}

// SetAsyncThreshold changes the size at which mutations defer to a job.
func (p *Plugin) SetAsyncThreshold(bytes uint64) {
	p.mu.Lock()
	p.asyncAt = bytes
	p.mu.Unlock()
}

// SetJobDuration changes how long a simulated job takes end to end.
func (p *Plugin) SetJobDuration(d time.Duration) {
	p.mu.Lock()
	p.jobDuration = d
	p.mu.Unlock()
}

// ---- base contract ----

func (p *Plugin) Startup(uri, password string, timeoutMS uint32) error {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "sim" {
		return fault.Newf(fault.ErrInvalidArgument, "unsupported uri %q, want sim://", uri)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
	p.timeout = timeoutMS
	return nil
}

func (p *Plugin) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	return nil
}

func (p *Plugin) PluginInfo() (string, string, error) {
	return "In-memory storage array simulator", "1.0.0", nil
}

func (p *Plugin) SetTimeOut(ms uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = ms
	return nil
}

func (p *Plugin) TimeOut() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout, nil
}

func (p *Plugin) Capabilities(systemID string) (*types.Capabilities, error) {
	if systemID != p.system.ID {
		return nil, fault.Newf(fault.ErrNotFound, "system %q", systemID)
	}
	return types.NewCapabilities().Set(
		types.CapPoolCreate,
		types.CapPoolCreateFromDisks,
		types.CapPoolCreateFromVolumes,
		types.CapPoolCreateFromPool,
		types.CapPoolDelete,
		types.CapVolumes,
		types.CapVolumeCreate,
		types.CapVolumeResize,
		types.CapVolumeReplicate,
		types.CapVolumeDelete,
		types.CapVolumeOnline,
		types.CapVolumeOffline,
		types.CapVolumeChildDependency,
		types.CapVolumeChildDependencyRm,
		types.CapDisks,
		types.CapInitiators,
		types.CapInitiatorGrant,
		types.CapInitiatorRevoke,
		types.CapAccessGroups,
		types.CapAccessGroupCreate,
		types.CapAccessGroupDelete,
		types.CapAccessGroupAddInitiator,
		types.CapAccessGroupDelInitiator,
		types.CapAccessGroupGrant,
		types.CapAccessGroupRevoke,
		types.CapVolumesAccessibleByAccessGroup,
		types.CapAccessGroupsGrantedToVolume,
		types.CapVolumesAccessibleByInitiator,
		types.CapInitiatorsGrantedToVolume,
		types.CapFs,
		types.CapFsCreate,
		types.CapFsDelete,
		types.CapFsResize,
		types.CapFsClone,
		types.CapFileClone,
		types.CapFsSnapshots,
		types.CapFsSnapshotCreate,
		types.CapFsSnapshotDelete,
		types.CapFsSnapshotRevert,
		types.CapFsChildDependency,
		types.CapFsChildDependencyRm,
		types.CapExportAuth,
		types.CapExports,
		types.CapExportFs,
		types.CapExportRemove,
	), nil
}

func (p *Plugin) Systems() ([]*types.System, error) {
	return []*types.System{p.system}, nil
}

func (p *Plugin) Pools() ([]*types.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Pool, 0, len(p.pools))
	for _, pool := range p.pools {
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) JobStatus(jobID string) (jobs.Info, error) { return p.reg.Status(jobID) }
func (p *Plugin) JobFree(jobID string) error                { return p.reg.Free(jobID) }

func (p *Plugin) Disks() ([]*types.Disk, error) {
	// A fixed shelf of a dozen spindles backing the pools.
	out := make([]*types.Disk, 12)
	for i := range out {
		out[i] = &types.Disk{
			ID:          fmt.Sprintf("DISK_%02d", i+1),
			Name:        fmt.Sprintf("slot %d", i+1),
			BlockSize:   blockSize,
			NumOfBlocks: (1 << 38) / blockSize,
			SystemID:    p.system.ID,
		}
	}
	return out, nil
}

// ---- job plumbing ----

// startJob walks a job's progress in the background and applies the state
// change when it completes. finish runs under the lock.
func (p *Plugin) startJob(finish func() any) string {
	id := p.reg.Create()
	duration := p.jobDuration
	go func() {
		for _, pct := range []int{25, 50, 75} {
			time.Sleep(duration / 4)
			p.reg.Progress(id, pct)
		}
		time.Sleep(duration / 4)
		p.mu.Lock()
		result := finish()
		p.mu.Unlock()
		p.reg.Complete(id, result)
	}()
	return id
}

func (p *Plugin) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}

// ---- pools ----

// poolCarve remembers where a pool carved out of another pool took its
// space from, so deletion can give it back.
type poolCarve struct {
	parentID string
	bytes    uint64
}

// poolCreateCheck validates what every creation variant shares. Caller
// holds the lock.
func (p *Plugin) poolCreateCheck(systemID, name string) error {
	if systemID != p.system.ID {
		return fault.Newf(fault.ErrNotFound, "system %q", systemID)
	}
	for _, pool := range p.pools {
		if pool.Name == name {
			return fault.Newf(fault.ErrExists, "pool %q", name)
		}
	}
	return nil
}

func (p *Plugin) newPool(name string, size uint64) *types.Pool {
	id := p.nextID("POOL")
	for p.pools[id] != nil {
		id = p.nextID("POOL")
	}
	return &types.Pool{ID: id, Name: name, TotalSpace: size, FreeSpace: size, SystemID: p.system.ID}
}

// finishPool registers the pool, through a job when it is large enough.
// Caller holds the lock.
func (p *Plugin) finishPool(pool *types.Pool) (jobs.Outcome[*types.Pool], error) {
	if pool.TotalSpace >= p.asyncAt {
		return jobs.Pending[*types.Pool](p.startJob(func() any {
			p.pools[pool.ID] = pool
			return pool
		})), nil
	}
	p.pools[pool.ID] = pool
	return jobs.Done(pool), nil
}

func (p *Plugin) PoolCreate(systemID, poolName string, sizeBytes uint64, raidType types.RaidType, memberType types.PoolMemberType) (jobs.Outcome[*types.Pool], error) {
	var zero jobs.Outcome[*types.Pool]
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.poolCreateCheck(systemID, poolName); err != nil {
		return zero, err
	}
	if sizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "pool size must be positive")
	}
	// The simulated array lays out whatever raid and member type it is
	// asked for.
	return p.finishPool(p.newPool(poolName, sizeBytes))
}

func (p *Plugin) PoolCreateFromDisks(systemID, poolName string, diskIDs []string, raidType types.RaidType) (jobs.Outcome[*types.Pool], error) {
	var zero jobs.Outcome[*types.Pool]
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.poolCreateCheck(systemID, poolName); err != nil {
		return zero, err
	}
	if len(diskIDs) == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "no member disks")
	}

	shelf := make(map[string]*types.Disk)
	disks, _ := p.Disks()
	for _, d := range disks {
		shelf[d.ID] = d
	}
	taken := make(map[string]string)
	for poolID, ids := range p.poolDisks {
		for _, id := range ids {
			taken[id] = poolID
		}
	}

	var total uint64
	for _, id := range diskIDs {
		d, ok := shelf[id]
		if !ok {
			return zero, fault.Newf(fault.ErrNotFound, "disk %q", id)
		}
		if owner, used := taken[id]; used {
			return zero, fault.Newf(fault.ErrInvalidArgument, "disk %q already backs pool %q", id, owner)
		}
		taken[id] = poolName
		total += d.NumOfBlocks * uint64(d.BlockSize)
	}

	pool := p.newPool(poolName, total)
	p.poolDisks[pool.ID] = append([]string(nil), diskIDs...) // claimed up front
	return p.finishPool(pool)
}

func (p *Plugin) PoolCreateFromVolumes(systemID, poolName string, volumeIDs []string, raidType types.RaidType) (jobs.Outcome[*types.Pool], error) {
	var zero jobs.Outcome[*types.Pool]
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.poolCreateCheck(systemID, poolName); err != nil {
		return zero, err
	}
	if len(volumeIDs) == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "no member volumes")
	}

	var total uint64
	for _, id := range volumeIDs {
		vol, ok := p.volumes[id]
		if !ok {
			return zero, fault.Newf(fault.ErrNotFound, "volume %q", id)
		}
		total += vol.SizeBytes()
	}
	return p.finishPool(p.newPool(poolName, total))
}

func (p *Plugin) PoolCreateFromPool(systemID, poolName, memberPoolID string, sizeBytes uint64) (jobs.Outcome[*types.Pool], error) {
	var zero jobs.Outcome[*types.Pool]
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.poolCreateCheck(systemID, poolName); err != nil {
		return zero, err
	}
	if sizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "pool size must be positive")
	}
	parent, ok := p.pools[memberPoolID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "pool %q", memberPoolID)
	}
	if parent.FreeSpace < sizeBytes {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q has %d bytes free, need %d", memberPoolID, parent.FreeSpace, sizeBytes)
	}

	pool := p.newPool(poolName, sizeBytes)
	parent.FreeSpace -= sizeBytes // reserved up front, even for deferred creates
	p.poolCarves[pool.ID] = poolCarve{parentID: memberPoolID, bytes: sizeBytes}
	return p.finishPool(pool)
}

func (p *Plugin) PoolDelete(poolID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[poolID]
	if !ok {
		return "", fault.Newf(fault.ErrNotFound, "pool %q", poolID)
	}
	for _, v := range p.volumes {
		if v.PoolID == poolID {
			return "", fault.Newf(fault.ErrInvalidArgument, "pool %q has volumes", poolID)
		}
	}
	for _, fs := range p.fss {
		if fs.PoolID == poolID {
			return "", fault.Newf(fault.ErrInvalidArgument, "pool %q has file systems", poolID)
		}
	}

	finish := func() any {
		delete(p.pools, poolID)
		delete(p.poolDisks, poolID)
		if carve, carved := p.poolCarves[poolID]; carved {
			if parent := p.pools[carve.parentID]; parent != nil {
				parent.FreeSpace += carve.bytes
			}
			delete(p.poolCarves, poolID)
		}
		return nil
	}

	if pool.TotalSpace >= p.asyncAt {
		return p.startJob(finish), nil
	}
	finish()
	return "", nil
}

// ---- block / SAN ----

func (p *Plugin) Volumes() ([]*types.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Volume, 0, len(p.volumes))
	for _, v := range p.volumes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) VolumeCreate(poolID, name string, sizeBytes uint64, provisioning types.Provisioning) (jobs.Outcome[*types.Volume], error) {
	var zero jobs.Outcome[*types.Volume]
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[poolID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "pool %q", poolID)
	}
	if sizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "volume size must be positive")
	}
	for _, v := range p.volumes {
		if v.PoolID == poolID && v.Name == name {
			return zero, fault.Newf(fault.ErrExists, "volume %q in pool %q", name, poolID)
		}
	}
	blocks := (sizeBytes + blockSize - 1) / blockSize
	rounded := blocks * blockSize
	if pool.FreeSpace < rounded {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q has %d bytes free, need %d", poolID, pool.FreeSpace, rounded)
	}

	vol := &types.Volume{
		ID:          p.nextID("VOL"),
		Name:        name,
		VPD83:       fmt.Sprintf("6001405%025d", p.seq),
		BlockSize:   blockSize,
		NumOfBlocks: blocks,
		SystemID:    p.system.ID,
		PoolID:      poolID,
	}
	pool.FreeSpace -= rounded // reserved up front, even for deferred creates

	if rounded >= p.asyncAt {
		return jobs.Pending[*types.Volume](p.startJob(func() any {
			p.volumes[vol.ID] = vol
			return vol
		})), nil
	}
	p.volumes[vol.ID] = vol
	return jobs.Done(vol), nil
}

func (p *Plugin) VolumeDelete(volumeID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vol, ok := p.volumes[volumeID]
	if !ok {
		return "", fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	if len(p.volChildren[volumeID]) > 0 {
		return "", fault.Newf(fault.ErrInvalidArgument, "volume %q has child dependencies", volumeID)
	}

	finish := func() any {
		delete(p.volumes, volumeID)
		delete(p.offline, volumeID)
		for _, grants := range p.initGrants {
			delete(grants, volumeID)
		}
		for _, grants := range p.groupGrants {
			delete(grants, volumeID)
		}
		for parent, kids := range p.volChildren {
			p.volChildren[parent] = without(kids, volumeID)
		}
		p.pools[vol.PoolID].FreeSpace += vol.SizeBytes()
		return nil
	}

	if vol.SizeBytes() >= p.asyncAt {
		return p.startJob(finish), nil
	}
	finish()
	return "", nil
}

func (p *Plugin) VolumeResize(volumeID string, newSizeBytes uint64) (jobs.Outcome[*types.Volume], error) {
	var zero jobs.Outcome[*types.Volume]
	p.mu.Lock()
	defer p.mu.Unlock()

	vol, ok := p.volumes[volumeID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	if newSizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "volume size must be positive")
	}
	blocks := (newSizeBytes + blockSize - 1) / blockSize
	rounded := blocks * blockSize
	old := vol.SizeBytes()
	pool := p.pools[vol.PoolID]
	if rounded > old && pool.FreeSpace < rounded-old {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q cannot grow volume by %d bytes", pool.ID, rounded-old)
	}
	if rounded > old {
		pool.FreeSpace -= rounded - old
	} else {
		pool.FreeSpace += old - rounded
	}

	finish := func() any {
		vol.NumOfBlocks = blocks
		return vol
	}
	if rounded >= p.asyncAt {
		return jobs.Pending[*types.Volume](p.startJob(finish)), nil
	}
	finish()
	return jobs.Done(vol), nil
}

func (p *Plugin) VolumeReplicate(poolID string, repType types.ReplicationType, srcVolumeID, name string) (jobs.Outcome[*types.Volume], error) {
	var zero jobs.Outcome[*types.Volume]
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.volumes[srcVolumeID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "volume %q", srcVolumeID)
	}
	if poolID == "" {
		poolID = src.PoolID
	}
	pool, ok := p.pools[poolID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "pool %q", poolID)
	}
	switch repType {
	case types.ReplicateSnapshot, types.ReplicateClone, types.ReplicateCopy, types.ReplicateMirror:
	default:
		return zero, fault.Newf(fault.ErrInvalidArgument, "replication type %d", repType)
	}
	size := src.SizeBytes()
	if pool.FreeSpace < size {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q too small for replica", poolID)
	}

	rep := &types.Volume{
		ID:          p.nextID("VOL"),
		Name:        name,
		VPD83:       fmt.Sprintf("6001405%025d", p.seq),
		BlockSize:   src.BlockSize,
		NumOfBlocks: src.NumOfBlocks,
		SystemID:    p.system.ID,
		PoolID:      poolID,
	}
	pool.FreeSpace -= size

	// Snapshots and clones share blocks with the source and become
	// dependencies; full copies and mirrors stand alone.
	dependent := repType == types.ReplicateSnapshot || repType == types.ReplicateClone

	finish := func() any {
		p.volumes[rep.ID] = rep
		if dependent {
			p.volChildren[srcVolumeID] = append(p.volChildren[srcVolumeID], rep.ID)
		}
		return rep
	}
	if size >= p.asyncAt {
		return jobs.Pending[*types.Volume](p.startJob(finish)), nil
	}
	finish()
	return jobs.Done(rep), nil
}

func (p *Plugin) VolumeOnline(volumeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	delete(p.offline, volumeID)
	return nil
}

func (p *Plugin) VolumeOffline(volumeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	p.offline[volumeID] = true
	return nil
}

func (p *Plugin) VolumeChildDependency(volumeID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return false, fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	return len(p.volChildren[volumeID]) > 0, nil
}

// VolumeChildDependencyRm severs replicas from their source so the source
// can be deleted. The replicas survive as independent volumes.
func (p *Plugin) VolumeChildDependencyRm(volumeID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return "", fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	if len(p.volChildren[volumeID]) == 0 {
		return "", nil
	}
	return p.startJob(func() any {
		delete(p.volChildren, volumeID)
		return nil
	}), nil
}

func (p *Plugin) Initiators() ([]*types.Initiator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Initiator, 0, len(p.initiators))
	for _, i := range p.initiators {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) InitiatorGrant(initiatorID string, initType types.InitiatorType, volumeID string, access types.AccessType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	if _, ok := p.initiators[initiatorID]; !ok {
		p.initiators[initiatorID] = &types.Initiator{ID: initiatorID, Type: initType, Name: initiatorID}
	}
	grants := p.initGrants[initiatorID]
	if grants == nil {
		grants = make(map[string]types.AccessType)
		p.initGrants[initiatorID] = grants
	}
	if _, dup := grants[volumeID]; dup {
		return fault.Newf(fault.ErrExists, "initiator %q already mapped to %q", initiatorID, volumeID)
	}
	grants[volumeID] = access
	return nil
}

func (p *Plugin) InitiatorRevoke(initiatorID, volumeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	grants := p.initGrants[initiatorID]
	if _, ok := grants[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "no mapping from %q to %q", initiatorID, volumeID)
	}
	delete(grants, volumeID)
	return nil
}

func (p *Plugin) VolumesAccessibleByInitiator(initiatorID string) ([]*types.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.initiators[initiatorID]; !ok {
		return nil, fault.Newf(fault.ErrNotFound, "initiator %q", initiatorID)
	}
	out := make([]*types.Volume, 0)
	for volID := range p.initGrants[initiatorID] {
		out = append(out, p.volumes[volID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) InitiatorsGrantedToVolume(volumeID string) ([]*types.Initiator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return nil, fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	out := make([]*types.Initiator, 0)
	for initID, grants := range p.initGrants {
		if _, ok := grants[volumeID]; ok {
			out = append(out, p.initiators[initID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) AccessGroups() ([]*types.AccessGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.AccessGroup, 0, len(p.groups))
	for _, g := range p.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) AccessGroupCreate(name, initiatorID string, initType types.InitiatorType, systemID string) (*types.AccessGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if systemID != p.system.ID {
		return nil, fault.Newf(fault.ErrNotFound, "system %q", systemID)
	}
	for _, g := range p.groups {
		if g.Name == name {
			return nil, fault.Newf(fault.ErrExists, "access group %q", name)
		}
	}
	if _, ok := p.initiators[initiatorID]; !ok {
		p.initiators[initiatorID] = &types.Initiator{ID: initiatorID, Type: initType, Name: initiatorID}
	}
	g := &types.AccessGroup{
		ID:         p.nextID("AG"),
		Name:       name,
		Initiators: []string{initiatorID},
		SystemID:   systemID,
	}
	p.groups[g.ID] = g
	return g, nil
}

func (p *Plugin) AccessGroupDelete(groupID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[groupID]; !ok {
		return fault.Newf(fault.ErrNotFound, "access group %q", groupID)
	}
	delete(p.groups, groupID)
	delete(p.groupGrants, groupID)
	return nil
}

func (p *Plugin) AccessGroupAddInitiator(groupID, initiatorID string, initType types.InitiatorType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.groups[groupID]
	if !ok {
		return fault.Newf(fault.ErrNotFound, "access group %q", groupID)
	}
	for _, id := range g.Initiators {
		if id == initiatorID {
			return fault.Newf(fault.ErrExists, "initiator %q already in group %q", initiatorID, groupID)
		}
	}
	if _, ok := p.initiators[initiatorID]; !ok {
		p.initiators[initiatorID] = &types.Initiator{ID: initiatorID, Type: initType, Name: initiatorID}
	}
	g.Initiators = append(g.Initiators, initiatorID)
	return nil
}

func (p *Plugin) AccessGroupDelInitiator(groupID, initiatorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.groups[groupID]
	if !ok {
		return fault.Newf(fault.ErrNotFound, "access group %q", groupID)
	}
	for i, id := range g.Initiators {
		if id == initiatorID {
			g.Initiators = append(g.Initiators[:i], g.Initiators[i+1:]...)
			return nil
		}
	}
	return fault.Newf(fault.ErrNotFound, "initiator %q in group %q", initiatorID, groupID)
}

func (p *Plugin) AccessGroupGrant(groupID, volumeID string, access types.AccessType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[groupID]; !ok {
		return fault.Newf(fault.ErrNotFound, "access group %q", groupID)
	}
	if _, ok := p.volumes[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	grants := p.groupGrants[groupID]
	if grants == nil {
		grants = make(map[string]types.AccessType)
		p.groupGrants[groupID] = grants
	}
	if _, dup := grants[volumeID]; dup {
		return fault.Newf(fault.ErrExists, "group %q already mapped to %q", groupID, volumeID)
	}
	grants[volumeID] = access
	return nil
}

func (p *Plugin) AccessGroupRevoke(groupID, volumeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	grants := p.groupGrants[groupID]
	if _, ok := grants[volumeID]; !ok {
		return fault.Newf(fault.ErrNotFound, "no mapping from group %q to %q", groupID, volumeID)
	}
	delete(grants, volumeID)
	return nil
}

func (p *Plugin) VolumesAccessibleByAccessGroup(groupID string) ([]*types.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[groupID]; !ok {
		return nil, fault.Newf(fault.ErrNotFound, "access group %q", groupID)
	}
	out := make([]*types.Volume, 0)
	for volID := range p.groupGrants[groupID] {
		out = append(out, p.volumes[volID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) AccessGroupsGrantedToVolume(volumeID string) ([]*types.AccessGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.volumes[volumeID]; !ok {
		return nil, fault.Newf(fault.ErrNotFound, "volume %q", volumeID)
	}
	out := make([]*types.AccessGroup, 0)
	for groupID, grants := range p.groupGrants {
		if _, ok := grants[volumeID]; ok {
			out = append(out, p.groups[groupID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func without(list []string, drop string) []string {
	out := list[:0]
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

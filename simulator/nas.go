package simulator

import (
	"sort"
	"time"

	"stormgmt/fault"
	"stormgmt/jobs"
	"stormgmt/types"
)

func (p *Plugin) FileSystems() ([]*types.FileSystem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.FileSystem, 0, len(p.fss))
	for _, fs := range p.fss {
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) FsCreate(poolID, name string, sizeBytes uint64) (jobs.Outcome[*types.FileSystem], error) {
	var zero jobs.Outcome[*types.FileSystem]
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.pools[poolID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "pool %q", poolID)
	}
	if sizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "file system size must be positive")
	}
	for _, fs := range p.fss {
		if fs.PoolID == poolID && fs.Name == name {
			return zero, fault.Newf(fault.ErrExists, "file system %q in pool %q", name, poolID)
		}
	}
	if pool.FreeSpace < sizeBytes {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q has %d bytes free, need %d", poolID, pool.FreeSpace, sizeBytes)
	}

	fs := &types.FileSystem{
		ID:         p.nextID("FS"),
		Name:       name,
		TotalSpace: sizeBytes,
		FreeSpace:  sizeBytes,
		PoolID:     poolID,
		SystemID:   p.system.ID,
	}
	pool.FreeSpace -= sizeBytes

	finish := func() any {
		p.fss[fs.ID] = fs
		p.snaps[fs.ID] = make(map[string]*types.FsSnapshot)
		return fs
	}
	if sizeBytes >= p.asyncAt {
		return jobs.Pending[*types.FileSystem](p.startJob(finish)), nil
	}
	finish()
	return jobs.Done(fs), nil
}

func (p *Plugin) FsDelete(fsID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fs, ok := p.fss[fsID]
	if !ok {
		return "", fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if len(p.fsChildren[fsID]) > 0 {
		return "", fault.Newf(fault.ErrInvalidArgument, "file system %q has child dependencies", fsID)
	}
	for _, e := range p.exports {
		if e.FsID == fsID {
			return "", fault.Newf(fault.ErrInvalidArgument, "file system %q is exported", fsID)
		}
	}

	finish := func() any {
		delete(p.fss, fsID)
		delete(p.snaps, fsID)
		for parent, kids := range p.fsChildren {
			p.fsChildren[parent] = without(kids, fsID)
		}
		p.pools[fs.PoolID].FreeSpace += fs.TotalSpace
		return nil
	}
	if fs.TotalSpace >= p.asyncAt {
		return p.startJob(finish), nil
	}
	finish()
	return "", nil
}

func (p *Plugin) FsResize(fsID string, newSizeBytes uint64) (jobs.Outcome[*types.FileSystem], error) {
	var zero jobs.Outcome[*types.FileSystem]
	p.mu.Lock()
	defer p.mu.Unlock()

	fs, ok := p.fss[fsID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if newSizeBytes == 0 {
		return zero, fault.New(fault.ErrInvalidArgument, "file system size must be positive")
	}
	used := fs.TotalSpace - fs.FreeSpace
	if newSizeBytes < used {
		return zero, fault.Newf(fault.ErrInvalidArgument, "file system %q holds %d bytes, cannot shrink to %d", fsID, used, newSizeBytes)
	}
	pool := p.pools[fs.PoolID]
	if newSizeBytes > fs.TotalSpace && pool.FreeSpace < newSizeBytes-fs.TotalSpace {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q cannot grow file system by %d bytes", pool.ID, newSizeBytes-fs.TotalSpace)
	}
	if newSizeBytes > fs.TotalSpace {
		pool.FreeSpace -= newSizeBytes - fs.TotalSpace
	} else {
		pool.FreeSpace += fs.TotalSpace - newSizeBytes
	}

	finish := func() any {
		fs.FreeSpace = newSizeBytes - used
		fs.TotalSpace = newSizeBytes
		return fs
	}
	if newSizeBytes >= p.asyncAt {
		return jobs.Pending[*types.FileSystem](p.startJob(finish)), nil
	}
	finish()
	return jobs.Done(fs), nil
}

func (p *Plugin) FsClone(srcFsID, destName, snapshotID string) (jobs.Outcome[*types.FileSystem], error) {
	var zero jobs.Outcome[*types.FileSystem]
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.fss[srcFsID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "file system %q", srcFsID)
	}
	if snapshotID != "" {
		if _, ok := p.snaps[srcFsID][snapshotID]; !ok {
			return zero, fault.Newf(fault.ErrNotFound, "snapshot %q of %q", snapshotID, srcFsID)
		}
	}
	pool := p.pools[src.PoolID]
	if pool.FreeSpace < src.TotalSpace {
		return zero, fault.Newf(fault.ErrInvalidArgument, "pool %q too small for clone", pool.ID)
	}

	clone := &types.FileSystem{
		ID:         p.nextID("FS"),
		Name:       destName,
		TotalSpace: src.TotalSpace,
		FreeSpace:  src.FreeSpace,
		PoolID:     src.PoolID,
		SystemID:   p.system.ID,
	}
	pool.FreeSpace -= src.TotalSpace

	finish := func() any {
		p.fss[clone.ID] = clone
		p.snaps[clone.ID] = make(map[string]*types.FsSnapshot)
		p.fsChildren[srcFsID] = append(p.fsChildren[srcFsID], clone.ID)
		return clone
	}
	if src.TotalSpace >= p.asyncAt {
		return jobs.Pending[*types.FileSystem](p.startJob(finish)), nil
	}
	finish()
	return jobs.Done(clone), nil
}

// FileClone always runs as a job; even a small file copy is remote work on
// a real array.
func (p *Plugin) FileClone(fsID, srcFileName, destFileName, snapshotID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fss[fsID]; !ok {
		return "", fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if srcFileName == "" || destFileName == "" {
		return "", fault.New(fault.ErrInvalidArgument, "file names must not be empty")
	}
	if snapshotID != "" {
		if _, ok := p.snaps[fsID][snapshotID]; !ok {
			return "", fault.Newf(fault.ErrNotFound, "snapshot %q of %q", snapshotID, fsID)
		}
	}
	return p.startJob(func() any { return nil }), nil
}

func (p *Plugin) FsChildDependency(fsID string, files []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fss[fsID]; !ok {
		return false, fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	return len(p.fsChildren[fsID]) > 0, nil
}

func (p *Plugin) FsChildDependencyRm(fsID string, files []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fss[fsID]; !ok {
		return "", fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if len(p.fsChildren[fsID]) == 0 {
		return "", nil
	}
	return p.startJob(func() any {
		delete(p.fsChildren, fsID)
		return nil
	}), nil
}

func (p *Plugin) FsSnapshots(fsID string) ([]*types.FsSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snaps, ok := p.snaps[fsID]
	if !ok {
		return nil, fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	out := make([]*types.FsSnapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) FsSnapshotCreate(fsID, name string, files []string) (jobs.Outcome[*types.FsSnapshot], error) {
	var zero jobs.Outcome[*types.FsSnapshot]
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps, ok := p.snaps[fsID]
	if !ok {
		return zero, fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	for _, s := range snaps {
		if s.Name == name {
			return zero, fault.Newf(fault.ErrExists, "snapshot %q of %q", name, fsID)
		}
	}
	snap := &types.FsSnapshot{
		ID:   p.nextID("SNAP"),
		Name: name,
		TS:   time.Now().Unix(),
	}
	snaps[snap.ID] = snap
	return jobs.Done(snap), nil
}

func (p *Plugin) FsSnapshotDelete(fsID, snapshotID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snaps, ok := p.snaps[fsID]
	if !ok {
		return "", fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if _, ok := snaps[snapshotID]; !ok {
		return "", fault.Newf(fault.ErrNotFound, "snapshot %q of %q", snapshotID, fsID)
	}
	delete(snaps, snapshotID)
	return "", nil
}

// FsSnapshotRevert rolls files back to their snapshot state; on the
// simulator that is pure bookkeeping, but it still runs as a job to mirror
// how long a real revert takes.
func (p *Plugin) FsSnapshotRevert(fsID, snapshotID string, files, restoreFiles []string, allFiles bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snaps, ok := p.snaps[fsID]
	if !ok {
		return "", fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if _, ok := snaps[snapshotID]; !ok {
		return "", fault.Newf(fault.ErrNotFound, "snapshot %q of %q", snapshotID, fsID)
	}
	if !allFiles && len(files) == 0 {
		return "", fault.New(fault.ErrInvalidArgument, "no files selected for revert")
	}
	if len(restoreFiles) > 0 && len(restoreFiles) != len(files) {
		return "", fault.New(fault.ErrInvalidArgument, "restore_files must match files")
	}
	return p.startJob(func() any { return nil }), nil
}

func (p *Plugin) ExportAuthTypes() ([]string, error) {
	return []string{"standard"}, nil
}

func (p *Plugin) Exports() ([]*types.NfsExport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.NfsExport, 0, len(p.exports))
	for _, e := range p.exports {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Plugin) ExportFs(fsID, exportPath string, root, rw, ro []string, anonUID, anonGID int64, authType, options string) (*types.NfsExport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fss[fsID]; !ok {
		return nil, fault.Newf(fault.ErrNotFound, "file system %q", fsID)
	}
	if exportPath == "" {
		exportPath = "/exports/" + p.fss[fsID].Name
	}
	for _, e := range p.exports {
		if e.ExportPath == exportPath {
			return nil, fault.Newf(fault.ErrExists, "export path %q", exportPath)
		}
	}
	if authType == "" {
		authType = "standard"
	}
	e := &types.NfsExport{
		ID:         p.nextID("EXP"),
		FsID:       fsID,
		ExportPath: exportPath,
		Auth:       authType,
		Root:       root,
		RW:         rw,
		RO:         ro,
		AnonUID:    anonUID,
		AnonGID:    anonGID,
		Options:    options,
	}
	p.exports[e.ID] = e
	return e, nil
}

func (p *Plugin) ExportRemove(exportID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.exports[exportID]; !ok {
		return fault.Newf(fault.ErrNotFound, "export %q", exportID)
	}
	delete(p.exports, exportID)
	return nil
}

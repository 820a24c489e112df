// Runner serves the plugin contract over one connection.
//
// Request processing pipeline:
//
//	ReadFrame → decode envelope → lifecycle gate → middleware chain
//	  → method table dispatch → encode response/fault → WriteFrame
//
// Requests are processed strictly one at a time: the protocol forbids
// pipelining, so a sequential loop is the whole scheduler. Every failure
// raised by a handler is translated into a fault message at this boundary;
// nothing unstructured ever reaches the stream.

package plugin

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"stormgmt/codec"
	"stormgmt/fault"
	"stormgmt/jobs"
	"stormgmt/message"
	"stormgmt/middleware"
	"stormgmt/transport"
	"stormgmt/types"
)

type opFunc func(a args) (any, error)

// Runner drives one connection's request loop against a plugin. One Runner
// serves exactly one connection; run several Runners for concurrency across
// connections.
type Runner struct {
	p   Plugin
	san SAN // nil when the plugin has no block family
	nas NAS // nil when the plugin has no file family

	tr    *transport.Transport
	log   zerolog.Logger
	mws   []middleware.Middleware
	table map[string]opFunc

	started bool
	shut    bool
}

// NewRunner wraps an accepted connection. The optional SAN and NAS families
// are discovered by type assertion; operations of an absent family fail
// with no-support.
func NewRunner(conn net.Conn, p Plugin) *Runner {
	r := &Runner{
		p:   p,
		tr:  transport.New(conn),
		log: zerolog.Nop(),
	}
	r.san, _ = p.(SAN)
	r.nas, _ = p.(NAS)
	r.buildTable()
	return r
}

// SetLogger replaces the no-op default.
func (r *Runner) SetLogger(log zerolog.Logger) {
	r.log = log
}

// SetIdleTimeout drops the connection when no request arrives for d.
// Zero, the default, waits forever.
func (r *Runner) SetIdleTimeout(d time.Duration) {
	r.tr.SetTimeout(d)
}

// Use appends a middleware. Middlewares run in registration order, inside
// the always-installed panic recovery.
func (r *Runner) Use(mw middleware.Middleware) {
	r.mws = append(r.mws, mw)
}

// Serve processes requests until the peer disconnects or the stream fails.
// Peer EOF triggers a best-effort Shutdown whose error is necessarily
// unobservable to the remote caller: it is logged and swallowed.
func (r *Runner) Serve() error {
	defer r.tr.Close()

	chain := append([]middleware.Middleware{middleware.Recover()}, r.mws...)
	handler := middleware.Chain(chain...)(r.dispatch)

	for {
		msg, err := r.tr.ReceiveMessage()
		if err != nil {
			switch fault.Code(err) {
			case fault.ErrTransportEOF:
				r.eofCleanup()
				return nil
			case fault.ErrTimeout:
				// An idle drop releases plugin resources the same
				// way a peer EOF does.
				r.eofCleanup()
				return err
			}
			return err
		}

		if msg.Kind() != message.KindRequest {
			if serr := r.tr.SendFault(msg.ID, fault.New(fault.ErrInvalidArgument, "expected a request")); serr != nil {
				return serr
			}
			continue
		}

		resp := handler(context.Background(), msg)
		if err := r.tr.Send(resp); err != nil {
			return err
		}
	}
}

// eofCleanup releases plugin resources after the peer vanished without a
// clean shutdown.
func (r *Runner) eofCleanup() {
	if !r.started || r.shut {
		return
	}
	r.shut = true
	if err := r.p.Shutdown(); err != nil {
		r.log.Warn().Err(err).Msg("shutdown after peer EOF failed")
	}
}

// gate enforces the startup/shutdown bracket: only plugin_info is valid
// outside it, and startup itself is only valid before the bracket opens.
func (r *Runner) gate(method string) *fault.Error {
	if method == "plugin_info" {
		return nil
	}
	if r.shut {
		return fault.Newf(fault.ErrInvalidArgument, "%q after shutdown", method)
	}
	if method == "startup" {
		return nil
	}
	if !r.started {
		return fault.Newf(fault.ErrInvalidArgument, "%q before startup", method)
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, req *message.Message) *message.Message {
	h, known := r.table[req.Method]
	if !known {
		return message.NewFault(req.ID, fault.Newf(fault.ErrNoSupport, "unknown method %q", req.Method))
	}
	if ferr := r.gate(req.Method); ferr != nil {
		return message.NewFault(req.ID, ferr)
	}

	a, ferr := decodeArgs(req.Params)
	if ferr != nil {
		return message.NewFault(req.ID, ferr)
	}

	result, err := h(a)
	if err != nil {
		return message.NewFault(req.ID, fault.FromError(err))
	}

	if result == nil {
		return message.NewResponse(req.ID, nil)
	}
	raw, eerr := codec.Encode(result)
	if eerr != nil {
		return message.NewFault(req.ID, fault.Newf(fault.ErrPluginFailure, "encode result for %q: %v", req.Method, eerr))
	}
	return message.NewResponse(req.ID, raw)
}

// outcomeWire maps the Outcome sum type onto the wire's two-element pair:
// exactly one slot is non-null.
func outcomeWire[T any](o jobs.Outcome[T]) []any {
	if id, pending := o.Pending(); pending {
		return []any{id, nil}
	}
	v, _ := o.Value()
	return []any{nil, v}
}

// jobWire maps a void operation's job handle: null means completed.
func jobWire(jobID string) any {
	if jobID == "" {
		return nil
	}
	return jobID
}

func (r *Runner) buildTable() {
	r.table = map[string]opFunc{
		// Base contract.
		"plugin_info":  r.opPluginInfo,
		"startup":      r.opStartup,
		"shutdown":     r.opShutdown,
		"set_time_out": r.opSetTimeOut,
		"get_time_out": r.opGetTimeOut,
		"capabilities": r.opCapabilities,
		"systems":      r.opSystems,
		"pools":        r.opPools,
		"job_status":   r.opJobStatus,
		"job_free":     r.opJobFree,

		// Block / SAN family.
		"disks":                             r.sanOp(func(s SAN, a args) (any, error) { return s.Disks() }),
		"pool_create":                       r.sanOp(opPoolCreate),
		"pool_create_from_disks":            r.sanOp(opPoolCreateFromDisks),
		"pool_create_from_volumes":          r.sanOp(opPoolCreateFromVolumes),
		"pool_create_from_pool":             r.sanOp(opPoolCreateFromPool),
		"pool_delete":                       r.sanOp(opPoolDelete),
		"volumes":                           r.sanOp(func(s SAN, a args) (any, error) { return s.Volumes() }),
		"volume_create":                     r.sanOp(opVolumeCreate),
		"volume_delete":                     r.sanOp(opVolumeDelete),
		"volume_resize":                     r.sanOp(opVolumeResize),
		"volume_replicate":                  r.sanOp(opVolumeReplicate),
		"volume_replicate_range_block_size": r.sanOp(opVolumeReplicateRangeBlockSize),
		"volume_replicate_range":            r.sanOp(opVolumeReplicateRange),
		"volume_online":                     r.sanOp(opVolumeOnline),
		"volume_offline":                    r.sanOp(opVolumeOffline),
		"volume_child_dependency":           r.sanOp(opVolumeChildDependency),
		"volume_child_dependency_rm":        r.sanOp(opVolumeChildDependencyRm),
		"initiators":                        r.sanOp(func(s SAN, a args) (any, error) { return s.Initiators() }),
		"initiator_grant":                   r.sanOp(opInitiatorGrant),
		"initiator_revoke":                  r.sanOp(opInitiatorRevoke),
		"iscsi_chap_auth":                   r.sanOp(opIscsiChapAuth),
		"volumes_accessible_by_initiator":   r.sanOp(opVolumesAccessibleByInitiator),
		"initiators_granted_to_volume":      r.sanOp(opInitiatorsGrantedToVolume),
		"access_group_list":                 r.sanOp(func(s SAN, a args) (any, error) { return s.AccessGroups() }),
		"access_group_create":               r.sanOp(opAccessGroupCreate),
		"access_group_del":                  r.sanOp(opAccessGroupDelete),
		"access_group_add_initiator":        r.sanOp(opAccessGroupAddInitiator),
		"access_group_del_initiator":        r.sanOp(opAccessGroupDelInitiator),
		"access_group_grant":                r.sanOp(opAccessGroupGrant),
		"access_group_revoke":               r.sanOp(opAccessGroupRevoke),
		"volumes_accessible_by_access_group": r.sanOp(opVolumesAccessibleByAccessGroup),
		"access_groups_granted_to_volume":    r.sanOp(opAccessGroupsGrantedToVolume),

		// File / NAS family.
		"fs":                     r.nasOp(func(n NAS, a args) (any, error) { return n.FileSystems() }),
		"fs_create":              r.nasOp(opFsCreate),
		"fs_delete":              r.nasOp(opFsDelete),
		"fs_resize":              r.nasOp(opFsResize),
		"fs_clone":               r.nasOp(opFsClone),
		"file_clone":             r.nasOp(opFileClone),
		"fs_child_dependency":    r.nasOp(opFsChildDependency),
		"fs_child_dependency_rm": r.nasOp(opFsChildDependencyRm),
		"fs_snapshots":           r.nasOp(opFsSnapshots),
		"fs_snapshot_create":     r.nasOp(opFsSnapshotCreate),
		"fs_snapshot_delete":     r.nasOp(opFsSnapshotDelete),
		"fs_snapshot_revert":     r.nasOp(opFsSnapshotRevert),
		"export_auth":            r.nasOp(func(n NAS, a args) (any, error) { return n.ExportAuthTypes() }),
		"exports":                r.nasOp(func(n NAS, a args) (any, error) { return n.Exports() }),
		"export_fs":              r.nasOp(opExportFs),
		"export_remove":          r.nasOp(opExportRemove),
	}
}

// sanOp gates a block-family handler on the plugin actually implementing
// the SAN interface.
func (r *Runner) sanOp(h func(SAN, args) (any, error)) opFunc {
	return func(a args) (any, error) {
		if r.san == nil {
			return nil, fault.NoSupport()
		}
		return h(r.san, a)
	}
}

func (r *Runner) nasOp(h func(NAS, args) (any, error)) opFunc {
	return func(a args) (any, error) {
		if r.nas == nil {
			return nil, fault.NoSupport()
		}
		return h(r.nas, a)
	}
}

// ---- base handlers ----

func (r *Runner) opPluginInfo(args) (any, error) {
	desc, version, err := r.p.PluginInfo()
	if err != nil {
		return nil, err
	}
	return []any{desc, version}, nil
}

func (r *Runner) opStartup(a args) (any, error) {
	if r.started {
		return nil, fault.New(fault.ErrInvalidArgument, "startup called twice")
	}
	uri, err := a.str("uri")
	if err != nil {
		return nil, err
	}
	password, err := a.optStr("password")
	if err != nil {
		return nil, err
	}
	timeout, err := a.u32("timeout")
	if err != nil {
		return nil, err
	}
	if err := r.p.Startup(uri, password, timeout); err != nil {
		return nil, err
	}
	r.started = true
	return nil, nil
}

func (r *Runner) opShutdown(args) (any, error) {
	if err := r.p.Shutdown(); err != nil {
		return nil, err
	}
	r.shut = true
	return nil, nil
}

func (r *Runner) opSetTimeOut(a args) (any, error) {
	ms, err := a.u32("ms")
	if err != nil {
		return nil, err
	}
	return nil, r.p.SetTimeOut(ms)
}

func (r *Runner) opGetTimeOut(args) (any, error) {
	return r.p.TimeOut()
}

func (r *Runner) opCapabilities(a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	return r.p.Capabilities(systemID)
}

func (r *Runner) opSystems(args) (any, error) { return r.p.Systems() }
func (r *Runner) opPools(args) (any, error)   { return r.p.Pools() }

func (r *Runner) opJobStatus(a args) (any, error) {
	jobID, err := a.str("job_id")
	if err != nil {
		return nil, err
	}
	info, err := r.p.JobStatus(jobID)
	if err != nil {
		return nil, err
	}
	item := info.Result
	if info.Err != nil {
		// An errored job carries its recorded fault in the item slot so
		// the poller can reconstruct it.
		item = map[string]any{
			"code":    info.Err.Code,
			"message": info.Err.Message,
			"data":    info.Err.Data,
		}
	}
	return []any{int(info.Status), info.Percent, item}, nil
}

func (r *Runner) opJobFree(a args) (any, error) {
	jobID, err := a.str("job_id")
	if err != nil {
		return nil, err
	}
	return nil, r.p.JobFree(jobID)
}

// ---- block / SAN handlers ----

func opPoolCreate(s SAN, a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("pool_name")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("size_bytes")
	if err != nil {
		return nil, err
	}
	raid, err := a.i32("raid_type")
	if err != nil {
		return nil, err
	}
	member, err := a.i32("member_type")
	if err != nil {
		return nil, err
	}
	o, err := s.PoolCreate(systemID, name, size, types.RaidType(raid), types.PoolMemberType(member))
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opPoolCreateFromDisks(s SAN, a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("pool_name")
	if err != nil {
		return nil, err
	}
	members, err := a.strs("member_ids")
	if err != nil {
		return nil, err
	}
	raid, err := a.i32("raid_type")
	if err != nil {
		return nil, err
	}
	o, err := s.PoolCreateFromDisks(systemID, name, members, types.RaidType(raid))
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opPoolCreateFromVolumes(s SAN, a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("pool_name")
	if err != nil {
		return nil, err
	}
	members, err := a.strs("member_ids")
	if err != nil {
		return nil, err
	}
	raid, err := a.i32("raid_type")
	if err != nil {
		return nil, err
	}
	o, err := s.PoolCreateFromVolumes(systemID, name, members, types.RaidType(raid))
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opPoolCreateFromPool(s SAN, a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("pool_name")
	if err != nil {
		return nil, err
	}
	memberID, err := a.str("member_id")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("size_bytes")
	if err != nil {
		return nil, err
	}
	o, err := s.PoolCreateFromPool(systemID, name, memberID, size)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opPoolDelete(s SAN, a args) (any, error) {
	poolID, err := a.str("pool_id")
	if err != nil {
		return nil, err
	}
	jobID, err := s.PoolDelete(poolID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opVolumeCreate(s SAN, a args) (any, error) {
	poolID, err := a.str("pool_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("volume_name")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("size_bytes")
	if err != nil {
		return nil, err
	}
	prov, err := a.i32("provisioning")
	if err != nil {
		return nil, err
	}
	o, err := s.VolumeCreate(poolID, name, size, types.Provisioning(prov))
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opVolumeDelete(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	jobID, err := s.VolumeDelete(volumeID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opVolumeResize(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("new_size_bytes")
	if err != nil {
		return nil, err
	}
	o, err := s.VolumeResize(volumeID, size)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opVolumeReplicate(s SAN, a args) (any, error) {
	poolID, err := a.str("pool_id")
	if err != nil {
		return nil, err
	}
	repType, err := a.i32("rep_type")
	if err != nil {
		return nil, err
	}
	srcID, err := a.str("volume_src_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("name")
	if err != nil {
		return nil, err
	}
	o, err := s.VolumeReplicate(poolID, types.ReplicationType(repType), srcID, name)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opVolumeReplicateRangeBlockSize(s SAN, a args) (any, error) {
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	return s.VolumeReplicateRangeBlockSize(systemID)
}

func opVolumeReplicateRange(s SAN, a args) (any, error) {
	repType, err := a.i32("rep_type")
	if err != nil {
		return nil, err
	}
	srcID, err := a.str("volume_src_id")
	if err != nil {
		return nil, err
	}
	destID, err := a.str("volume_dest_id")
	if err != nil {
		return nil, err
	}
	ranges, err := a.blockRanges("ranges")
	if err != nil {
		return nil, err
	}
	jobID, err := s.VolumeReplicateRange(types.ReplicationType(repType), srcID, destID, ranges)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opVolumeOnline(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return nil, s.VolumeOnline(volumeID)
}

func opVolumeOffline(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return nil, s.VolumeOffline(volumeID)
}

func opVolumeChildDependency(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return s.VolumeChildDependency(volumeID)
}

func opVolumeChildDependencyRm(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	jobID, err := s.VolumeChildDependencyRm(volumeID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opInitiatorGrant(s SAN, a args) (any, error) {
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	initType, err := a.i32("initiator_type")
	if err != nil {
		return nil, err
	}
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	access, err := a.i32("access")
	if err != nil {
		return nil, err
	}
	return nil, s.InitiatorGrant(initiatorID, types.InitiatorType(initType), volumeID, types.AccessType(access))
}

func opInitiatorRevoke(s SAN, a args) (any, error) {
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return nil, s.InitiatorRevoke(initiatorID, volumeID)
}

func opIscsiChapAuth(s SAN, a args) (any, error) {
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	inUser, err := a.optStr("in_user")
	if err != nil {
		return nil, err
	}
	inPassword, err := a.optStr("in_password")
	if err != nil {
		return nil, err
	}
	outUser, err := a.optStr("out_user")
	if err != nil {
		return nil, err
	}
	outPassword, err := a.optStr("out_password")
	if err != nil {
		return nil, err
	}
	return nil, s.IscsiChapAuth(initiatorID, inUser, inPassword, outUser, outPassword)
}

func opVolumesAccessibleByInitiator(s SAN, a args) (any, error) {
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	return s.VolumesAccessibleByInitiator(initiatorID)
}

func opInitiatorsGrantedToVolume(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return s.InitiatorsGrantedToVolume(volumeID)
}

func opAccessGroupCreate(s SAN, a args) (any, error) {
	name, err := a.str("name")
	if err != nil {
		return nil, err
	}
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	initType, err := a.i32("id_type")
	if err != nil {
		return nil, err
	}
	systemID, err := a.str("system_id")
	if err != nil {
		return nil, err
	}
	return s.AccessGroupCreate(name, initiatorID, types.InitiatorType(initType), systemID)
}

func opAccessGroupDelete(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	return nil, s.AccessGroupDelete(groupID)
}

func opAccessGroupAddInitiator(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	initType, err := a.i32("id_type")
	if err != nil {
		return nil, err
	}
	return nil, s.AccessGroupAddInitiator(groupID, initiatorID, types.InitiatorType(initType))
}

func opAccessGroupDelInitiator(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	initiatorID, err := a.str("initiator_id")
	if err != nil {
		return nil, err
	}
	return nil, s.AccessGroupDelInitiator(groupID, initiatorID)
}

func opAccessGroupGrant(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	access, err := a.i32("access")
	if err != nil {
		return nil, err
	}
	return nil, s.AccessGroupGrant(groupID, volumeID, types.AccessType(access))
}

func opAccessGroupRevoke(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return nil, s.AccessGroupRevoke(groupID, volumeID)
}

func opVolumesAccessibleByAccessGroup(s SAN, a args) (any, error) {
	groupID, err := a.str("group_id")
	if err != nil {
		return nil, err
	}
	return s.VolumesAccessibleByAccessGroup(groupID)
}

func opAccessGroupsGrantedToVolume(s SAN, a args) (any, error) {
	volumeID, err := a.str("volume_id")
	if err != nil {
		return nil, err
	}
	return s.AccessGroupsGrantedToVolume(volumeID)
}

// ---- file / NAS handlers ----

func opFsCreate(n NAS, a args) (any, error) {
	poolID, err := a.str("pool_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("name")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("size_bytes")
	if err != nil {
		return nil, err
	}
	o, err := n.FsCreate(poolID, name, size)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opFsDelete(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	jobID, err := n.FsDelete(fsID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opFsResize(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	size, err := a.u64("new_size_bytes")
	if err != nil {
		return nil, err
	}
	o, err := n.FsResize(fsID, size)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opFsClone(n NAS, a args) (any, error) {
	srcID, err := a.str("src_fs_id")
	if err != nil {
		return nil, err
	}
	destName, err := a.str("dest_fs_name")
	if err != nil {
		return nil, err
	}
	snapshotID, err := a.optStr("snapshot_id")
	if err != nil {
		return nil, err
	}
	o, err := n.FsClone(srcID, destName, snapshotID)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opFileClone(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	src, err := a.str("src_file_name")
	if err != nil {
		return nil, err
	}
	dest, err := a.str("dest_file_name")
	if err != nil {
		return nil, err
	}
	snapshotID, err := a.optStr("snapshot_id")
	if err != nil {
		return nil, err
	}
	jobID, err := n.FileClone(fsID, src, dest, snapshotID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opFsChildDependency(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	files, err := a.strs("files")
	if err != nil {
		return nil, err
	}
	return n.FsChildDependency(fsID, files)
}

func opFsChildDependencyRm(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	files, err := a.strs("files")
	if err != nil {
		return nil, err
	}
	jobID, err := n.FsChildDependencyRm(fsID, files)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opFsSnapshots(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	return n.FsSnapshots(fsID)
}

func opFsSnapshotCreate(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	name, err := a.str("snapshot_name")
	if err != nil {
		return nil, err
	}
	files, err := a.strs("files")
	if err != nil {
		return nil, err
	}
	o, err := n.FsSnapshotCreate(fsID, name, files)
	if err != nil {
		return nil, err
	}
	return outcomeWire(o), nil
}

func opFsSnapshotDelete(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	snapshotID, err := a.str("snapshot_id")
	if err != nil {
		return nil, err
	}
	jobID, err := n.FsSnapshotDelete(fsID, snapshotID)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opFsSnapshotRevert(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	snapshotID, err := a.str("snapshot_id")
	if err != nil {
		return nil, err
	}
	files, err := a.strs("files")
	if err != nil {
		return nil, err
	}
	restoreFiles, err := a.strs("restore_files")
	if err != nil {
		return nil, err
	}
	allFiles, err := a.boolean("all_files")
	if err != nil {
		return nil, err
	}
	jobID, err := n.FsSnapshotRevert(fsID, snapshotID, files, restoreFiles, allFiles)
	if err != nil {
		return nil, err
	}
	return jobWire(jobID), nil
}

func opExportFs(n NAS, a args) (any, error) {
	fsID, err := a.str("fs_id")
	if err != nil {
		return nil, err
	}
	exportPath, err := a.str("export_path")
	if err != nil {
		return nil, err
	}
	root, err := a.strs("root_list")
	if err != nil {
		return nil, err
	}
	rw, err := a.strs("rw_list")
	if err != nil {
		return nil, err
	}
	ro, err := a.strs("ro_list")
	if err != nil {
		return nil, err
	}
	anonUID, err := a.i64("anon_uid")
	if err != nil {
		return nil, err
	}
	anonGID, err := a.i64("anon_gid")
	if err != nil {
		return nil, err
	}
	authType, err := a.optStr("auth_type")
	if err != nil {
		return nil, err
	}
	options, err := a.optStr("options")
	if err != nil {
		return nil, err
	}
	return n.ExportFs(fsID, exportPath, root, rw, ro, anonUID, anonGID, authType, options)
}

func opExportRemove(n NAS, a args) (any, error) {
	exportID, err := a.str("export_id")
	if err != nil {
		return nil, err
	}
	return nil, n.ExportRemove(exportID)
}

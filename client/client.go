// Package client is the management-side handle to one plugin connection.
//
// Every operation maps onto a single request/reply exchange. Operations the
// plugin defers to a job are polled transparently: the typed methods block
// until the job reaches a terminal state, honoring the caller's context, so
// callers see a synchronous API regardless of how the array behaves.
package client

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/rs/zerolog"

	"stormgmt/fault"
	"stormgmt/jobs"
	"stormgmt/transport"
	"stormgmt/types"
)

// DefaultPollInterval paces job_status polling. A quarter second keeps slow
// arrays from being hammered while staying responsive for fast jobs.
const DefaultPollInterval = 250 * time.Millisecond

// Client drives one plugin over a framed connection. Not safe for
// concurrent use: the protocol admits one outstanding request per
// connection, so callers wanting parallelism open several clients.
type Client struct {
	tr   *transport.Transport
	log  zerolog.Logger
	poll time.Duration
}

// Dial connects to a plugin's unix socket.
func Dial(path string) (*Client, error) {
	tr, err := transport.Dial(path)
	if err != nil {
		return nil, err
	}
	return wrap(tr), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return wrap(transport.New(conn))
}

func wrap(tr *transport.Transport) *Client {
	return &Client{tr: tr, log: zerolog.Nop(), poll: DefaultPollInterval}
}

// SetLogger replaces the no-op default.
func (c *Client) SetLogger(log zerolog.Logger) { c.log = log }

// SetPollInterval adjusts job polling pace. Mainly for tests.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.poll = d
	}
}

// SetReplyTimeout bounds how long a single exchange may wait for its reply.
func (c *Client) SetReplyTimeout(d time.Duration) { c.tr.SetTimeout(d) }

// Close tears down the connection. The plugin sees EOF and cleans up on
// its own; use Shutdown first for an orderly stop.
func (c *Client) Close() error { return c.tr.Close() }

// Startup opens the plugin's usable lifetime against the array at uri.
func (c *Client) Startup(uri, password string, timeoutMS uint32) error {
	params := map[string]any{"uri": uri, "timeout": timeoutMS}
	if password != "" {
		params["password"] = password
	}
	_, err := c.tr.Call("startup", params)
	return err
}

// Shutdown closes the plugin's usable lifetime. The connection stays open;
// only plugin_info remains callable afterwards.
func (c *Client) Shutdown() error {
	_, err := c.tr.Call("shutdown", nil)
	return err
}

// PluginInfo reports the plugin's description and version. Valid before
// Startup.
func (c *Client) PluginInfo() (description, version string, err error) {
	got, err := c.tr.Call("plugin_info", nil)
	if err != nil {
		return "", "", err
	}
	pair, ok := got.([]any)
	if !ok || len(pair) != 2 {
		return "", "", badReply("plugin_info", got)
	}
	description, dok := pair[0].(string)
	version, vok := pair[1].(string)
	if !dok || !vok {
		return "", "", badReply("plugin_info", got)
	}
	return description, version, nil
}

func (c *Client) SetTimeOut(ms uint32) error {
	_, err := c.tr.Call("set_time_out", map[string]any{"ms": ms})
	return err
}

func (c *Client) TimeOut() (uint32, error) {
	got, err := c.tr.Call("get_time_out", nil)
	if err != nil {
		return 0, err
	}
	n, ok := got.(json.Number)
	if !ok {
		return 0, badReply("get_time_out", got)
	}
	ms, perr := n.Int64()
	if perr != nil || ms < 0 {
		return 0, badReply("get_time_out", got)
	}
	return uint32(ms), nil
}

func (c *Client) Capabilities(systemID string) (*types.Capabilities, error) {
	got, err := c.tr.Call("capabilities", map[string]any{"system_id": systemID})
	if err != nil {
		return nil, err
	}
	return as[*types.Capabilities]("capabilities", got)
}

func (c *Client) Systems() ([]*types.System, error) {
	return listCall[*types.System](c, "systems", nil)
}

func (c *Client) Pools() ([]*types.Pool, error) {
	return listCall[*types.Pool](c, "pools", nil)
}

func (c *Client) Disks() ([]*types.Disk, error) {
	return listCall[*types.Disk](c, "disks", nil)
}

// JobStatus reports one observation of a job. For errored jobs the returned
// error is the fault the plugin recorded at failure time.
func (c *Client) JobStatus(jobID string) (jobs.Status, int, any, error) {
	got, err := c.tr.Call("job_status", map[string]any{"job_id": jobID})
	if err != nil {
		return 0, 0, nil, err
	}
	triple, ok := got.([]any)
	if !ok || len(triple) != 3 {
		return 0, 0, nil, badReply("job_status", got)
	}
	status, serr := intSlot(triple[0])
	percent, perr := intSlot(triple[1])
	if serr != nil || perr != nil {
		return 0, 0, nil, badReply("job_status", got)
	}
	if jobs.Status(status) == jobs.StatusError {
		return jobs.StatusError, percent, nil, faultFromItem(triple[2])
	}
	return jobs.Status(status), percent, triple[2], nil
}

func (c *Client) JobFree(jobID string) error {
	_, err := c.tr.Call("job_free", map[string]any{"job_id": jobID})
	return err
}

// ---- block / SAN operations ----

func (c *Client) PoolCreate(ctx context.Context, systemID, poolName string, sizeBytes uint64, raidType types.RaidType, memberType types.PoolMemberType) (*types.Pool, error) {
	return pairCall[*types.Pool](c, ctx, "pool_create", map[string]any{
		"system_id":   systemID,
		"pool_name":   poolName,
		"size_bytes":  sizeBytes,
		"raid_type":   int32(raidType),
		"member_type": int32(memberType),
	})
}

func (c *Client) PoolCreateFromDisks(ctx context.Context, systemID, poolName string, diskIDs []string, raidType types.RaidType) (*types.Pool, error) {
	return pairCall[*types.Pool](c, ctx, "pool_create_from_disks", map[string]any{
		"system_id":  systemID,
		"pool_name":  poolName,
		"member_ids": diskIDs,
		"raid_type":  int32(raidType),
	})
}

func (c *Client) PoolCreateFromVolumes(ctx context.Context, systemID, poolName string, volumeIDs []string, raidType types.RaidType) (*types.Pool, error) {
	return pairCall[*types.Pool](c, ctx, "pool_create_from_volumes", map[string]any{
		"system_id":  systemID,
		"pool_name":  poolName,
		"member_ids": volumeIDs,
		"raid_type":  int32(raidType),
	})
}

func (c *Client) PoolCreateFromPool(ctx context.Context, systemID, poolName, memberPoolID string, sizeBytes uint64) (*types.Pool, error) {
	return pairCall[*types.Pool](c, ctx, "pool_create_from_pool", map[string]any{
		"system_id":  systemID,
		"pool_name":  poolName,
		"member_id":  memberPoolID,
		"size_bytes": sizeBytes,
	})
}

func (c *Client) PoolDelete(ctx context.Context, poolID string) error {
	return c.jobCall(ctx, "pool_delete", map[string]any{"pool_id": poolID})
}

func (c *Client) Volumes() ([]*types.Volume, error) {
	return listCall[*types.Volume](c, "volumes", nil)
}

func (c *Client) VolumeCreate(ctx context.Context, poolID, name string, sizeBytes uint64, provisioning types.Provisioning) (*types.Volume, error) {
	return pairCall[*types.Volume](c, ctx, "volume_create", map[string]any{
		"pool_id":      poolID,
		"volume_name":  name,
		"size_bytes":   sizeBytes,
		"provisioning": int32(provisioning),
	})
}

func (c *Client) VolumeDelete(ctx context.Context, volumeID string) error {
	return c.jobCall(ctx, "volume_delete", map[string]any{"volume_id": volumeID})
}

func (c *Client) VolumeResize(ctx context.Context, volumeID string, newSizeBytes uint64) (*types.Volume, error) {
	return pairCall[*types.Volume](c, ctx, "volume_resize", map[string]any{
		"volume_id":      volumeID,
		"new_size_bytes": newSizeBytes,
	})
}

func (c *Client) VolumeReplicate(ctx context.Context, poolID string, repType types.ReplicationType, srcVolumeID, name string) (*types.Volume, error) {
	return pairCall[*types.Volume](c, ctx, "volume_replicate", map[string]any{
		"pool_id":       poolID,
		"rep_type":      int32(repType),
		"volume_src_id": srcVolumeID,
		"name":          name,
	})
}

func (c *Client) VolumeReplicateRangeBlockSize(systemID string) (uint32, error) {
	got, err := c.tr.Call("volume_replicate_range_block_size", map[string]any{"system_id": systemID})
	if err != nil {
		return 0, err
	}
	n, ok := got.(json.Number)
	if !ok {
		return 0, badReply("volume_replicate_range_block_size", got)
	}
	size, perr := n.Int64()
	if perr != nil || size <= 0 {
		return 0, badReply("volume_replicate_range_block_size", got)
	}
	return uint32(size), nil
}

func (c *Client) VolumeReplicateRange(ctx context.Context, repType types.ReplicationType, srcVolumeID, destVolumeID string, ranges []*types.BlockRange) error {
	return c.jobCall(ctx, "volume_replicate_range", map[string]any{
		"rep_type":       int32(repType),
		"volume_src_id":  srcVolumeID,
		"volume_dest_id": destVolumeID,
		"ranges":         ranges,
	})
}

func (c *Client) VolumeOnline(volumeID string) error {
	_, err := c.tr.Call("volume_online", map[string]any{"volume_id": volumeID})
	return err
}

func (c *Client) VolumeOffline(volumeID string) error {
	_, err := c.tr.Call("volume_offline", map[string]any{"volume_id": volumeID})
	return err
}

func (c *Client) VolumeChildDependency(volumeID string) (bool, error) {
	got, err := c.tr.Call("volume_child_dependency", map[string]any{"volume_id": volumeID})
	if err != nil {
		return false, err
	}
	b, ok := got.(bool)
	if !ok {
		return false, badReply("volume_child_dependency", got)
	}
	return b, nil
}

func (c *Client) VolumeChildDependencyRm(ctx context.Context, volumeID string) error {
	return c.jobCall(ctx, "volume_child_dependency_rm", map[string]any{"volume_id": volumeID})
}

func (c *Client) Initiators() ([]*types.Initiator, error) {
	return listCall[*types.Initiator](c, "initiators", nil)
}

func (c *Client) InitiatorGrant(initiatorID string, initType types.InitiatorType, volumeID string, access types.AccessType) error {
	_, err := c.tr.Call("initiator_grant", map[string]any{
		"initiator_id":   initiatorID,
		"initiator_type": int32(initType),
		"volume_id":      volumeID,
		"access":         int32(access),
	})
	return err
}

func (c *Client) InitiatorRevoke(initiatorID, volumeID string) error {
	_, err := c.tr.Call("initiator_revoke", map[string]any{
		"initiator_id": initiatorID,
		"volume_id":    volumeID,
	})
	return err
}

func (c *Client) IscsiChapAuth(initiatorID, inUser, inPassword, outUser, outPassword string) error {
	_, err := c.tr.Call("iscsi_chap_auth", map[string]any{
		"initiator_id": initiatorID,
		"in_user":      orNil(inUser),
		"in_password":  orNil(inPassword),
		"out_user":     orNil(outUser),
		"out_password": orNil(outPassword),
	})
	return err
}

func (c *Client) VolumesAccessibleByInitiator(initiatorID string) ([]*types.Volume, error) {
	return listCall[*types.Volume](c, "volumes_accessible_by_initiator", map[string]any{"initiator_id": initiatorID})
}

func (c *Client) InitiatorsGrantedToVolume(volumeID string) ([]*types.Initiator, error) {
	return listCall[*types.Initiator](c, "initiators_granted_to_volume", map[string]any{"volume_id": volumeID})
}

func (c *Client) AccessGroups() ([]*types.AccessGroup, error) {
	return listCall[*types.AccessGroup](c, "access_group_list", nil)
}

func (c *Client) AccessGroupCreate(name, initiatorID string, initType types.InitiatorType, systemID string) (*types.AccessGroup, error) {
	got, err := c.tr.Call("access_group_create", map[string]any{
		"name":         name,
		"initiator_id": initiatorID,
		"id_type":      int32(initType),
		"system_id":    systemID,
	})
	if err != nil {
		return nil, err
	}
	return as[*types.AccessGroup]("access_group_create", got)
}

func (c *Client) AccessGroupDelete(groupID string) error {
	_, err := c.tr.Call("access_group_del", map[string]any{"group_id": groupID})
	return err
}

func (c *Client) AccessGroupAddInitiator(groupID, initiatorID string, initType types.InitiatorType) error {
	_, err := c.tr.Call("access_group_add_initiator", map[string]any{
		"group_id":     groupID,
		"initiator_id": initiatorID,
		"id_type":      int32(initType),
	})
	return err
}

func (c *Client) AccessGroupDelInitiator(groupID, initiatorID string) error {
	_, err := c.tr.Call("access_group_del_initiator", map[string]any{
		"group_id":     groupID,
		"initiator_id": initiatorID,
	})
	return err
}

func (c *Client) AccessGroupGrant(groupID, volumeID string, access types.AccessType) error {
	_, err := c.tr.Call("access_group_grant", map[string]any{
		"group_id":  groupID,
		"volume_id": volumeID,
		"access":    int32(access),
	})
	return err
}

func (c *Client) AccessGroupRevoke(groupID, volumeID string) error {
	_, err := c.tr.Call("access_group_revoke", map[string]any{
		"group_id":  groupID,
		"volume_id": volumeID,
	})
	return err
}

func (c *Client) VolumesAccessibleByAccessGroup(groupID string) ([]*types.Volume, error) {
	return listCall[*types.Volume](c, "volumes_accessible_by_access_group", map[string]any{"group_id": groupID})
}

func (c *Client) AccessGroupsGrantedToVolume(volumeID string) ([]*types.AccessGroup, error) {
	return listCall[*types.AccessGroup](c, "access_groups_granted_to_volume", map[string]any{"volume_id": volumeID})
}

// ---- file / NAS operations ----

func (c *Client) FileSystems() ([]*types.FileSystem, error) {
	return listCall[*types.FileSystem](c, "fs", nil)
}

func (c *Client) FsCreate(ctx context.Context, poolID, name string, sizeBytes uint64) (*types.FileSystem, error) {
	return pairCall[*types.FileSystem](c, ctx, "fs_create", map[string]any{
		"pool_id":    poolID,
		"name":       name,
		"size_bytes": sizeBytes,
	})
}

func (c *Client) FsDelete(ctx context.Context, fsID string) error {
	return c.jobCall(ctx, "fs_delete", map[string]any{"fs_id": fsID})
}

func (c *Client) FsResize(ctx context.Context, fsID string, newSizeBytes uint64) (*types.FileSystem, error) {
	return pairCall[*types.FileSystem](c, ctx, "fs_resize", map[string]any{
		"fs_id":          fsID,
		"new_size_bytes": newSizeBytes,
	})
}

func (c *Client) FsClone(ctx context.Context, srcFsID, destName, snapshotID string) (*types.FileSystem, error) {
	return pairCall[*types.FileSystem](c, ctx, "fs_clone", map[string]any{
		"src_fs_id":    srcFsID,
		"dest_fs_name": destName,
		"snapshot_id":  orNil(snapshotID),
	})
}

func (c *Client) FileClone(ctx context.Context, fsID, srcFileName, destFileName, snapshotID string) error {
	return c.jobCall(ctx, "file_clone", map[string]any{
		"fs_id":          fsID,
		"src_file_name":  srcFileName,
		"dest_file_name": destFileName,
		"snapshot_id":    orNil(snapshotID),
	})
}

func (c *Client) FsChildDependency(fsID string, files []string) (bool, error) {
	got, err := c.tr.Call("fs_child_dependency", map[string]any{"fs_id": fsID, "files": files})
	if err != nil {
		return false, err
	}
	b, ok := got.(bool)
	if !ok {
		return false, badReply("fs_child_dependency", got)
	}
	return b, nil
}

func (c *Client) FsChildDependencyRm(ctx context.Context, fsID string, files []string) error {
	return c.jobCall(ctx, "fs_child_dependency_rm", map[string]any{"fs_id": fsID, "files": files})
}

func (c *Client) FsSnapshots(fsID string) ([]*types.FsSnapshot, error) {
	return listCall[*types.FsSnapshot](c, "fs_snapshots", map[string]any{"fs_id": fsID})
}

func (c *Client) FsSnapshotCreate(ctx context.Context, fsID, name string, files []string) (*types.FsSnapshot, error) {
	return pairCall[*types.FsSnapshot](c, ctx, "fs_snapshot_create", map[string]any{
		"fs_id":         fsID,
		"snapshot_name": name,
		"files":         files,
	})
}

func (c *Client) FsSnapshotDelete(ctx context.Context, fsID, snapshotID string) error {
	return c.jobCall(ctx, "fs_snapshot_delete", map[string]any{
		"fs_id":       fsID,
		"snapshot_id": snapshotID,
	})
}

func (c *Client) FsSnapshotRevert(ctx context.Context, fsID, snapshotID string, files, restoreFiles []string, allFiles bool) error {
	return c.jobCall(ctx, "fs_snapshot_revert", map[string]any{
		"fs_id":         fsID,
		"snapshot_id":   snapshotID,
		"files":         files,
		"restore_files": restoreFiles,
		"all_files":     allFiles,
	})
}

func (c *Client) ExportAuthTypes() ([]string, error) {
	got, err := c.tr.Call("export_auth", nil)
	if err != nil {
		return nil, err
	}
	list, ok := got.([]any)
	if !ok {
		return nil, badReply("export_auth", got)
	}
	out := make([]string, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, badReply("export_auth", got)
		}
		out[i] = s
	}
	return out, nil
}

func (c *Client) Exports() ([]*types.NfsExport, error) {
	return listCall[*types.NfsExport](c, "exports", nil)
}

func (c *Client) ExportFs(fsID, exportPath string, root, rw, ro []string, anonUID, anonGID int64, authType, options string) (*types.NfsExport, error) {
	got, err := c.tr.Call("export_fs", map[string]any{
		"fs_id":       fsID,
		"export_path": exportPath,
		"root_list":   root,
		"rw_list":     rw,
		"ro_list":     ro,
		"anon_uid":    anonUID,
		"anon_gid":    anonGID,
		"auth_type":   orNil(authType),
		"options":     orNil(options),
	})
	if err != nil {
		return nil, err
	}
	return as[*types.NfsExport]("export_fs", got)
}

func (c *Client) ExportRemove(exportID string) error {
	_, err := c.tr.Call("export_remove", map[string]any{"export_id": exportID})
	return err
}

// ---- plumbing ----

// waitJob polls jobID to a terminal state, frees it, and returns the
// carried item. An errored job surfaces as the fault recorded at failure
// time; a canceled context surfaces as a timeout fault with the job left
// alive for another poller.
func (c *Client) waitJob(ctx context.Context, jobID string) (any, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		status, _, item, err := c.JobStatus(jobID)
		if err != nil {
			if status == jobs.StatusError {
				c.freeQuietly(jobID)
			}
			return nil, err
		}
		if status == jobs.StatusComplete {
			c.freeQuietly(jobID)
			return item, nil
		}
		select {
		case <-ctx.Done():
			return nil, fault.Newf(fault.ErrTimeout, "gave up waiting on job %s: %v", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) freeQuietly(jobID string) {
	if err := c.JobFree(jobID); err != nil {
		c.log.Warn().Err(err).Str("job", jobID).Msg("job_free failed")
	}
}

// jobCall runs a void mutation that may defer to a job.
func (c *Client) jobCall(ctx context.Context, method string, params map[string]any) error {
	got, err := c.tr.Call(method, params)
	if err != nil {
		return err
	}
	if got == nil {
		return nil
	}
	jobID, ok := got.(string)
	if !ok {
		return badReply(method, got)
	}
	_, err = c.waitJob(ctx, jobID)
	return err
}

// pairCall runs a value-bearing mutation: the reply is a two-slot pair
// with either a job handle or the finished value.
func pairCall[T any](c *Client, ctx context.Context, method string, params map[string]any) (T, error) {
	var zero T
	got, err := c.tr.Call(method, params)
	if err != nil {
		return zero, err
	}
	pair, ok := got.([]any)
	if !ok || len(pair) != 2 {
		return zero, badReply(method, got)
	}
	if pair[0] != nil {
		jobID, ok := pair[0].(string)
		if !ok {
			return zero, badReply(method, got)
		}
		item, err := c.waitJob(ctx, jobID)
		if err != nil {
			return zero, err
		}
		return as[T](method, item)
	}
	return as[T](method, pair[1])
}

func listCall[T any](c *Client, method string, params map[string]any) ([]T, error) {
	got, err := c.tr.Call(method, params)
	if err != nil {
		return nil, err
	}
	list, ok := got.([]any)
	if !ok {
		return nil, badReply(method, got)
	}
	out := make([]T, len(list))
	for i, v := range list {
		rec, ok := v.(T)
		if !ok {
			return nil, badReply(method, v)
		}
		out[i] = rec
	}
	return out, nil
}

func as[T any](method string, v any) (T, error) {
	rec, ok := v.(T)
	if !ok {
		var zero T
		return zero, badReply(method, v)
	}
	return rec, nil
}

func badReply(method string, got any) *fault.Error {
	return fault.Newf(fault.ErrTransport, "%s: unexpected reply shape %T", method, got)
}

// faultFromItem rebuilds the fault an errored job recorded, carried in the
// status triple's item slot.
func faultFromItem(item any) *fault.Error {
	detail, ok := item.(map[string]any)
	if !ok {
		return fault.New(fault.ErrPluginFailure, "job failed without detail")
	}
	fe := &fault.Error{Code: fault.ErrPluginFailure, Message: "job failed"}
	if n, ok := detail["code"].(json.Number); ok {
		if code, err := n.Int64(); err == nil {
			fe.Code = int(code)
		}
	}
	if msg, ok := detail["message"].(string); ok {
		fe.Message = msg
	}
	fe.Data = detail["data"]
	return fe
}

func intSlot(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fault.Newf(fault.ErrTransport, "numeric slot is %T", v)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return int(i), nil
}

// orNil maps "" to JSON null for optional string parameters.
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package plugin

import (
	"encoding/json"
	"strconv"

	"stormgmt/codec"
	"stormgmt/fault"
	"stormgmt/types"
)

// args is a decoded request parameter object. Accessors convert the JSON
// tree into the shapes handlers need, failing with invalid-argument faults
// so a sloppy client can never crash the dispatch loop.
type args map[string]any

func decodeArgs(params json.RawMessage) (args, *fault.Error) {
	if len(params) == 0 {
		return args{}, nil
	}
	v, err := codec.Decode(params)
	if err != nil {
		return nil, fault.Newf(fault.ErrInvalidArgument, "malformed params: %v", err)
	}
	switch tree := v.(type) {
	case nil:
		return args{}, nil
	case map[string]any:
		return args(tree), nil
	default:
		return nil, fault.Newf(fault.ErrInvalidArgument, "params must be an object, got %T", v)
	}
}

func missing(key string) *fault.Error {
	return fault.Newf(fault.ErrInvalidArgument, "missing required argument %q", key)
}

func wrongType(key string, v any) *fault.Error {
	return fault.Newf(fault.ErrInvalidArgument, "argument %q has unexpected type %T", key, v)
}

func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", missing(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, v)
	}
	return s, nil
}

// optStr returns "" for a missing or null key.
func (a args) optStr(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, v)
	}
	return s, nil
}

func (a args) number(key string) (json.Number, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", missing(key)
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", wrongType(key, v)
	}
	return n, nil
}

func (a args) u64(key string) (uint64, error) {
	n, err := a.number(key)
	if err != nil {
		return 0, err
	}
	u, perr := strconv.ParseUint(n.String(), 10, 64)
	if perr != nil {
		return 0, fault.Newf(fault.ErrInvalidArgument, "argument %q: %v", key, perr)
	}
	return u, nil
}

func (a args) u32(key string) (uint32, error) {
	n, err := a.number(key)
	if err != nil {
		return 0, err
	}
	u, perr := strconv.ParseUint(n.String(), 10, 32)
	if perr != nil {
		return 0, fault.Newf(fault.ErrInvalidArgument, "argument %q: %v", key, perr)
	}
	return uint32(u), nil
}

func (a args) i64(key string) (int64, error) {
	n, err := a.number(key)
	if err != nil {
		return 0, err
	}
	i, perr := n.Int64()
	if perr != nil {
		return 0, fault.Newf(fault.ErrInvalidArgument, "argument %q: %v", key, perr)
	}
	return i, nil
}

func (a args) i32(key string) (int32, error) {
	i, err := a.i64(key)
	if err != nil {
		return 0, err
	}
	return int32(i), nil
}

func (a args) boolean(key string) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return false, missing(key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(key, v)
	}
	return b, nil
}

// strs returns nil for a missing or null key; the operations taking string
// lists all treat null as "not specified".
func (a args) strs(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, wrongType(key, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, wrongType(key, item)
		}
		out[i] = s
	}
	return out, nil
}

func (a args) blockRanges(key string) ([]*types.BlockRange, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, missing(key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, wrongType(key, v)
	}
	out := make([]*types.BlockRange, len(list))
	for i, item := range list {
		br, ok := item.(*types.BlockRange)
		if !ok {
			return nil, wrongType(key, item)
		}
		out[i] = br
	}
	return out, nil
}

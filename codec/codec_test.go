package codec_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"stormgmt/codec"
	"stormgmt/types"
)

func TestScalarRoundTrip(t *testing.T) {
	cases := []any{nil, true, "a string with {}:\"\"", json.Number("42")}
	for _, in := range cases {
		data, err := codec.Encode(in)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", in, err)
		}
		out, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", data, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Errorf("round trip: got %#v, want %#v", out, in)
		}
	}
}

func TestLargeNumbersKeepPrecision(t *testing.T) {
	// 2^63 - 1 does not survive a float64 round trip; json.Number must.
	data, err := codec.Encode(map[string]any{"size": uint64(9223372036854775807)})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m := out.(map[string]any)
	if m["size"].(json.Number).String() != "9223372036854775807" {
		t.Errorf("precision lost: %v", m["size"])
	}
}

func TestRecordRoundTrip(t *testing.T) {
	vol := &types.Volume{
		ID:          "VOL1",
		Name:        "db01",
		VPD83:       "600508b1001c79ade5",
		BlockSize:   512,
		NumOfBlocks: 1 << 31,
		SystemID:    "sim-1",
		PoolID:      "POOL1",
	}

	data, err := codec.Encode(vol)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// The wire object must carry the discriminator.
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal wire form: %v", err)
	}
	if m["class"] != "Volume" {
		t.Fatalf("missing class tag, got %v", m["class"])
	}

	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := out.(*types.Volume)
	if !ok {
		t.Fatalf("decoded as %T, want *types.Volume", out)
	}
	if !reflect.DeepEqual(got, vol) {
		t.Errorf("record round trip: got %+v, want %+v", got, vol)
	}
}

func TestNestedRecordsInSlicesAndMaps(t *testing.T) {
	pools := []*types.Pool{
		{ID: "P1", Name: "a", TotalSpace: 100, FreeSpace: 50, SystemID: "s"},
		{ID: "P2", Name: "b", TotalSpace: 200, FreeSpace: 75, SystemID: "s"},
	}
	data, err := codec.Encode(map[string]any{"pools": pools})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	list := out.(map[string]any)["pools"].([]any)
	if len(list) != 2 {
		t.Fatalf("got %d pools, want 2", len(list))
	}
	p := list[1].(*types.Pool)
	if p.ID != "P2" || p.FreeSpace != 75 {
		t.Errorf("nested record mangled: %+v", p)
	}
}

func TestUnknownClassPassesThrough(t *testing.T) {
	wire := `{"class":"VendorWidget","id":"W1","spin":9}`
	out, err := codec.Decode([]byte(wire))
	if err != nil {
		t.Fatalf("unknown class must not fail decode: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("decoded as %T, want map passthrough", out)
	}
	if m["class"] != "VendorWidget" || m["id"] != "W1" {
		t.Errorf("passthrough lost fields: %#v", m)
	}
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	caps := types.NewCapabilities().Set(types.CapVolumes, types.CapVolumeCreate, types.CapFsCreate)
	data, err := codec.Encode(caps)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := out.(*types.Capabilities)
	if !ok {
		t.Fatalf("decoded as %T, want *types.Capabilities", out)
	}
	for _, op := range []types.Capability{types.CapVolumes, types.CapVolumeCreate, types.CapFsCreate} {
		if !got.Supported(op) {
			t.Errorf("capability %d lost in round trip", op)
		}
	}
	if got.Supported(types.CapVolumeDelete) {
		t.Errorf("capability %d set spuriously", types.CapVolumeDelete)
	}
}

func TestNilSliceEncodesAsEmptyList(t *testing.T) {
	var vols []*types.Volume
	data, err := codec.Encode(vols)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("nil slice: got %s, want []", data)
	}
}

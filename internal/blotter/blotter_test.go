package blotter

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testFile builds a small but representative save: two component types,
// a parented component with pegs and custom data, and one wire.
func testFile(version uint8, saveType SaveType) *File {
	f := &File{
		SaveVersion: version,
		GameVersion: [4]int32{0, 91, 0, 510},
		SaveType:    saveType,
		ComponentTypes: []ComponentType{
			{NumericID: 0, TextID: "MHG.CircuitBoard"},
			{NumericID: 9, TextID: "MHG.Delayer"},
		},
		Components: []Component{
			{
				Address:    1,
				Parent:     0,
				TypeID:     0,
				Position:   [3]float32{0, 0.25, 0},
				Rotation:   [4]float32{0, 0, 0, 1},
				Inputs:     []Input{},
				Outputs:    []Output{},
				CustomData: []byte{51, 51, 51, 4, 0, 0, 0, 2, 0, 0, 0},
			},
			{
				Address:    2,
				Parent:     1,
				TypeID:     9,
				Position:   [3]float32{0.5, 0.25, 1.5},
				Rotation:   [4]float32{0, 1, 0, 0},
				Inputs:     []Input{{CircuitStateID: 1}},
				Outputs:    []Output{{CircuitStateID: 2}},
				CustomData: []byte{0, 0, 0, 0, 10, 0, 0, 0},
			},
		},
		Wires: []Wire{
			{
				StartPeg:       PegAddress{IsInput: false, ComponentAddress: 2, PegIndex: 0},
				EndPeg:         PegAddress{IsInput: true, ComponentAddress: 2, PegIndex: 0},
				CircuitStateID: 2,
				Rotation:       0,
			},
		},
	}
	switch saveType {
	case SaveTypeWorld:
		f.CircuitStates.WorldStates = []byte{0b00000110}
	case SaveTypeSubassembly:
		f.CircuitStates.SubassemblyOnStates = []int32{1, 2}
	}
	return f
}

func roundTrip(t *testing.T, f *File) *File {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return got
}

func TestRoundTripWorldFixedPositions(t *testing.T) {
	want := testFile(SaveVersionFixedPositions, SaveTypeWorld)
	got := roundTrip(t, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripWorldFloatPositions(t *testing.T) {
	want := testFile(SaveVersionFloatPositions, SaveTypeWorld)
	got := roundTrip(t, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripSubassembly(t *testing.T) {
	want := testFile(SaveVersionFixedPositions, SaveTypeSubassembly)
	got := roundTrip(t, want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestEmptyWorldBytes pins the exact encoding of a minimal world save so
// format drift shows up as a byte-level diff.
func TestEmptyWorldBytes(t *testing.T) {
	f := &File{
		SaveVersion: SaveVersionFixedPositions,
		SaveType:    SaveTypeWorld,
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var want bytes.Buffer
	want.WriteString(MagicHeader)
	want.WriteByte(SaveVersionFixedPositions)
	want.Write(make([]byte, 16)) // game version 0.0.0.0
	want.WriteByte(byte(SaveTypeWorld))
	want.Write(make([]byte, 4)) // component count
	want.Write(make([]byte, 4)) // wire count
	want.Write(make([]byte, 4)) // component type count
	want.Write(make([]byte, 4)) // circuit state byte count
	want.WriteString(MagicFooter)

	if !bytes.Equal(buf.Bytes(), want.Bytes()) {
		t.Errorf("encoding mismatch:\n got %x\nwant %x", buf.Bytes(), want.Bytes())
	}
}

func TestFixedPositionEncoding(t *testing.T) {
	f := &File{
		SaveVersion: SaveVersionFixedPositions,
		SaveType:    SaveTypeWorld,
		Components: []Component{{
			Address:  1,
			Position: [3]float32{0.15, 0.9, -0.45},
			Rotation: [4]float32{0, 0, 0, 1},
		}},
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Position starts after header(16) + version(1) + game version(16) +
	// save type(1) + counts(3*4) + component address/parent/type(10).
	off := 16 + 1 + 16 + 1 + 12 + 10
	raw := buf.Bytes()[off : off+12]
	wantMillis := []int32{150, 900, -450}
	for i, want := range wantMillis {
		got := int32(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
		if got != want {
			t.Errorf("axis %d: expected %d thousandths, got %d", i, want, got)
		}
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(strings.NewReader("Logic World rave....................."))
	if err == nil || !strings.Contains(err.Error(), "bad header magic") {
		t.Fatalf("expected bad header magic error, got %v", err)
	}
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(MagicHeader)
	buf.WriteByte(99)
	_, err := Read(&buf)
	if err == nil || !strings.Contains(err.Error(), "unsupported save format version 99") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}

func TestReadRejectsTruncated(t *testing.T) {
	f := testFile(SaveVersionFixedPositions, SaveTypeWorld)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	full := buf.Bytes()

	// Every strict prefix must fail without panicking.
	for n := 0; n < len(full); n++ {
		if _, err := Read(bytes.NewReader(full[:n])); err == nil {
			t.Fatalf("expected error reading %d of %d bytes", n, len(full))
		}
	}
}

func TestReadRejectsNegativeCount(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(MagicHeader)
	buf.WriteByte(SaveVersionFixedPositions)
	buf.Write(make([]byte, 16))
	buf.WriteByte(byte(SaveTypeWorld))
	var neg [4]byte
	binary.LittleEndian.PutUint32(neg[:], uint32(0xFFFFFFFF)) // -1 components
	buf.Write(neg[:])

	_, err := Read(&buf)
	if err == nil || !strings.Contains(err.Error(), "negative component count") {
		t.Fatalf("expected negative count error, got %v", err)
	}
}

func TestReadRejectsBadFooter(t *testing.T) {
	f := &File{SaveVersion: SaveVersionFixedPositions, SaveType: SaveTypeWorld}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(raw))
	if err == nil || !strings.Contains(err.Error(), "bad footer magic") {
		t.Fatalf("expected bad footer magic error, got %v", err)
	}
}

func TestTypeID(t *testing.T) {
	f := testFile(SaveVersionFixedPositions, SaveTypeWorld)
	id, ok := f.TypeID("MHG.Delayer")
	if !ok || id != 9 {
		t.Errorf("TypeID(MHG.Delayer) = %d, %v; want 9, true", id, ok)
	}
	if _, ok := f.TypeID("MHG.Inverter"); ok {
		t.Error("TypeID(MHG.Inverter) should not resolve")
	}
}

func TestMaxima(t *testing.T) {
	f := testFile(SaveVersionFixedPositions, SaveTypeWorld)
	if got := f.MaxAddress(); got != 2 {
		t.Errorf("MaxAddress = %d, want 2", got)
	}
	if got := f.MaxCircuitStateID(); got != 2 {
		t.Errorf("MaxCircuitStateID = %d, want 2", got)
	}

	empty := &File{SaveVersion: SaveVersionFixedPositions, SaveType: SaveTypeWorld}
	if got := empty.MaxAddress(); got != 0 {
		t.Errorf("empty MaxAddress = %d, want 0", got)
	}
	if got := empty.MaxCircuitStateID(); got != 0 {
		t.Errorf("empty MaxCircuitStateID = %d, want 0", got)
	}
}

func TestGrowWorldStates(t *testing.T) {
	f := &File{SaveVersion: SaveVersionFixedPositions, SaveType: SaveTypeWorld}
	f.GrowWorldStates(17)
	if got := len(f.CircuitStates.WorldStates); got != 3 {
		t.Errorf("17 states need 3 bytes, got %d", got)
	}

	// Never shrinks.
	f.GrowWorldStates(1)
	if got := len(f.CircuitStates.WorldStates); got != 3 {
		t.Errorf("GrowWorldStates shrank bitfield to %d bytes", got)
	}

	// Subassemblies have no bitfield to grow.
	sub := &File{SaveVersion: SaveVersionFixedPositions, SaveType: SaveTypeSubassembly}
	sub.GrowWorldStates(100)
	if sub.CircuitStates.WorldStates != nil {
		t.Error("GrowWorldStates touched a subassembly save")
	}
}

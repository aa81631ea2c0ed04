// Package blotter reads and writes Logic World save files.
//
// The save format is a little-endian binary container: a 16-byte magic
// header, a format version byte, the game version, a component type
// table mapping numeric ids to text ids, the component and wire records,
// the circuit state block, and a 16-byte footer. Format versions 5 and 6
// are supported; the only difference between them is the position
// encoding (version 5 stores raw float32 coordinates, version 6 stores
// int32 thousandths of a world unit).
package blotter

// Save file framing constants.
const (
	MagicHeader = "Logic World save"
	MagicFooter = "redstone sux lol"

	// Supported save format versions.
	SaveVersionFloatPositions = 5 // positions stored as 3 x float32
	SaveVersionFixedPositions = 6 // positions stored as 3 x int32 thousandths

	// PositionScale converts between float coordinates and the fixed
	// point representation used by version 6 saves.
	PositionScale = 1000
)

// SaveType distinguishes world saves from subassembly saves. The two
// differ only in how circuit states are persisted.
type SaveType uint8

const (
	SaveTypeWorld       SaveType = 1
	SaveTypeSubassembly SaveType = 2
)

// ComponentType maps the numeric component id used in component records
// to the mod-qualified text id (for example "MHG.Delayer").
type ComponentType struct {
	NumericID uint16
	TextID    string
}

// Input is an input peg on a component. The circuit state id identifies
// the signal cluster the peg belongs to.
type Input struct {
	CircuitStateID int32
}

// Output is an output peg on a component.
type Output struct {
	CircuitStateID int32
}

// Component is a single placed object in the world.
type Component struct {
	Address  uint32     // unique component address, never 0
	Parent   uint32     // address of the parent component, 0 for top level
	TypeID   uint16     // numeric id into the component type table
	Position [3]float32 // position relative to the parent
	Rotation [4]float32 // rotation quaternion (x, y, z, w)
	Inputs   []Input
	Outputs  []Output

	// CustomData carries per-type opaque payloads (board dimensions,
	// delayer ticks, ...). nil means the record had no custom data,
	// which is distinct from an empty payload.
	CustomData []byte
}

// PegAddress identifies one peg of one component.
type PegAddress struct {
	IsInput          bool
	ComponentAddress uint32
	PegIndex         int32
}

// Wire connects two pegs and assigns them to a circuit state.
type Wire struct {
	StartPeg       PegAddress
	EndPeg         PegAddress
	CircuitStateID int32
	Rotation       float32
}

// CircuitStates holds the persisted signal state. World saves pack one
// bit per circuit state id; subassembly saves list the ids that are on.
type CircuitStates struct {
	WorldStates         []byte  // world saves: packed bitfield, LSB first
	SubassemblyOnStates []int32 // subassembly saves: ids currently on
}

// File is a fully decoded save file.
type File struct {
	SaveVersion    uint8
	GameVersion    [4]int32
	SaveType       SaveType
	ComponentTypes []ComponentType
	Components     []Component
	Wires          []Wire
	CircuitStates  CircuitStates
}

// TypeID looks up the numeric id for a text component id.
func (f *File) TypeID(textID string) (uint16, bool) {
	for _, ct := range f.ComponentTypes {
		if ct.TextID == textID {
			return ct.NumericID, true
		}
	}
	return 0, false
}

// MaxAddress returns the highest component address in use, or 0 for an
// empty save. New addresses should be allocated above this.
func (f *File) MaxAddress() uint32 {
	var max uint32
	for i := range f.Components {
		if f.Components[i].Address > max {
			max = f.Components[i].Address
		}
	}
	return max
}

// MaxCircuitStateID returns the highest circuit state id referenced by
// any peg, or 0 for a save with no pegs.
func (f *File) MaxCircuitStateID() int32 {
	var max int32
	for i := range f.Components {
		for _, in := range f.Components[i].Inputs {
			if in.CircuitStateID > max {
				max = in.CircuitStateID
			}
		}
		for _, out := range f.Components[i].Outputs {
			if out.CircuitStateID > max {
				max = out.CircuitStateID
			}
		}
	}
	return max
}

// GrowWorldStates extends the packed world state bitfield so it covers
// circuit state ids 0..n-1, filling new bytes with zero (all off).
// Subassembly saves are left untouched; their on-state list already
// describes every live state.
func (f *File) GrowWorldStates(n int) {
	if f.SaveType != SaveTypeWorld || n <= 0 {
		return
	}
	need := (n-1)/8 + 1
	for len(f.CircuitStates.WorldStates) < need {
		f.CircuitStates.WorldStates = append(f.CircuitStates.WorldStates, 0)
	}
}

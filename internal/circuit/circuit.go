// Package circuit turns a sequence of 1-bit frames into logic
// components appended to a save file.
//
// LAYOUT
//
// Each pixel row gets its own circuit board, stacked along the Y axis.
// Along each board runs a chain of timing delayers (two positions per
// frame: signal rise and fall). Each pixel column owns a signal net that
// ends in a front-facing socket; a 1-tick edge delayer is placed only at
// the positions where the pixel's 1-bit value changes between frames,
// tapping the row's timing chain and toggling the column net. Because a
// pixel that never changes costs nothing, the component count scales
// with inter-frame motion rather than with frames x pixels.
//
// CHUNKING
//
// A column net that spans the whole video would put thousands of pegs in
// one simulation cluster. Every ChunkInterval frames a 1-tick delayer is
// forced into every column net, splitting it into bounded chunks. The
// extra tick introduced by each chunking delayer is compensated by
// shortening the timing delayer just before the chunk position.
package circuit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/circuitreel/circuitreel/internal/blotter"
	"github.com/circuitreel/circuitreel/internal/frames"
)

// Component type text ids the injector requires in the save's type
// table.
const (
	TypeCircuitBoard = "MHG.CircuitBoard"
	TypeDelayer      = "MHG.Delayer"
	TypePeg          = "MHG.Peg"
	TypeSocket       = "MHG.ChubbySocket"
)

// Params tunes the injection. DefaultParams matches the reference
// layout; the zero value is not valid.
type Params struct {
	TimingTicks   uint32  // delay of each timing-chain delayer
	ChunkInterval int     // frames between forced net splits, 0 disables
	GridPitch     float32 // world units per grid cell
	BoardColor    [3]byte // RGB of the row boards
}

// DefaultParams returns the reference tuning: 10-tick timing delayers,
// a net split every 200 frames, the game's 0.3-unit grid and dark grey
// boards.
func DefaultParams() Params {
	return Params{
		TimingTicks:   10,
		ChunkInterval: 200,
		GridPitch:     0.30,
		BoardColor:    [3]byte{51, 51, 51},
	}
}

func (p Params) validate() error {
	if p.TimingTicks < 2 {
		return fmt.Errorf("timing ticks must be at least 2, got %d", p.TimingTicks)
	}
	if p.ChunkInterval < 0 {
		return fmt.Errorf("chunk interval must not be negative, got %d", p.ChunkInterval)
	}
	if p.GridPitch <= 0 {
		return fmt.Errorf("grid pitch must be positive, got %g", p.GridPitch)
	}
	return nil
}

// BitmapSource supplies thresholded frames. *frames.Source implements
// it; tests use in-memory fakes.
type BitmapSource interface {
	Count() int
	Size() (w, h int)
	Bitmap(i int) (*frames.Bitmap, error)
}

// FrameStats records what one frame added to the save.
type FrameStats struct {
	Index         int `json:"index"`
	ChangedPixels int `json:"changed_pixels"`
	Components    int `json:"components"`
	Wires         int `json:"wires"`
}

// Stats summarises a whole injection.
type Stats struct {
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	FrameCount int          `json:"frame_count"`
	Components int          `json:"components"`
	Wires      int          `json:"wires"`
	Edges      int          `json:"edges"` // total changed pixels across all frames
	Frames     []FrameStats `json:"frames"`
}

// Inject appends the video circuit to the save file. The file is
// modified in place; on error it must be discarded, not written back.
func Inject(file *blotter.File, src BitmapSource, params Params) (*Stats, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if src.Count() == 0 {
		return nil, fmt.Errorf("no frames to inject")
	}
	width, height := src.Size()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	boardType, err := requireType(file, TypeCircuitBoard)
	if err != nil {
		return nil, err
	}
	delayerType, err := requireType(file, TypeDelayer)
	if err != nil {
		return nil, err
	}
	pegType, err := requireType(file, TypePeg)
	if err != nil {
		return nil, err
	}
	socketType, err := requireType(file, TypeSocket)
	if err != nil {
		return nil, err
	}

	b := &builder{
		file:   file,
		params: params,
		width:  width,
		height: height,
		// Two timing positions per frame (rise + fall) plus the head.
		depth:       src.Count()*2 + 1,
		nextAddr:    file.MaxAddress(),
		nextState:   file.MaxCircuitStateID(),
		boardType:   boardType,
		delayerType: delayerType,
		pegType:     pegType,
		socketType:  socketType,
	}

	b.placeRowBoards()
	b.placeTimingChains()
	b.placeSockets()

	stats := &Stats{Width: width, Height: height, FrameCount: src.Count()}
	prev := frames.NewBitmap(width, height)
	for i := 0; i < src.Count(); i++ {
		cur, err := src.Bitmap(i)
		if err != nil {
			return nil, err
		}
		if cur.W != width || cur.H != height {
			return nil, fmt.Errorf("frame %d is %dx%d, expected %dx%d", i, cur.W, cur.H, width, height)
		}

		compBefore, wireBefore := len(file.Components), len(file.Wires)
		changed := b.injectFrame(i, prev, cur)

		stats.Frames = append(stats.Frames, FrameStats{
			Index:         i,
			ChangedPixels: changed,
			Components:    len(file.Components) - compBefore,
			Wires:         len(file.Wires) - wireBefore,
		})
		stats.Edges += changed
		prev = cur
	}

	// All new circuit states start off; the packed world bitfield just
	// has to be large enough to cover them.
	file.GrowWorldStates(int(b.nextState) + 1)

	stats.Components = b.componentsAdded
	stats.Wires = b.wiresAdded
	return stats, nil
}

func requireType(file *blotter.File, textID string) (uint16, error) {
	id, ok := file.TypeID(textID)
	if !ok {
		return 0, fmt.Errorf("save is missing component type %q; inject into a save created by a game version that registers it", textID)
	}
	return id, nil
}

type builder struct {
	file   *blotter.File
	params Params

	width, height, depth int

	nextAddr  uint32
	nextState int32

	boardType, delayerType, pegType, socketType uint16

	componentsAdded int
	wiresAdded      int

	rowBoards []uint32

	// Per row: the timing chain's circuit states (depth+1 of them) and
	// delayer addresses (depth of them).
	rowTimingStates [][]int32
	rowTimingChain  [][]uint32

	// Per pixel: the column net's current circuit state and the head peg
	// (or chunking delayer) the next edge wires into.
	colStates  [][]int32
	colHeadPeg [][]uint32
}

func (b *builder) addr() uint32 {
	b.nextAddr++
	return b.nextAddr
}

func (b *builder) state() int32 {
	b.nextState++
	return b.nextState
}

func (b *builder) addComponent(c blotter.Component) {
	b.file.Components = append(b.file.Components, c)
	b.componentsAdded++
}

func (b *builder) addWire(w blotter.Wire) {
	b.file.Wires = append(b.file.Wires, w)
	b.wiresAdded++
}

// delayerData encodes the delayer's custom payload: a u32 reserved field
// followed by the tick count.
func delayerData(ticks uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[4:], ticks)
	return data
}

// boardData encodes a circuit board's custom payload: RGB colour plus
// width and depth in grid cells.
func boardData(color [3]byte, width, depth int32) []byte {
	data := make([]byte, 11)
	copy(data[0:3], color[:])
	binary.LittleEndian.PutUint32(data[3:7], uint32(width))
	binary.LittleEndian.PutUint32(data[7:11], uint32(depth))
	return data
}

var (
	rotIdentity = [4]float32{0, 0, 0, 1}
	rotFlipY    = [4]float32{0, 1, 0, 0} // faces back along the boards
)

// snap quantizes a coordinate to the thousandths grid the fixed-point
// save format stores, so a written save decodes to exactly the
// positions that were placed.
func snap(v float32) float32 {
	return float32(math.Round(float64(v)*blotter.PositionScale)) / blotter.PositionScale
}

func pos(x, y, z float32) [3]float32 {
	return [3]float32{snap(x), snap(y), snap(z)}
}

// placeRowBoards creates one board per pixel row, stacked on Y. Board
// width leaves three cells per pixel column plus a margin cell for the
// timing chain.
func (b *builder) placeRowBoards() {
	pitch := b.params.GridPitch
	boardWidth := int32(1 + 3*b.width)
	boardDepth := int32(2 * b.depth)

	b.rowBoards = make([]uint32, b.height)
	for y := 0; y < b.height; y++ {
		addr := b.addr()
		b.rowBoards[y] = addr
		b.addComponent(blotter.Component{
			Address:    addr,
			Parent:     0,
			TypeID:     b.boardType,
			Position:   pos(0, float32(y)*3*pitch, 0),
			Rotation:   rotIdentity,
			Inputs:     []blotter.Input{},
			Outputs:    []blotter.Output{},
			CustomData: boardData(b.params.BoardColor, boardWidth, boardDepth),
		})
	}
}

// placeTimingChains lays one delayer chain per row along Z. Every
// (2*ChunkInterval)th position gives up one tick to compensate the extra
// tick a chunking delayer adds to the column nets at that point, keeping
// picture and clock in step.
func (b *builder) placeTimingChains() {
	pitch := b.params.GridPitch
	half := pitch / 2

	b.rowTimingStates = make([][]int32, b.height)
	b.rowTimingChain = make([][]uint32, b.height)

	compInterval := 0
	if b.params.ChunkInterval > 0 {
		compInterval = 2 * b.params.ChunkInterval
	}

	for y := 0; y < b.height; y++ {
		states := make([]int32, b.depth+1)
		for i := range states {
			states[i] = b.state()
		}
		chain := make([]uint32, b.depth)

		for z := 0; z < b.depth; z++ {
			ticks := b.params.TimingTicks
			if compInterval > 0 && (z+1)%compInterval == 0 {
				ticks--
			}

			addr := b.addr()
			chain[z] = addr
			b.addComponent(blotter.Component{
				Address:    addr,
				Parent:     b.rowBoards[y],
				TypeID:     b.delayerType,
				Position:   pos(half, half, float32(z)*2*pitch+half),
				Rotation:   rotIdentity,
				Inputs:     []blotter.Input{{CircuitStateID: states[z]}},
				Outputs:    []blotter.Output{{CircuitStateID: states[z+1]}},
				CustomData: delayerData(ticks),
			})
		}

		for z := 1; z < b.depth; z++ {
			b.addWire(blotter.Wire{
				StartPeg:       blotter.PegAddress{IsInput: false, ComponentAddress: chain[z-1], PegIndex: 0},
				EndPeg:         blotter.PegAddress{IsInput: true, ComponentAddress: chain[z], PegIndex: 0},
				CircuitStateID: states[z],
			})
		}

		b.rowTimingStates[y] = states
		b.rowTimingChain[y] = chain
	}
}

// placeSockets creates the per-pixel output sockets at the front of each
// row board and opens the column nets.
func (b *builder) placeSockets() {
	pitch := b.params.GridPitch
	half := pitch / 2

	b.colStates = make([][]int32, b.height)
	b.colHeadPeg = make([][]uint32, b.height)

	for y := 0; y < b.height; y++ {
		states := make([]int32, b.width)
		for x := range states {
			states[x] = b.state()
		}
		b.colStates[y] = states

		heads := make([]uint32, b.width)
		for x := 0; x < b.width; x++ {
			addr := b.addr()
			heads[x] = addr
			b.addComponent(blotter.Component{
				Address:  addr,
				Parent:   b.rowBoards[y],
				TypeID:   b.socketType,
				Position: pos(float32(x)*3*pitch+5*half, half, half),
				Rotation: rotFlipY,
				Inputs:   []blotter.Input{{CircuitStateID: states[x]}},
				Outputs:  []blotter.Output{},
			})
		}
		b.colHeadPeg[y] = heads
	}
}

// injectFrame adds the edge delayers for one frame and returns the
// number of changed pixels. prev and cur are in image coordinates; board
// rows count bottom-up, so row y reads image row height-1-y.
func (b *builder) injectFrame(frameIndex int, prev, cur *frames.Bitmap) int {
	pitch := b.params.GridPitch
	half := pitch / 2
	z := (frameIndex + 1) * 2

	atChunk := b.params.ChunkInterval > 0 && (frameIndex+1)%b.params.ChunkInterval == 0
	if atChunk {
		b.splitColumnNets(z)
	}

	changed := 0
	for y := 0; y < b.height; y++ {
		rowTap := b.rowTimingChain[y][z]
		imgY := b.height - 1 - y
		for x := 0; x < b.width; x++ {
			if cur.At(x, imgY) == prev.At(x, imgY) {
				continue
			}
			changed++

			edge := b.addr()
			b.addComponent(blotter.Component{
				Address:    edge,
				Parent:     b.rowBoards[y],
				TypeID:     b.delayerType,
				Position:   pos(float32(x)*3*pitch+3*half, half, float32(z)*2*pitch-half),
				Rotation:   rotFlipY,
				Inputs:     []blotter.Input{{CircuitStateID: b.rowTimingStates[y][z]}},
				Outputs:    []blotter.Output{{CircuitStateID: b.colStates[y][x]}},
				CustomData: delayerData(1),
			})

			// The chunking delayer doubles as this position's relay peg.
			var relay uint32
			if atChunk {
				relay = b.colHeadPeg[y][x]
			} else {
				relay = b.addr()
				b.addComponent(blotter.Component{
					Address:  relay,
					Parent:   b.rowBoards[y],
					TypeID:   b.pegType,
					Position: pos(float32(x)*3*pitch+5*half, half, float32(z)*2*pitch-3*half),
					Rotation: rotIdentity,
					Inputs:   []blotter.Input{{CircuitStateID: b.colStates[y][x]}},
					Outputs:  []blotter.Output{},
				})
			}

			// Tap the row timing chain.
			b.addWire(blotter.Wire{
				StartPeg:       blotter.PegAddress{IsInput: true, ComponentAddress: rowTap, PegIndex: 0},
				EndPeg:         blotter.PegAddress{IsInput: true, ComponentAddress: edge, PegIndex: 0},
				CircuitStateID: b.rowTimingStates[y][z],
			})

			// Toggle the column net through the relay.
			b.addWire(blotter.Wire{
				StartPeg:       blotter.PegAddress{IsInput: false, ComponentAddress: edge, PegIndex: 0},
				EndPeg:         blotter.PegAddress{IsInput: true, ComponentAddress: relay, PegIndex: 0},
				CircuitStateID: b.colStates[y][x],
			})

			// Chain the relay toward the column head unless the chunking
			// delayer already carries that link.
			if !atChunk {
				b.addWire(blotter.Wire{
					StartPeg:       blotter.PegAddress{IsInput: true, ComponentAddress: relay, PegIndex: 0},
					EndPeg:         blotter.PegAddress{IsInput: true, ComponentAddress: b.colHeadPeg[y][x], PegIndex: 0},
					CircuitStateID: b.colStates[y][x],
				})
			}

			rowTap = edge
			b.colHeadPeg[y][x] = relay
		}
	}
	return changed
}

// splitColumnNets inserts a 1-tick delayer into every column net at
// timing position z, giving each column a fresh circuit state so the
// accumulated net is capped.
func (b *builder) splitColumnNets(z int) {
	pitch := b.params.GridPitch
	half := pitch / 2

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			chunk := b.addr()
			fresh := b.state()
			b.addComponent(blotter.Component{
				Address:    chunk,
				Parent:     b.rowBoards[y],
				TypeID:     b.delayerType,
				Position:   pos(float32(x)*3*pitch+5*half, half, float32(z)*2*pitch-3*half),
				Rotation:   rotFlipY,
				Inputs:     []blotter.Input{{CircuitStateID: fresh}},
				Outputs:    []blotter.Output{{CircuitStateID: b.colStates[y][x]}},
				CustomData: delayerData(1),
			})
			b.addWire(blotter.Wire{
				StartPeg:       blotter.PegAddress{IsInput: false, ComponentAddress: chunk, PegIndex: 0},
				EndPeg:         blotter.PegAddress{IsInput: true, ComponentAddress: b.colHeadPeg[y][x], PegIndex: 0},
				CircuitStateID: b.colStates[y][x],
			})
			b.colHeadPeg[y][x] = chunk
			b.colStates[y][x] = fresh
		}
	}
}

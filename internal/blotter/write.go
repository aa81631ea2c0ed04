package blotter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write encodes the save file. Counts are taken from the slice lengths,
// so a file modified in memory serializes consistently without any
// header fixup by the caller.
func (f *File) Write(w io.Writer) error {
	if f.SaveVersion != SaveVersionFloatPositions && f.SaveVersion != SaveVersionFixedPositions {
		return fmt.Errorf("unsupported save format version %d", f.SaveVersion)
	}
	if f.SaveType != SaveTypeWorld && f.SaveType != SaveTypeSubassembly {
		return fmt.Errorf("unknown save type %d", f.SaveType)
	}

	e := &encoder{w: bufio.NewWriter(w)}

	e.bytes([]byte(MagicHeader))
	e.u8(f.SaveVersion)
	for _, v := range f.GameVersion {
		e.i32(v)
	}
	e.u8(uint8(f.SaveType))
	e.i32(int32(len(f.Components)))
	e.i32(int32(len(f.Wires)))

	e.i32(int32(len(f.ComponentTypes)))
	for _, ct := range f.ComponentTypes {
		e.u16(ct.NumericID)
		e.i32(int32(len(ct.TextID)))
		e.bytes([]byte(ct.TextID))
	}

	for i := range f.Components {
		e.component(&f.Components[i], f.SaveVersion)
	}
	for i := range f.Wires {
		e.wire(&f.Wires[i])
	}

	switch f.SaveType {
	case SaveTypeWorld:
		e.i32(int32(len(f.CircuitStates.WorldStates)))
		e.bytes(f.CircuitStates.WorldStates)
	case SaveTypeSubassembly:
		e.i32(int32(len(f.CircuitStates.SubassemblyOnStates)))
		for _, id := range f.CircuitStates.SubassemblyOnStates {
			e.i32(id)
		}
	}

	e.bytes([]byte(MagicFooter))

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// encoder batches little-endian writes and keeps the first error, so the
// happy path reads as a straight transcription of the format.
type encoder struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

func (e *encoder) bytes(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) u8(v uint8) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(v)
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	e.bytes(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.bytes(e.buf[:4])
}

func (e *encoder) i32(v int32) { e.u32(uint32(v)) }

func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }

func (e *encoder) position(pos [3]float32, saveVersion uint8) {
	for _, p := range pos {
		switch saveVersion {
		case SaveVersionFloatPositions:
			e.f32(p)
		default:
			e.i32(int32(math.Round(float64(p) * PositionScale)))
		}
	}
}

func (e *encoder) component(c *Component, saveVersion uint8) {
	e.u32(c.Address)
	e.u32(c.Parent)
	e.u16(c.TypeID)
	e.position(c.Position, saveVersion)
	for _, r := range c.Rotation {
		e.f32(r)
	}
	e.i32(int32(len(c.Inputs)))
	for _, in := range c.Inputs {
		e.i32(in.CircuitStateID)
	}
	e.i32(int32(len(c.Outputs)))
	for _, out := range c.Outputs {
		e.i32(out.CircuitStateID)
	}
	if c.CustomData == nil {
		e.i32(-1)
	} else {
		e.i32(int32(len(c.CustomData)))
		e.bytes(c.CustomData)
	}
}

func (e *encoder) pegAddress(p *PegAddress) {
	if p.IsInput {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.u32(p.ComponentAddress)
	e.i32(p.PegIndex)
}

func (e *encoder) wire(w *Wire) {
	e.pegAddress(&w.StartPeg)
	e.pegAddress(&w.EndPeg)
	e.i32(w.CircuitStateID)
	e.f32(w.Rotation)
}

package blotter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Sanity bounds for length-prefixed fields. The format carries signed
// 32-bit counts; anything outside these limits means a corrupt or
// hostile file and is rejected before allocation.
const (
	maxTextIDLen     = 1 << 16
	maxCustomDataLen = 1 << 24
)

// Read decodes a complete save file. It fails with a descriptive error
// on bad magic bytes, unsupported format versions, counts that do not
// fit the remaining data, and truncated input.
func Read(r io.Reader) (*File, error) {
	d := &decoder{r: bufio.NewReader(r)}

	magic := make([]byte, len(MagicHeader))
	if err := d.bytes(magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(magic) != MagicHeader {
		return nil, fmt.Errorf("bad header magic: expected %q, got %q", MagicHeader, magic)
	}

	f := &File{}
	var err error
	if f.SaveVersion, err = d.u8(); err != nil {
		return nil, fmt.Errorf("read save version: %w", err)
	}
	if f.SaveVersion != SaveVersionFloatPositions && f.SaveVersion != SaveVersionFixedPositions {
		return nil, fmt.Errorf("unsupported save format version %d (supported: %d, %d)",
			f.SaveVersion, SaveVersionFloatPositions, SaveVersionFixedPositions)
	}
	for i := range f.GameVersion {
		if f.GameVersion[i], err = d.i32(); err != nil {
			return nil, fmt.Errorf("read game version: %w", err)
		}
	}

	st, err := d.u8()
	if err != nil {
		return nil, fmt.Errorf("read save type: %w", err)
	}
	f.SaveType = SaveType(st)
	if f.SaveType != SaveTypeWorld && f.SaveType != SaveTypeSubassembly {
		return nil, fmt.Errorf("unknown save type %d", st)
	}

	componentCount, err := d.count("component count")
	if err != nil {
		return nil, err
	}
	wireCount, err := d.count("wire count")
	if err != nil {
		return nil, err
	}

	if f.ComponentTypes, err = d.componentTypes(); err != nil {
		return nil, err
	}

	f.Components = make([]Component, 0, componentCount)
	for i := 0; i < componentCount; i++ {
		c, err := d.component(f.SaveVersion)
		if err != nil {
			return nil, fmt.Errorf("read component %d/%d: %w", i, componentCount, err)
		}
		f.Components = append(f.Components, c)
	}

	f.Wires = make([]Wire, 0, wireCount)
	for i := 0; i < wireCount; i++ {
		w, err := d.wire()
		if err != nil {
			return nil, fmt.Errorf("read wire %d/%d: %w", i, wireCount, err)
		}
		f.Wires = append(f.Wires, w)
	}

	if f.CircuitStates, err = d.circuitStates(f.SaveType); err != nil {
		return nil, err
	}

	footer := make([]byte, len(MagicFooter))
	if err := d.bytes(footer); err != nil {
		return nil, fmt.Errorf("read footer: %w", err)
	}
	if string(footer) != MagicFooter {
		return nil, fmt.Errorf("bad footer magic: expected %q, got %q", MagicFooter, footer)
	}

	return f, nil
}

type decoder struct {
	r   *bufio.Reader
	buf [8]byte
}

func (d *decoder) bytes(p []byte) error {
	_, err := io.ReadFull(d.r, p)
	return err
}

func (d *decoder) u8() (uint8, error) {
	if err := d.bytes(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *decoder) u16() (uint16, error) {
	if err := d.bytes(d.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.buf[:2]), nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.bytes(d.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.buf[:4]), nil
}

func (d *decoder) i32() (int32, error) {
	v, err := d.u32()
	return int32(v), err
}

func (d *decoder) f32() (float32, error) {
	v, err := d.u32()
	return math.Float32frombits(v), err
}

// count reads a non-negative int32 length prefix.
func (d *decoder) count(field string) (int, error) {
	v, err := d.i32()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", field, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative %s %d", field, v)
	}
	return int(v), nil
}

func (d *decoder) componentTypes() ([]ComponentType, error) {
	n, err := d.count("component type count")
	if err != nil {
		return nil, err
	}
	types := make([]ComponentType, 0, n)
	for i := 0; i < n; i++ {
		var ct ComponentType
		if ct.NumericID, err = d.u16(); err != nil {
			return nil, fmt.Errorf("read component type %d: %w", i, err)
		}
		textLen, err := d.count("component type text id length")
		if err != nil {
			return nil, err
		}
		if textLen > maxTextIDLen {
			return nil, fmt.Errorf("component type text id length %d exceeds limit %d", textLen, maxTextIDLen)
		}
		text := make([]byte, textLen)
		if err := d.bytes(text); err != nil {
			return nil, fmt.Errorf("read component type %d text id: %w", i, err)
		}
		ct.TextID = string(text)
		types = append(types, ct)
	}
	return types, nil
}

func (d *decoder) position(saveVersion uint8) ([3]float32, error) {
	var pos [3]float32
	for i := range pos {
		switch saveVersion {
		case SaveVersionFloatPositions:
			v, err := d.f32()
			if err != nil {
				return pos, err
			}
			pos[i] = v
		default:
			v, err := d.i32()
			if err != nil {
				return pos, err
			}
			pos[i] = float32(v) / PositionScale
		}
	}
	return pos, nil
}

func (d *decoder) component(saveVersion uint8) (Component, error) {
	var c Component
	var err error
	if c.Address, err = d.u32(); err != nil {
		return c, fmt.Errorf("address: %w", err)
	}
	if c.Parent, err = d.u32(); err != nil {
		return c, fmt.Errorf("parent: %w", err)
	}
	if c.TypeID, err = d.u16(); err != nil {
		return c, fmt.Errorf("type id: %w", err)
	}
	if c.Position, err = d.position(saveVersion); err != nil {
		return c, fmt.Errorf("position: %w", err)
	}
	for i := range c.Rotation {
		if c.Rotation[i], err = d.f32(); err != nil {
			return c, fmt.Errorf("rotation: %w", err)
		}
	}

	inputCount, err := d.count("input count")
	if err != nil {
		return c, err
	}
	c.Inputs = make([]Input, 0, inputCount)
	for i := 0; i < inputCount; i++ {
		id, err := d.i32()
		if err != nil {
			return c, fmt.Errorf("input %d: %w", i, err)
		}
		c.Inputs = append(c.Inputs, Input{CircuitStateID: id})
	}

	outputCount, err := d.count("output count")
	if err != nil {
		return c, err
	}
	c.Outputs = make([]Output, 0, outputCount)
	for i := 0; i < outputCount; i++ {
		id, err := d.i32()
		if err != nil {
			return c, fmt.Errorf("output %d: %w", i, err)
		}
		c.Outputs = append(c.Outputs, Output{CircuitStateID: id})
	}

	dataLen, err := d.i32()
	if err != nil {
		return c, fmt.Errorf("custom data length: %w", err)
	}
	switch {
	case dataLen < -1:
		return c, fmt.Errorf("invalid custom data length %d", dataLen)
	case dataLen == -1:
		c.CustomData = nil
	case int(dataLen) > maxCustomDataLen:
		return c, fmt.Errorf("custom data length %d exceeds limit %d", dataLen, maxCustomDataLen)
	default:
		c.CustomData = make([]byte, dataLen)
		if err := d.bytes(c.CustomData); err != nil {
			return c, fmt.Errorf("custom data: %w", err)
		}
	}

	return c, nil
}

func (d *decoder) pegAddress() (PegAddress, error) {
	var p PegAddress
	flag, err := d.u8()
	if err != nil {
		return p, fmt.Errorf("peg type: %w", err)
	}
	if flag > 1 {
		return p, fmt.Errorf("invalid peg type flag %d", flag)
	}
	p.IsInput = flag == 1
	if p.ComponentAddress, err = d.u32(); err != nil {
		return p, fmt.Errorf("component address: %w", err)
	}
	if p.PegIndex, err = d.i32(); err != nil {
		return p, fmt.Errorf("peg index: %w", err)
	}
	return p, nil
}

func (d *decoder) wire() (Wire, error) {
	var w Wire
	var err error
	if w.StartPeg, err = d.pegAddress(); err != nil {
		return w, fmt.Errorf("start peg: %w", err)
	}
	if w.EndPeg, err = d.pegAddress(); err != nil {
		return w, fmt.Errorf("end peg: %w", err)
	}
	if w.CircuitStateID, err = d.i32(); err != nil {
		return w, fmt.Errorf("circuit state id: %w", err)
	}
	if w.Rotation, err = d.f32(); err != nil {
		return w, fmt.Errorf("rotation: %w", err)
	}
	return w, nil
}

func (d *decoder) circuitStates(saveType SaveType) (CircuitStates, error) {
	var cs CircuitStates
	n, err := d.count("circuit state count")
	if err != nil {
		return cs, err
	}
	switch saveType {
	case SaveTypeWorld:
		cs.WorldStates = make([]byte, n)
		if err := d.bytes(cs.WorldStates); err != nil {
			return cs, fmt.Errorf("read world circuit states: %w", err)
		}
	case SaveTypeSubassembly:
		cs.SubassemblyOnStates = make([]int32, 0, n)
		for i := 0; i < n; i++ {
			id, err := d.i32()
			if err != nil {
				return cs, fmt.Errorf("read subassembly on-state %d: %w", i, err)
			}
			cs.SubassemblyOnStates = append(cs.SubassemblyOnStates, id)
		}
	}
	return cs, nil
}

package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Precision selects the weight width of the sparse encoding.
type Precision uint8

const (
	Float32 Precision = 0
	Float64 Precision = 1
)

func (p Precision) String() string {
	if p == Float32 {
		return "float32"
	}
	return "float64"
}

func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "", "64", "float64", "FLOAT_64":
		return Float64, nil
	case "32", "float32", "FLOAT_32":
		return Float32, nil
	default:
		return Float64, fmt.Errorf("unknown precision: %s", s)
	}
}

const sparseMarker int32 = -1

var ErrBadEncoding = errors.New("malformed synapse group encoding")

// Connection is one decoded (source index, target index, weight) triple.
type Connection struct {
	Source int
	Target int
	Weight float64
}

// saveState holds what a save moves out of the live group.
type saveState struct {
	ex, in     *synapseSet
	held       bool
	sparseCode []byte
	fullCode   []byte
}

// SparseCode encodes the group's topology and weights:
//
//	int32 -1 | uint8 precision | int32 synapses | int32 sources
//	per source: int32 index | int32 degree | int32 target...
//	weights as float64 or float32 bit patterns
//
// All integers are big-endian and entries are ordered by (source, target).
func (g *SynapseGroup) SparseCode(p Precision) []byte {
	return EncodeSparse(g.connections(), p)
}

// EncodeSparse writes conns, which must already be sorted by (source, target).
func EncodeSparse(conns []Connection, p Precision) []byte {
	type row struct {
		src     int
		targets []int
	}
	var rows []row
	for _, c := range conns {
		if len(rows) == 0 || rows[len(rows)-1].src != c.Source {
			rows = append(rows, row{src: c.Source})
		}
		rows[len(rows)-1].targets = append(rows[len(rows)-1].targets, c.Target)
	}
	width := 8
	if p == Float32 {
		width = 4
	}
	size := 4 + 1 + 4 + 4 + 8*len(rows) + 4*len(conns) + width*len(conns)
	buf := make([]byte, 0, size)
	marker := sparseMarker
	buf = binary.BigEndian.AppendUint32(buf, uint32(marker))
	buf = append(buf, byte(p))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(conns)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(rows)))
	for _, r := range rows {
		buf = binary.BigEndian.AppendUint32(buf, uint32(r.src))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.targets)))
		for _, t := range r.targets {
			buf = binary.BigEndian.AppendUint32(buf, uint32(t))
		}
	}
	for _, c := range conns {
		if p == Float32 {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(c.Weight)))
		} else {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(c.Weight))
		}
	}
	return buf
}

// DecodeSparse is the inverse of EncodeSparse.
func DecodeSparse(code []byte) ([]Connection, error) {
	r := &byteReader{buf: code}
	if marker := r.i32(); marker != sparseMarker {
		return nil, fmt.Errorf("%w: sparse marker=%d", ErrBadEncoding, marker)
	}
	p := Precision(r.u8())
	if p != Float32 && p != Float64 {
		return nil, fmt.Errorf("%w: precision flag=%d", ErrBadEncoding, p)
	}
	count := int(r.i32())
	sources := int(r.i32())
	if r.err != nil || count < 0 || sources < 0 {
		return nil, fmt.Errorf("%w: header", ErrBadEncoding)
	}
	conns := make([]Connection, 0, min(count, len(code)/4))
	for i := 0; i < sources && r.err == nil; i++ {
		src := int(r.i32())
		degree := int(r.i32())
		for j := 0; j < degree && r.err == nil; j++ {
			conns = append(conns, Connection{Source: src, Target: int(r.i32())})
		}
	}
	if r.err != nil || len(conns) != count {
		return nil, fmt.Errorf("%w: expected %d connections, read %d", ErrBadEncoding, count, len(conns))
	}
	for i := range conns {
		if p == Float32 {
			conns[i].Weight = float64(math.Float32frombits(r.u32()))
		} else {
			conns[i].Weight = math.Float64frombits(r.u64())
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: truncated weights", ErrBadEncoding)
	}
	return conns, nil
}

// FullCode serializes every member with its complete state, each record
// followed by its (source, target) indices. Records are self-delimiting
// through their leading delay:
//
//	int32 delay | float64 strength | float64 psr | delay x float64 queue |
//	int32 queue pointer | uint8 flags (enabled=2, frozen=1) | int32 src | int32 tgt
func (g *SynapseGroup) FullCode() []byte {
	syns := g.Synapses()
	srcIdx := g.source.indexMap()
	tgtIdx := g.target.indexMap()
	size := 0
	for _, s := range syns {
		size += 33 + 8*max(s.delay, 0)
	}
	buf := make([]byte, 0, size)
	for _, s := range syns {
		d := max(s.delay, 0)
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(d)))
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(s.strength))
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(s.psr))
		for i := 0; i < d; i++ {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(s.delayBuf[i]))
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(s.dlyPtr)))
		var flags byte
		if s.enabled {
			flags |= 2
		}
		if s.frozen {
			flags |= 1
		}
		buf = append(buf, flags)
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(srcIdx[s.source])))
		buf = binary.BigEndian.AppendUint32(buf, uint32(int32(tgtIdx[s.target])))
	}
	return buf
}

// fullRecord is one decoded entry of FullCode.
type fullRecord struct {
	delay    int
	strength float64
	psr      float64
	queue    []float64
	dlyPtr   int
	enabled  bool
	frozen   bool
	src, tgt int
}

func decodeFull(code []byte) ([]fullRecord, error) {
	r := &byteReader{buf: code}
	var out []fullRecord
	for r.remaining() > 0 {
		rec := fullRecord{delay: int(r.i32())}
		if rec.delay < 0 || r.remaining() < 21+8*rec.delay {
			return nil, fmt.Errorf("%w: record %d delay=%d", ErrBadEncoding, len(out), rec.delay)
		}
		rec.strength = math.Float64frombits(r.u64())
		rec.psr = math.Float64frombits(r.u64())
		if rec.delay > 0 {
			rec.queue = make([]float64, rec.delay)
			for i := range rec.queue {
				rec.queue[i] = math.Float64frombits(r.u64())
			}
		}
		rec.dlyPtr = int(r.i32())
		flags := r.u8()
		rec.enabled = flags >= 2
		rec.frozen = flags&1 == 1
		rec.src = int(r.i32())
		rec.tgt = int(r.i32())
		if r.err != nil {
			return nil, fmt.Errorf("%w: truncated record %d", ErrBadEncoding, len(out))
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadSparseCode replaces the members with synapses rebuilt from code. Each
// synapse takes the prototype of its weight's sign.
func (g *SynapseGroup) LoadSparseCode(code []byte) error {
	conns, err := DecodeSparse(code)
	if err != nil {
		return err
	}
	if err := g.checkIndices(len(conns), func(i int) (int, int) { return conns[i].Source, conns[i].Target }); err != nil {
		return err
	}
	g.clearSynapses()
	for _, c := range conns {
		s := NewSynapse(g.source.neurons[c.Source], g.target.neurons[c.Target])
		if c.Weight < 0 {
			s.conformTo(g.inProto)
		} else {
			s.conformTo(g.exProto)
		}
		s.ForceSetStrength(c.Weight)
		g.AddSynapseUnsafe(s)
	}
	g.exRatio = g.ExcitatoryRatioPrecise()
	return nil
}

// LoadFullCode replaces the members with synapses rebuilt from a FullCode
// buffer. Fields the record does not carry come from the prototypes.
func (g *SynapseGroup) LoadFullCode(code []byte) error {
	recs, err := decodeFull(code)
	if err != nil {
		return err
	}
	if err := g.checkIndices(len(recs), func(i int) (int, int) { return recs[i].src, recs[i].tgt }); err != nil {
		return err
	}
	g.clearSynapses()
	for _, rec := range recs {
		s := NewSynapse(g.source.neurons[rec.src], g.target.neurons[rec.tgt])
		if rec.strength < 0 {
			s.conformTo(g.inProto)
		} else {
			s.conformTo(g.exProto)
		}
		s.SetDelay(rec.delay)
		copy(s.delayBuf, rec.queue)
		s.dlyPtr = rec.dlyPtr
		s.ForceSetStrength(rec.strength)
		s.psr = rec.psr
		s.enabled = rec.enabled
		s.frozen = rec.frozen
		g.AddSynapseUnsafe(s)
	}
	g.exRatio = g.ExcitatoryRatioPrecise()
	return nil
}

func (g *SynapseGroup) checkIndices(n int, at func(i int) (int, int)) error {
	ns, nt := g.source.Size(), g.target.Size()
	for i := 0; i < n; i++ {
		src, tgt := at(i)
		if src < 0 || src >= ns || tgt < 0 || tgt >= nt {
			return fmt.Errorf("%w: index (%d, %d) outside %dx%d", ErrBadEncoding, src, tgt, ns, nt)
		}
	}
	return nil
}

// connections lists members as index triples in (source, target) order.
func (g *SynapseGroup) connections() []Connection {
	syns := g.Synapses()
	srcIdx := g.source.indexMap()
	tgtIdx := g.target.indexMap()
	out := make([]Connection, len(syns))
	for i, s := range syns {
		out[i] = Connection{Source: srcIdx[s.source], Target: tgtIdx[s.target], Weight: s.strength}
	}
	return out
}

// PreSaveInit computes the encoding selected by UseFullRepOnSave. With
// group-level settings on, the live sets are moved to a holding area until
// PostSaveReInit.
func (g *SynapseGroup) PreSaveInit(p Precision) {
	g.save.sparseCode, g.save.fullCode = nil, nil
	if g.useFullRepOnSave {
		g.save.fullCode = g.FullCode()
	} else {
		g.save.sparseCode = g.SparseCode(p)
	}
	if g.useGroupLevelSettings && !g.save.held {
		g.save.ex, g.save.in = g.ex, g.in
		g.save.held = true
		g.ex, g.in = nil, nil
	}
}

// PostSaveReInit restores sets held by PreSaveInit and drops the encodings.
func (g *SynapseGroup) PostSaveReInit() {
	if g.save.held {
		g.ex, g.in = g.save.ex, g.save.in
	}
	g.save = saveState{}
	g.ensureSets()
}

// SavedCodes returns the encodings prepared by PreSaveInit.
func (g *SynapseGroup) SavedCodes() (sparse, full []byte) {
	return g.save.sparseCode, g.save.fullCode
}

// PostUnmarshallingInit rebuilds the members from whichever encoding is
// present, preferring the full one.
func (g *SynapseGroup) PostUnmarshallingInit(sparse, full []byte) error {
	g.save = saveState{}
	g.ensureSets()
	switch {
	case len(full) > 0:
		return g.LoadFullCode(full)
	case len(sparse) > 0:
		return g.LoadSparseCode(sparse)
	}
	return nil
}

type byteReader struct {
	buf []byte
	off int
	err error
}

func (r *byteReader) remaining() int { return len(r.buf) - r.off }

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.err = ErrBadEncoding
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *byteReader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *byteReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *byteReader) i32() int32 { return int32(r.u32()) }

func (r *byteReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

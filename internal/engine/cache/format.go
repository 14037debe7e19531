package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"
)

const (
	entryMagic = 0x52524345 // "RRCE"
	indexMagic = 0x52524349 // "RRCI"

	frameHeaderSize = 16
)

var (
	errBadMagic        = errors.New("invalid magic")
	errChecksum        = errors.New("checksum mismatch")
	errVersionMismatch = errors.New("schema version mismatch")
)

// Every file in the cache directory is one frame:
// Magic (4 bytes)
// SchemaVersion (4 bytes)
// Checksum (4 bytes) - CRC32 of payload
// PayloadLength (4 bytes)
// Payload
func writeFrame(magic uint32, payload []byte) []byte {
	out := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], SchemaVersion)
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	return append(out, payload...)
}

func readFrame(magic uint32, data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != magic {
		return nil, fmt.Errorf("%w: %x", errBadMagic, got)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", errVersionMismatch, v, SchemaVersion)
	}
	checksum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	payload := data[frameHeaderSize:]
	if uint32(len(payload)) != length {
		return nil, io.ErrUnexpectedEOF
	}
	if crc32.ChecksumIEEE(payload) != checksum {
		return nil, errChecksum
	}
	return payload, nil
}

// storedEntry is the on-disk shape: payloads are kept as written (possibly
// compressed) together with the codec that produced them.
type storedEntry struct {
	Fingerprint uint64
	CreatedAt   time.Time
	Codec       Codec
	PayloadA    []byte
	PayloadB    []byte
	Metadata    Metadata
}

func encodeEntry(e storedEntry) ([]byte, error) {
	pb := newPayloadBuffer(make([]byte, 0, 64+len(e.PayloadA)+len(e.PayloadB)))
	pb.writeUint64(e.Fingerprint)
	pb.writeTime(e.CreatedAt)
	pb.writeByte(byte(e.Codec))
	pb.writeBytes(e.PayloadA)
	pb.writeBytes(e.PayloadB)
	pb.writeMetadata(e.Metadata)
	if pb.err != nil {
		return nil, pb.err
	}
	return writeFrame(entryMagic, pb.buf), nil
}

func decodeEntry(data []byte) (storedEntry, error) {
	payload, err := readFrame(entryMagic, data)
	if err != nil {
		return storedEntry{}, err
	}
	pb := newPayloadBuffer(payload)
	var e storedEntry
	e.Fingerprint = pb.readUint64()
	e.CreatedAt = pb.readTime()
	e.Codec = Codec(pb.readByte())
	e.PayloadA = pb.readBytes()
	e.PayloadB = pb.readBytes()
	e.Metadata = pb.readMetadata()
	if pb.err != nil {
		return storedEntry{}, pb.err
	}
	if pb.pos != len(pb.buf) {
		return storedEntry{}, fmt.Errorf("trailing %d bytes after entry", len(pb.buf)-pb.pos)
	}
	return e, nil
}

// The index persists records and stats; FileToKey is rebuilt from records.
func encodeIndex(idx *Index) ([]byte, error) {
	pb := newPayloadBuffer(make([]byte, 0, 64+len(idx.Entries)*128))
	pb.writeUint64(idx.Stats.Hits)
	pb.writeUint64(idx.Stats.Misses)
	pb.writeUint64(idx.Stats.SizeBytes)
	pb.writeUint64(idx.Stats.EntryCount)
	pb.writeUint32(uint32(len(idx.Entries)))
	for key, rec := range idx.Entries {
		pb.writeString(string(key))
		pb.writeString(rec.Path)
		pb.writeString(string(rec.Namespace))
		pb.writeTime(rec.CreatedAt)
		pb.writeUint64(rec.StoredBytes)
		pb.writeMetadata(rec.Metadata)
	}
	if pb.err != nil {
		return nil, pb.err
	}
	return writeFrame(indexMagic, pb.buf), nil
}

func decodeIndex(data []byte) (*Index, error) {
	payload, err := readFrame(indexMagic, data)
	if err != nil {
		return nil, err
	}
	pb := newPayloadBuffer(payload)
	idx := newIndex()
	idx.Stats.Hits = pb.readUint64()
	idx.Stats.Misses = pb.readUint64()
	idx.Stats.SizeBytes = pb.readUint64()
	idx.Stats.EntryCount = pb.readUint64()
	n := pb.readUint32()
	for i := uint32(0); i < n && pb.err == nil; i++ {
		key := Key(pb.readString())
		var rec IndexRecord
		rec.Path = pb.readString()
		rec.Namespace = Namespace(pb.readString())
		rec.CreatedAt = pb.readTime()
		rec.StoredBytes = pb.readUint64()
		rec.Metadata = pb.readMetadata()
		if pb.err != nil {
			break
		}
		idx.Entries[key] = rec
		idx.FileToKey[indexPathKey(rec.Namespace, rec.Path)] = key
	}
	if pb.err != nil {
		return nil, pb.err
	}
	return idx, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeByte(v byte) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

// writeTime stores UnixNano; the zero time round-trips as zero.
func (p *payloadBuffer) writeTime(t time.Time) {
	if t.IsZero() {
		p.writeUint64(0)
		return
	}
	p.writeUint64(uint64(t.UnixNano()))
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	if p.err != nil {
		return
	}
	if uint64(len(b)) > math.MaxUint32 {
		p.err = fmt.Errorf("payload too large: %d", len(b))
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(len(b)))
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) writeMetadata(m Metadata) {
	p.writeString(m.ToolchainVersion)
	p.writeUint32(uint32(len(m.Dependencies)))
	for _, dep := range m.Dependencies {
		p.writeString(dep)
	}
	p.writeTime(m.SourceMtime)
	p.writeUint64(m.ComputationDurationMs)
	p.writeUint64(m.SourceSizeBytes)
}

func (p *payloadBuffer) readByte() byte {
	if p.err != nil {
		return 0
	}
	if p.pos+1 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readTime() time.Time {
	v := p.readUint64()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(v))
}

func (p *payloadBuffer) readString() string {
	if p.err != nil {
		return ""
	}
	if p.pos+2 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

func (p *payloadBuffer) readBytes() []byte {
	l := int(p.readUint32())
	if p.err != nil {
		return nil
	}
	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return nil
	}
	if l == 0 {
		return nil
	}
	b := make([]byte, l)
	copy(b, p.buf[p.pos:p.pos+l])
	p.pos += l
	return b
}

func (p *payloadBuffer) readMetadata() Metadata {
	var m Metadata
	m.ToolchainVersion = p.readString()
	n := p.readUint32()
	if p.err == nil && int(n) > len(p.buf)-p.pos {
		// each dependency needs at least its length prefix
		p.err = io.ErrUnexpectedEOF
	}
	if p.err == nil && n > 0 {
		m.Dependencies = make([]string, 0, n)
		for i := uint32(0); i < n && p.err == nil; i++ {
			m.Dependencies = append(m.Dependencies, p.readString())
		}
	}
	m.SourceMtime = p.readTime()
	m.ComputationDurationMs = p.readUint64()
	m.SourceSizeBytes = p.readUint64()
	return m
}

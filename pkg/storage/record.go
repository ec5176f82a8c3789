package storage

import (
	"encoding/binary"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/types"
)

// recordVersion is the leading byte of every encoded NoteRecord, so a
// future layout change is detectable at decode time instead of
// silently misparsing old records.
const recordVersion = 1

// EncodeRecord serializes a NoteRecord into the self-describing binary
// form the WAL frame carries as its payload.
func EncodeRecord(rec *types.NoteRecord) []byte {
	hasVector := rec.Vector != nil

	size := 1 + 8 + 8 + 8 + 4 + len(rec.Content) + 1 + 2
	if hasVector {
		size += 4 + len(rec.Vector)
	}
	buf := make([]byte, 0, size)

	b := make([]byte, 8)
	buf = append(buf, recordVersion)

	binary.LittleEndian.PutUint64(b, rec.ID)
	buf = append(buf, b...)

	binary.LittleEndian.PutUint64(b, uint64(rec.CreatedAt))
	buf = append(buf, b...)

	binary.LittleEndian.PutUint64(b, uint64(rec.UpdatedAt))
	buf = append(buf, b...)

	lb := make([]byte, 4)
	binary.LittleEndian.PutUint32(lb, uint32(len(rec.Content)))
	buf = append(buf, lb...)
	buf = append(buf, rec.Content...)

	if hasVector {
		buf = append(buf, 1)
		binary.LittleEndian.PutUint32(lb, uint32(len(rec.Vector)))
		buf = append(buf, lb...)
		for _, v := range rec.Vector {
			buf = append(buf, byte(v))
		}
	} else {
		buf = append(buf, 0)
	}

	flags := byte(0)
	if rec.Encrypted {
		flags |= 0x01
	}
	if rec.Deleted {
		flags |= 0x02
	}
	buf = append(buf, flags)

	return buf
}

// DecodeRecord parses bytes produced by EncodeRecord. A short buffer,
// unsupported version byte, or length field that runs past the buffer
// end is reported as a Deserialize error — callers (recovery, Get)
// treat that as a corrupt or partially-written record.
func DecodeRecord(data []byte) (*types.NoteRecord, error) {
	if len(data) < 1+8+8+8+4+1+1 {
		return nil, lazerr.New(lazerr.Deserialize, "record too short")
	}
	if data[0] != recordVersion {
		return nil, lazerr.New(lazerr.Deserialize, "unsupported record version")
	}
	off := 1

	rec := &types.NoteRecord{}
	rec.ID = binary.LittleEndian.Uint64(data[off:])
	off += 8
	rec.CreatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	rec.UpdatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	if off+4 > len(data) {
		return nil, lazerr.New(lazerr.Deserialize, "truncated content length")
	}
	contentLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if off+contentLen > len(data) {
		return nil, lazerr.New(lazerr.Deserialize, "truncated content")
	}
	rec.Content = append([]byte(nil), data[off:off+contentLen]...)
	off += contentLen

	if off+1 > len(data) {
		return nil, lazerr.New(lazerr.Deserialize, "truncated vector flag")
	}
	hasVector := data[off] == 1
	off++

	if hasVector {
		if off+4 > len(data) {
			return nil, lazerr.New(lazerr.Deserialize, "truncated vector length")
		}
		vecLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+vecLen > len(data) {
			return nil, lazerr.New(lazerr.Deserialize, "truncated vector")
		}
		rec.Vector = make([]int8, vecLen)
		for i := 0; i < vecLen; i++ {
			rec.Vector[i] = int8(data[off+i])
		}
		off += vecLen
	}

	if off+1 > len(data) {
		return nil, lazerr.New(lazerr.Deserialize, "truncated flags")
	}
	flags := data[off]
	rec.Encrypted = flags&0x01 != 0
	rec.Deleted = flags&0x02 != 0

	return rec, nil
}

// Package db implements a byte-addressable database inside a single
// paged file. Space is handed out by Malloc/Free in blocks that never
// span a chunk, and all addressing below the chunk level is raw byte
// offsets. Record pointer slots are 4 bytes wide; value 0 is reserved.
package db

import (
	"encoding/binary"
	"math"

	"go-pdom/pkg/pager"
	"go-pdom/util/logger"

	"github.com/pkg/errors"
)

var bin = binary.BigEndian

const (
	// PtrSize is the width of a stored record pointer.
	PtrSize = 4
	// BlockHeaderSize is the per-block bookkeeping prefix. The header
	// holds the block length in bytes, negative while allocated.
	BlockHeaderSize = 2

	DefaultChunkSize = 4096

	magic   uint32 = 0x50444F4D // "PDOM"
	version uint16 = 1

	// allocation granularity; keeps block lengths representable and
	// payload offsets stable
	blockSizeDelta = 4
	// a free block must fit its header plus a free-list link
	minBlockBytes = 8

	maxChunkSize = math.MaxInt16
	minChunkSize = 16
)

var (
	ErrInvalidMagic    = errors.New("not a pdom database file")
	ErrVersionMismatch = errors.New("unsupported database format version")
	ErrAllocTooLarge   = errors.New("allocation exceeds chunk capacity")
	ErrInvalidPointer  = errors.New("invalid pointer")
)

type Options struct {
	ChunkSize int
	ReadOnly  bool
}

func Open(fileName string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{}
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < minChunkSize || chunkSize > maxChunkSize || chunkSize%blockSizeDelta != 0 {
		return nil, errors.Errorf("invalid chunk size %d", chunkSize)
	}

	p, err := pager.Open(fileName, chunkSize, opts.ReadOnly, 0664)
	if err != nil {
		return nil, err
	}

	d := &DB{
		fileName:  fileName,
		pager:     p,
		chunkSize: chunkSize,
	}

	if err := d.open(); err != nil {
		_ = p.Close()
		return nil, err
	}

	logger.L.WithFields(map[string]interface{}{
		"file":      fileName,
		"chunkSize": chunkSize,
		"chunks":    p.Count(),
	}).Debug("opened database")

	return d, nil
}

// DB is a handle to one database file. Chunk 0 holds the database
// metadata; every other byte is managed by Malloc/Free.
type DB struct {
	fileName  string
	pager     *pager.Pager
	chunkSize int
	meta      *metadata
}

func (d *DB) ChunkSize() int {
	return d.chunkSize
}

// GetRecPtr reads the 4-byte record pointer stored at addr.
func (d *DB) GetRecPtr(addr uint64) uint64 {
	return uint64(d.getUint32(addr))
}

// PutRecPtr stores value as a 4-byte record pointer at addr.
func (d *DB) PutRecPtr(addr uint64, value uint64) {
	if value > math.MaxUint32 {
		panic(errors.Wrapf(ErrInvalidPointer, "record pointer %d does not fit in %d bytes", value, PtrSize))
	}
	d.putUint32(addr, uint32(value))
}

// GetInt reads the 4-byte signed integer stored at addr.
func (d *DB) GetInt(addr uint64) int {
	return int(int32(d.getUint32(addr)))
}

// PutInt stores value as a 4-byte signed integer at addr.
func (d *DB) PutInt(addr uint64, value int) {
	if value > math.MaxInt32 || value < math.MinInt32 {
		panic(errors.Errorf("integer %d does not fit in 4 bytes", value))
	}
	d.putUint32(addr, uint32(int32(value)))
}

// MemCpy copies n bytes from src to dst. The regions may overlap.
func (d *DB) MemCpy(dst, src uint64, n int) {
	if n <= 0 {
		return
	}
	buf := make([]byte, n)
	if err := d.pager.ReadAt(buf, src); err != nil {
		panic(errors.Wrapf(err, "memcpy read of %d bytes at %d", n, src))
	}
	if err := d.pager.WriteAt(buf, dst); err != nil {
		panic(errors.Wrapf(err, "memcpy write of %d bytes at %d", n, dst))
	}
}

func (d *DB) Close() error {
	if d.pager == nil {
		return nil
	}

	err := d.writeMeta()
	if cerr := d.pager.Close(); err == nil {
		err = cerr
	}
	d.pager = nil

	logger.L.WithField("file", d.fileName).Debug("closed database")
	return err
}

func (d *DB) open() error {
	if d.pager.Count() == 0 {
		return d.init()
	}

	d.meta = &metadata{}
	if err := d.pager.Unmarshal(0, d.meta); err != nil {
		return err
	}

	if d.meta.magic != magic {
		return ErrInvalidMagic
	}
	if d.meta.version != version {
		return errors.Wrapf(ErrVersionMismatch, "found version %d, supported %d", d.meta.version, version)
	}
	return nil
}

func (d *DB) init() error {
	if _, err := d.pager.Alloc(1); err != nil {
		return errors.Wrap(err, "failed to allocate metadata chunk")
	}

	d.meta = &metadata{
		dirty:    true,
		magic:    magic,
		version:  version,
		freeHead: 0,
	}
	return d.writeMeta()
}

func (d *DB) writeMeta() error {
	if !d.meta.dirty {
		return nil
	}
	if err := d.pager.Marshal(0, d.meta); err != nil {
		return errors.Wrap(err, "failed to write database metadata")
	}
	d.meta.dirty = false
	return nil
}

func (d *DB) getUint32(addr uint64) uint32 {
	var buf [4]byte
	if err := d.pager.ReadAt(buf[:], addr); err != nil {
		panic(errors.Wrapf(err, "read of 4 bytes at %d", addr))
	}
	return bin.Uint32(buf[:])
}

func (d *DB) putUint32(addr uint64, value uint32) {
	var buf [4]byte
	bin.PutUint32(buf[:], value)
	if err := d.pager.WriteAt(buf[:], addr); err != nil {
		panic(errors.Wrapf(err, "write of 4 bytes at %d", addr))
	}
}

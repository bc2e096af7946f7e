// Package array implements a growable array of record pointers stored
// entirely inside a database. An array is not an object: it is a byte
// address handed out by the enclosing record, and every operation is a
// function of the database and that address. The handle returned by
// New carries only the inline slot count and must be constructed with
// the same value for every call against the same address.
//
// The header at the array's address holds a pointer to the growable
// block followed by the inline record slots:
//
//	0..3    growable block address, 0 while all records fit inline
//	4..7    record [0]
//	...
//	k..k+3  record [inlineSize-1]
//
// While there is no growable block the size is not stored; it is the
// position of the first empty slot among the inline records. A
// growable block starts with the array size and the block's allocated
// capacity, followed by record slots:
//
//	0..3    array size, including inline records
//	4..7    allocated size of this block, in records
//	8..     record [inlineSize], record [inlineSize+1], ...
//
// A block whose allocated size exceeds MaxGrowableSize is a metablock:
// its slots hold addresses of child blocks, each child holding exactly
// MaxGrowableSize records. The metablock's size fields are the
// authoritative ones; child size fields are unused.
//
// Additions return the record's index. Removal swaps the last record
// into the removed slot, so indices stay consecutive but order is not
// preserved after the first removal. Additions and removals run in
// constant amortized time.
package array

import (
	"go-pdom/pkg/db"

	"github.com/pkg/errors"
)

var ErrOutOfBounds = errors.New("out of bounds")
var ErrNilValue = errors.New("nil record pointer")

const (
	// header field offsets inside a growable block
	arraySizeOffset     = 0
	allocatedSizeOffset = db.PtrSize

	growableBlockHeaderSize = 2 * 4

	// inline record slots follow the growable block pointer
	inlineOffset = db.PtrSize
)

// New returns a handle for arrays that keep inlineRecords record slots
// inside their header. inlineRecords may be 0.
func New(inlineRecords int) Array {
	return Array{inlineSize: inlineRecords}
}

type Array struct {
	inlineSize int
}

// MaxGrowableSize returns the largest record count a single growable
// block may hold in d. Arrays needing more switch to a metablock.
func MaxGrowableSize(d *db.DB) int {
	return (d.ChunkSize() - db.BlockHeaderSize - growableBlockHeaderSize) / db.PtrSize
}

// RecordSize returns the header size the enclosing record must reserve
// at the array's address.
func (arr Array) RecordSize() int {
	return inlineOffset + arr.inlineSize*db.PtrSize
}

// Size returns the number of records in the array at addr.
func (arr Array) Size(d *db.DB, addr uint64) int {
	growable := arr.growableBlock(d, addr)
	if growable == 0 {
		for index := 0; index < arr.inlineSize; index++ {
			if d.GetRecPtr(arr.inlineSlot(addr, index)) == 0 {
				return index
			}
		}
		return arr.inlineSize
	}
	return d.GetInt(growable + arraySizeOffset)
}

// IsEmpty reports whether the array at addr holds no records. Cheaper
// than Size for inline arrays: only the first slot is inspected.
func (arr Array) IsEmpty(d *db.DB, addr uint64) bool {
	growable := arr.growableBlock(d, addr)
	if growable == 0 {
		if arr.inlineSize == 0 {
			return true
		}
		return d.GetRecPtr(arr.inlineSlot(addr, 0)) == 0
	}
	return d.GetInt(growable+arraySizeOffset) == 0
}

// Capacity returns the number of records the array can currently hold
// without allocating.
func (arr Array) Capacity(d *db.DB, addr uint64) int {
	growable := arr.growableBlock(d, addr)
	if growable == 0 {
		return arr.inlineSize
	}
	return arr.inlineSize + d.GetInt(growable+allocatedSizeOffset)
}

// Add appends value to the array at addr and returns its index. The
// index stays valid until a removal swaps another record into it.
// Value 0 is reserved for empty slots and is rejected.
func (arr Array) Add(d *db.DB, addr uint64, value uint64) (int, error) {
	if value == 0 {
		return 0, errors.Wrap(ErrNilValue, "0 marks an empty record slot")
	}

	insertionIndex := arr.Size(d, addr)
	if err := arr.EnsureCapacity(d, addr, insertionIndex+1); err != nil {
		return 0, err
	}

	recordAddr, err := arr.addressOf(d, addr, insertionIndex)
	if err != nil {
		return 0, err
	}

	d.PutRecPtr(recordAddr, value)
	arr.setSize(d, addr, insertionIndex+1)
	return insertionIndex, nil
}

// Get returns the record at the given index. Indices up to and
// including the size may be read while the array has spare capacity;
// the slot at the size is empty. In a full array the size is out of
// bounds.
func (arr Array) Get(d *db.DB, addr uint64, index int) (uint64, error) {
	recordAddr, err := arr.addressOf(d, addr, index)
	if err != nil {
		return 0, err
	}
	return d.GetRecPtr(recordAddr), nil
}

// Remove deletes the record at the given index. Unless the removed
// record was the last one, the last record is swapped into its place
// and returned, so callers tracking indices can relocate it; otherwise
// Remove returns 0.
func (arr Array) Remove(d *db.DB, addr uint64, index int) (uint64, error) {
	currentSize := arr.Size(d, addr)
	lastIndex := currentSize - 1

	if index < 0 || index > lastIndex {
		return 0, errors.Wrapf(ErrOutOfBounds, "removing record %d from an array of %d", index, currentSize)
	}

	toRemove, err := arr.addressOf(d, addr, index)
	if err != nil {
		return 0, err
	}

	var moved uint64
	if index == lastIndex {
		d.PutRecPtr(toRemove, 0)
	} else {
		lastAddr, err := arr.addressOf(d, addr, lastIndex)
		if err != nil {
			return 0, err
		}
		moved = d.GetRecPtr(lastAddr)
		d.PutRecPtr(toRemove, moved)
		d.PutRecPtr(lastAddr, 0)
	}

	arr.setSize(d, addr, currentSize-1)

	// the repack check intentionally sees the pre-removal size
	if err := arr.repackIfNecessary(d, addr, currentSize); err != nil {
		return 0, err
	}
	return moved, nil
}

// Destruct frees all growable storage owned by the array at addr. The
// header itself, inline slots included, belongs to the enclosing
// record and is left as is.
func (arr Array) Destruct(d *db.DB, addr uint64) error {
	return arr.repackIfNecessary(d, addr, 0)
}

// addressOf resolves a record index to the byte address of its slot.
// The slot one past the last record may be resolved when the array has
// capacity for it; later indices, and that slot in a full array, are
// out of bounds.
func (arr Array) addressOf(d *db.DB, addr uint64, index int) (uint64, error) {
	if index < 0 {
		return 0, errors.Wrapf(ErrOutOfBounds, "record index %d", index)
	}

	relative := index - arr.inlineSize
	if relative < 0 {
		return arr.inlineSlot(addr, index), nil
	}

	growable := arr.growableBlock(d, addr)
	size := arr.Size(d, addr)
	if index > size || growable == 0 {
		return 0, errors.Wrapf(ErrOutOfBounds, "record index %d out of range, array contains %d records", index, size)
	}

	allocated := d.GetInt(growable + allocatedSizeOffset)
	if relative >= allocated {
		return 0, errors.Wrapf(ErrOutOfBounds, "record index %d beyond capacity %d", index, arr.inlineSize+allocated)
	}
	dataStart := growable + growableBlockHeaderSize

	if maxBlock := MaxGrowableSize(d); allocated > maxBlock {
		block := relative / maxBlock
		relative = relative % maxBlock
		dataStart = d.GetRecPtr(dataStart+uint64(block*db.PtrSize)) + growableBlockHeaderSize
	}

	return dataStart + uint64(relative*db.PtrSize), nil
}

// setSize records the new array size. Inline arrays store no size; it
// is recomputed from the first empty slot.
func (arr Array) setSize(d *db.DB, addr uint64, size int) {
	growable := arr.growableBlock(d, addr)
	if growable == 0 {
		return
	}
	d.PutInt(growable+arraySizeOffset, size)
}

func (arr Array) growableBlock(d *db.DB, addr uint64) uint64 {
	return d.GetRecPtr(addr)
}

func (arr Array) setGrowableBlock(d *db.DB, addr uint64, block uint64) {
	d.PutRecPtr(addr, block)
}

func (arr Array) inlineSlot(addr uint64, index int) uint64 {
	return addr + inlineOffset + uint64(index*db.PtrSize)
}

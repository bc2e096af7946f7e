package db

import (
	"go-pdom/util/helpers"

	"github.com/pkg/errors"
)

// Malloc hands out a zero-filled region of at least size bytes and
// returns its payload address. Blocks are carved from the free list
// first fit, else from a fresh chunk; a block never spans chunks, so
// requests larger than a chunk's payload fail with ErrAllocTooLarge.
func (d *DB) Malloc(size int) (uint64, error) {
	if size < 0 {
		return 0, errors.Errorf("negative allocation size %d", size)
	}

	blockBytes := helpers.Max(
		helpers.RoundUpToMultipleOf(blockSizeDelta, size+BlockHeaderSize),
		minBlockBytes,
	)
	if blockBytes > d.chunkSize {
		return 0, errors.Wrapf(ErrAllocTooLarge, "%d bytes requested, a chunk holds %d", size, d.chunkSize-BlockHeaderSize)
	}

	block, blockLen := d.takeFreeBlock(blockBytes)
	if block == 0 {
		id, err := d.pager.Alloc(1)
		if err != nil {
			return 0, errors.Wrap(err, "failed to grow database by one chunk")
		}

		block = id * uint64(d.chunkSize)
		blockLen = blockBytes

		if rem := d.chunkSize - blockBytes; rem >= minBlockBytes {
			d.putBlockLen(block+uint64(blockBytes), rem)
			d.pushFree(block + uint64(blockBytes))
		} else {
			blockLen = d.chunkSize
		}
	}

	d.putBlockLen(block, -blockLen)
	d.clear(block+BlockHeaderSize, blockLen-BlockHeaderSize)

	return block + BlockHeaderSize, d.writeMeta()
}

// Free returns the block owning addr to the free list. Freed space is
// reused by later Mallocs; chunks are never returned to the file.
func (d *DB) Free(addr uint64) error {
	if addr < BlockHeaderSize {
		return ErrInvalidPointer
	}

	block := addr - BlockHeaderSize
	blockLen := d.getBlockLen(block)
	if blockLen >= 0 {
		return errors.Wrapf(ErrInvalidPointer, "block at %d is not allocated", block)
	}

	d.putBlockLen(block, -blockLen)
	d.pushFree(block)
	return d.writeMeta()
}

// takeFreeBlock unlinks and returns the first free block of at least
// need bytes, splitting off the tail when it can hold a block of its
// own. Returns 0 when no free block fits.
func (d *DB) takeFreeBlock(need int) (uint64, int) {
	var prev uint64
	block := d.meta.freeHead

	for block != 0 {
		blockLen := d.getBlockLen(block)
		if blockLen >= need {
			d.unlinkFree(prev, block)

			if rem := blockLen - need; rem >= minBlockBytes {
				d.putBlockLen(block+uint64(need), rem)
				d.pushFree(block + uint64(need))
				blockLen = need
			}
			return block, blockLen
		}

		prev = block
		block = d.freeNext(block)
	}

	return 0, 0
}

func (d *DB) pushFree(block uint64) {
	d.setFreeNext(block, d.meta.freeHead)
	d.meta.freeHead = block
	d.meta.dirty = true
}

func (d *DB) unlinkFree(prev, block uint64) {
	next := d.freeNext(block)
	if prev == 0 {
		d.meta.freeHead = next
		d.meta.dirty = true
	} else {
		d.setFreeNext(prev, next)
	}
}

func (d *DB) freeNext(block uint64) uint64 {
	return uint64(d.getUint32(block + BlockHeaderSize))
}

func (d *DB) setFreeNext(block, next uint64) {
	d.putUint32(block+BlockHeaderSize, uint32(next))
}

func (d *DB) getBlockLen(block uint64) int {
	var buf [2]byte
	if err := d.pager.ReadAt(buf[:], block); err != nil {
		panic(errors.Wrapf(err, "read of block header at %d", block))
	}
	return int(int16(bin.Uint16(buf[:])))
}

func (d *DB) putBlockLen(block uint64, blockLen int) {
	var buf [2]byte
	bin.PutUint16(buf[:], uint16(int16(blockLen)))
	if err := d.pager.WriteAt(buf[:], block); err != nil {
		panic(errors.Wrapf(err, "write of block header at %d", block))
	}
}

func (d *DB) clear(addr uint64, n int) {
	if n <= 0 {
		return
	}
	if err := d.pager.WriteAt(make([]byte, n), addr); err != nil {
		panic(errors.Wrapf(err, "clear of %d bytes at %d", n, addr))
	}
}

package array

import (
	"go-pdom/pkg/db"
	"go-pdom/util/helpers"
	"go-pdom/util/logger"
)

// EnsureCapacity makes the array at addr large enough to hold
// desiredSize records, growing the growable region geometrically. Once
// a single block would no longer fit in a chunk the array is promoted
// to a metablock and extended child block by child block.
func (arr Array) EnsureCapacity(d *db.DB, addr uint64, desiredSize int) error {
	needed := desiredSize - arr.inlineSize

	growable := arr.growableBlock(d, addr)
	current := 0
	if growable != 0 {
		current = d.GetInt(growable + allocatedSizeOffset)
	}

	// the growable region is already large enough
	if needed <= current {
		return nil
	}

	maxBlock := MaxGrowableSize(d)
	target := arr.growableRegionSizeFor(d, desiredSize)

	if target <= maxBlock {
		newBlock, err := arr.resizeBlock(d, addr, target)
		if err != nil {
			return err
		}
		arr.setGrowableBlock(d, addr, newBlock)
		return nil
	}

	metablock := growable
	if current <= maxBlock {
		// promote: the current block grows to a full child, then a
		// metablock takes its place in the header. The metablock must
		// be installed before any extension writes.
		currentSize := arr.Size(d, addr)

		firstBlock, err := arr.resizeBlock(d, addr, maxBlock)
		if err != nil {
			return err
		}

		metablock, err = d.Malloc(blockBytes(maxBlock))
		if err != nil {
			return err
		}
		d.PutInt(metablock+arraySizeOffset, currentSize)
		d.PutInt(metablock+allocatedSizeOffset, maxBlock)
		d.PutRecPtr(metablock+growableBlockHeaderSize, firstBlock)
		arr.setGrowableBlock(d, addr, metablock)

		logger.L.WithFields(map[string]interface{}{
			"address": addr,
			"size":    currentSize,
		}).Debug("array promoted to metablock")
	}

	// target is a multiple of the max block size whenever a metablock
	// is in use
	requiredBlocks := target / maxBlock
	currentBlocks := d.GetInt(metablock+allocatedSizeOffset) / maxBlock

	for next := currentBlocks; next < requiredBlocks; next++ {
		child, err := d.Malloc(blockBytes(maxBlock))
		if err != nil {
			return err
		}
		d.PutRecPtr(metablock+growableBlockHeaderSize+uint64(next*db.PtrSize), child)
	}

	d.PutInt(metablock+allocatedSizeOffset, target)
	return nil
}

// resizeBlock replaces the growable block with one sized for newSize
// records, migrating the record bytes, and returns the new block's
// address (0 when newSize is 0). The caller stores the result in the
// array header. Not for metablock arrays.
func (arr Array) resizeBlock(d *db.DB, addr uint64, newSize int) (uint64, error) {
	oldBlock := arr.growableBlock(d, addr)

	if oldBlock != 0 {
		if newSize == 0 {
			return 0, d.Free(oldBlock)
		}
		if d.GetInt(oldBlock+allocatedSizeOffset) == newSize {
			return oldBlock, nil
		}
	} else if newSize == 0 {
		return 0, nil
	}

	size := arr.Size(d, addr)
	numToCopy := helpers.Min(helpers.Max(0, size-arr.inlineSize), newSize)

	newBlock, err := d.Malloc(blockBytes(newSize))
	if err != nil {
		return 0, err
	}

	if oldBlock != 0 {
		// record bytes only; both header fields are rewritten below
		d.MemCpy(newBlock+growableBlockHeaderSize, oldBlock+growableBlockHeaderSize, numToCopy*db.PtrSize)
		if err := d.Free(oldBlock); err != nil {
			return 0, err
		}
	}

	d.PutInt(newBlock+arraySizeOffset, size)
	d.PutInt(newBlock+allocatedSizeOffset, newSize)
	return newBlock, nil
}

// growableRegionSizeFor returns the record capacity the growable
// region should have for an array of the given size: the next power of
// two, floored at the inline count, clamped to a single block while
// possible, then whole child blocks.
func (arr Array) growableRegionSizeFor(d *db.DB, arraySize int) int {
	needed := arraySize - arr.inlineSize
	if needed <= 0 {
		return 0
	}

	// arrays configured with many inline slots are the ones expected
	// to grow large, so the inline count doubles as the minimum block
	// size
	next := helpers.NextPowerOfTwo(helpers.Max(needed, arr.inlineSize))

	if maxBlock := MaxGrowableSize(d); next > maxBlock {
		if needed <= maxBlock {
			return maxBlock
		}
		return helpers.RoundUpToMultipleOf(maxBlock, needed)
	}
	return next
}

func blockBytes(records int) int {
	return records*db.PtrSize + growableBlockHeaderSize
}

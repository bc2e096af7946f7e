package array

import (
	"go-pdom/pkg/db"
	"go-pdom/util/logger"
)

// repackIfNecessary releases growable storage once the array can hold
// desiredSize records in a smaller region. desiredSize of 0 frees
// everything.
func (arr Array) repackIfNecessary(d *db.DB, addr uint64, desiredSize int) error {
	growable := arr.growableBlock(d, addr)

	// without a growable block the array is already as small as it gets
	if growable == 0 {
		return nil
	}

	desiredGrowable := desiredSize - arr.inlineSize
	currentGrowable := d.GetInt(growable + allocatedSizeOffset)
	newGrowable := arr.growableRegionSizeFor(d, desiredSize)

	if newGrowable >= currentGrowable {
		return nil
	}

	maxBlock := MaxGrowableSize(d)
	if currentGrowable > maxBlock {
		desiredBlocks := (newGrowable + maxBlock - 1) / maxBlock
		currentBlocks := currentGrowable / maxBlock

		// deallocate only once two whole trailing child blocks sit
		// idle, or the records fit in half a block with one element
		// of slack
		if currentBlocks-desiredBlocks <= 1 && newGrowable > maxBlock/2+1 {
			return nil
		}

		records := growable + growableBlockHeaderSize
		for block := currentBlocks - 1; block >= desiredBlocks; block-- {
			childSlot := records + uint64(block*db.PtrSize)
			if err := d.Free(d.GetRecPtr(childSlot)); err != nil {
				return err
			}
			d.PutRecPtr(childSlot, 0)
		}

		// still more than one block's worth: stay a metablock
		if newGrowable > maxBlock {
			d.PutInt(growable+allocatedSizeOffset, newGrowable)
			return nil
		}

		// demote: the first child block replaces the metablock
		firstBlock := d.GetRecPtr(records)
		oldSize := d.GetInt(growable + arraySizeOffset)
		if err := d.Free(growable); err != nil {
			return err
		}
		arr.setGrowableBlock(d, addr, firstBlock)

		if firstBlock != 0 {
			currentGrowable = maxBlock
			d.PutInt(firstBlock+arraySizeOffset, oldSize)
			d.PutInt(firstBlock+allocatedSizeOffset, maxBlock)
		}

		logger.L.WithFields(map[string]interface{}{
			"address": addr,
			"size":    oldSize,
		}).Debug("array metablock demoted")

		// fall through: the remaining block may shrink further
	}

	// a plain block is resized only once the array occupies a quarter
	// of it
	if desiredGrowable <= currentGrowable/4+1 {
		newBlock, err := arr.resizeBlock(d, addr, newGrowable)
		if err != nil {
			return err
		}
		arr.setGrowableBlock(d, addr, newBlock)
	}
	return nil
}

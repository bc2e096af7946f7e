package pager

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFile(t *testing.T, name string) string {
	pwd, _ := os.Getwd()
	fileName := path.Join(pwd, name)
	os.Remove(fileName)
	t.Cleanup(func() { os.Remove(fileName) })
	return fileName
}

func TestAllocAndCount(t *testing.T) {
	p, err := Open(testFile(t, "pager_test.bin"), 64, false, 0664)
	require.NoError(t, err)
	require.EqualValues(t, 0, p.Count())
	require.Equal(t, 64, p.PageSize())
	require.False(t, p.ReadOnly())

	id, err := p.Alloc(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, id)

	id, err = p.Alloc(3)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.EqualValues(t, 4, p.Count())

	require.NoError(t, p.Close())
}

func TestReadWriteAt(t *testing.T) {
	fileName := testFile(t, "pager_rw_test.bin")
	p, err := Open(fileName, 64, false, 0664)
	require.NoError(t, err)

	_, err = p.Alloc(2)
	require.NoError(t, err)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, p.WriteAt(payload, 60))

	buf := make([]byte, 4)
	require.NoError(t, p.ReadAt(buf, 60))
	require.Equal(t, payload, buf)

	// spans the page boundary, still one contiguous mapping
	require.NoError(t, p.WriteAt(payload, 62))
	require.NoError(t, p.ReadAt(buf, 62))
	require.Equal(t, payload, buf)

	require.ErrorIs(t, p.ReadAt(buf, 126), ErrOutOfBounds)
	require.ErrorIs(t, p.WriteAt(payload, 126), ErrOutOfBounds)
	require.NoError(t, p.Close())

	// reopen and verify persistence
	p, err = Open(fileName, 64, true, 0664)
	require.NoError(t, err)
	require.True(t, p.ReadOnly())
	require.NoError(t, p.ReadAt(buf, 60))
	require.Equal(t, []byte{0xde, 0xad, 0xde, 0xad}, buf)

	_, err = p.Alloc(1)
	require.ErrorIs(t, err, ErrReadOnly)
	require.ErrorIs(t, p.WriteAt(payload, 0), ErrReadOnly)
	require.NoError(t, p.Close())
}

func TestAllocZeroFills(t *testing.T) {
	p, err := Open(testFile(t, "pager_zero_test.bin"), 32, false, 0664)
	require.NoError(t, err)

	_, err = p.Alloc(1)
	require.NoError(t, err)

	buf := make([]byte, 32)
	require.NoError(t, p.ReadAt(buf, 0))
	for _, b := range buf {
		require.Zero(t, b)
	}
	require.NoError(t, p.Close())
}

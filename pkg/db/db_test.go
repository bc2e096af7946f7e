package db

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T, name string, chunkSize int) *DB {
	pwd, _ := os.Getwd()
	fileName := path.Join(pwd, name)
	os.Remove(fileName)
	t.Cleanup(func() { os.Remove(fileName) })

	d, err := Open(fileName, &Options{ChunkSize: chunkSize})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenValidatesHeader(t *testing.T) {
	pwd, _ := os.Getwd()
	fileName := path.Join(pwd, "db_magic_test.bin")
	os.Remove(fileName)
	t.Cleanup(func() { os.Remove(fileName) })

	junk := make([]byte, 64)
	for i := range junk {
		junk[i] = 0xAB
	}
	require.NoError(t, os.WriteFile(fileName, junk, 0664))

	_, err := Open(fileName, &Options{ChunkSize: 64})
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestOpenRejectsBadChunkSize(t *testing.T) {
	pwd, _ := os.Getwd()
	fileName := path.Join(pwd, "db_chunk_test.bin")
	os.Remove(fileName)
	t.Cleanup(func() { os.Remove(fileName) })

	_, err := Open(fileName, &Options{ChunkSize: 10})
	require.Error(t, err)

	_, err = Open(fileName, &Options{ChunkSize: 1 << 20})
	require.Error(t, err)
}

func TestIntAndRecPtrAccessors(t *testing.T) {
	d := testDB(t, "db_accessors_test.bin", 64)

	addr, err := d.Malloc(16)
	require.NoError(t, err)

	d.PutInt(addr, -12345)
	require.Equal(t, -12345, d.GetInt(addr))

	d.PutRecPtr(addr+4, 0xCAFEBABE)
	require.EqualValues(t, 0xCAFEBABE, d.GetRecPtr(addr+4))

	d.PutRecPtr(addr+8, 0)
	require.Zero(t, d.GetRecPtr(addr+8))
}

func TestMallocZeroFills(t *testing.T) {
	d := testDB(t, "db_zero_test.bin", 64)

	addr, err := d.Malloc(16)
	require.NoError(t, err)
	for off := 0; off < 16; off += 4 {
		d.PutInt(addr+uint64(off), -1)
	}
	require.NoError(t, d.Free(addr))

	addr2, err := d.Malloc(16)
	require.NoError(t, err)
	require.Equal(t, addr, addr2)
	for off := 0; off < 16; off += 4 {
		require.Zero(t, d.GetInt(addr2+uint64(off)))
	}
}

func TestMallocSplitsAndReuses(t *testing.T) {
	d := testDB(t, "db_split_test.bin", 64)

	a1, err := d.Malloc(10)
	require.NoError(t, err)
	a2, err := d.Malloc(10)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)

	// both carved from the same chunk
	require.Equal(t, a1/64, a2/64)

	require.NoError(t, d.Free(a2))
	require.NoError(t, d.Free(a1))

	a3, err := d.Malloc(10)
	require.NoError(t, err)
	require.Equal(t, a1, a3)
}

func TestMallocTooLarge(t *testing.T) {
	d := testDB(t, "db_large_test.bin", 64)

	_, err := d.Malloc(64)
	require.ErrorIs(t, err, ErrAllocTooLarge)

	addr, err := d.Malloc(62)
	require.NoError(t, err)
	require.NotZero(t, addr)
}

func TestFreeRejectsUnallocated(t *testing.T) {
	d := testDB(t, "db_free_test.bin", 64)

	addr, err := d.Malloc(16)
	require.NoError(t, err)
	require.NoError(t, d.Free(addr))
	require.ErrorIs(t, d.Free(addr), ErrInvalidPointer)
}

func TestMemCpyOverlap(t *testing.T) {
	d := testDB(t, "db_memcpy_test.bin", 64)

	addr, err := d.Malloc(32)
	require.NoError(t, err)

	d.PutInt(addr, 1)
	d.PutInt(addr+4, 2)
	d.PutInt(addr+8, 3)

	d.MemCpy(addr+4, addr, 12)
	require.Equal(t, 1, d.GetInt(addr))
	require.Equal(t, 1, d.GetInt(addr+4))
	require.Equal(t, 2, d.GetInt(addr+8))
	require.Equal(t, 3, d.GetInt(addr+12))
}

func TestReopenKeepsFreeList(t *testing.T) {
	pwd, _ := os.Getwd()
	fileName := path.Join(pwd, "db_reopen_test.bin")
	os.Remove(fileName)
	t.Cleanup(func() { os.Remove(fileName) })

	d, err := Open(fileName, &Options{ChunkSize: 64})
	require.NoError(t, err)

	addr, err := d.Malloc(16)
	require.NoError(t, err)
	d.PutInt(addr, 42)
	require.NoError(t, d.Free(addr))
	require.NoError(t, d.Close())

	d, err = Open(fileName, &Options{ChunkSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	addr2, err := d.Malloc(16)
	require.NoError(t, err)
	require.Equal(t, addr, addr2)
}

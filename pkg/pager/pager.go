// Package pager provides page-granular access to a single file. The
// whole file is memory mapped; reads and writes go through the mapping
// and may address any byte range inside the allocated pages.
package pager

import (
	"encoding"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

var ErrOutOfBounds = errors.New("out of bounds")
var ErrReadOnly = errors.New("pager is in read-only mode")

func Open(fileName string, pageSize int, readOnly bool, perm os.FileMode) (*Pager, error) {
	if pageSize <= 0 {
		return nil, errors.New("page size must be positive")
	}

	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}

	file, err := os.OpenFile(fileName, flag, perm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open pager file")
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "failed to stat pager file")
	}

	if info.Size()%int64(pageSize) != 0 {
		_ = file.Close()
		return nil, errors.Errorf("file size %d is not a multiple of page size %d", info.Size(), pageSize)
	}

	p := &Pager{
		file:     file,
		fileName: fileName,
		pageSize: pageSize,
		readOnly: readOnly,
		fileSize: uint64(info.Size()),
	}

	if err := p.mmap(); err != nil {
		_ = file.Close()
		return nil, err
	}

	return p, nil
}

// Pager manages a file as a sequence of fixed size pages. Page ids are
// zero based; byte addresses are absolute file offsets.
type Pager struct {
	file     *os.File
	fileName string
	pageSize int
	readOnly bool
	fileSize uint64
	mem      mmap.MMap
}

func (p *Pager) PageSize() int {
	return p.pageSize
}

func (p *Pager) ReadOnly() bool {
	return p.readOnly
}

func (p *Pager) Count() uint64 {
	return p.fileSize / uint64(p.pageSize)
}

// Alloc extends the file by n pages and returns the id of the first new
// page. New pages are zero filled.
func (p *Pager) Alloc(n int) (uint64, error) {
	if p.readOnly {
		return 0, ErrReadOnly
	}
	if n <= 0 {
		return 0, errors.New("allocation count must be positive")
	}

	id := p.Count()

	if err := p.munmap(); err != nil {
		return 0, err
	}

	newSize := p.fileSize + uint64(n)*uint64(p.pageSize)
	if err := p.file.Truncate(int64(newSize)); err != nil {
		return 0, errors.Wrap(err, "failed to grow pager file")
	}
	p.fileSize = newSize

	return id, p.mmap()
}

func (p *Pager) ReadAt(buf []byte, addr uint64) error {
	if addr+uint64(len(buf)) > p.fileSize {
		return ErrOutOfBounds
	}
	copy(buf, p.mem[addr:])
	return nil
}

func (p *Pager) WriteAt(buf []byte, addr uint64) error {
	if p.readOnly {
		return ErrReadOnly
	}
	if addr+uint64(len(buf)) > p.fileSize {
		return ErrOutOfBounds
	}
	copy(p.mem[addr:], buf)
	return nil
}

// Marshal writes the binary form of m into the page with the given id.
// The marshaled form must not exceed the page size.
func (p *Pager) Marshal(id uint64, m encoding.BinaryMarshaler) error {
	buf, err := m.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "failed to marshal page")
	}
	if len(buf) > p.pageSize {
		return errors.Errorf("marshaled size %d exceeds page size %d", len(buf), p.pageSize)
	}
	return p.WriteAt(buf, id*uint64(p.pageSize))
}

// Unmarshal reads the page with the given id into m.
func (p *Pager) Unmarshal(id uint64, m encoding.BinaryUnmarshaler) error {
	buf := make([]byte, p.pageSize)
	if err := p.ReadAt(buf, id*uint64(p.pageSize)); err != nil {
		return err
	}
	return m.UnmarshalBinary(buf)
}

func (p *Pager) Flush() error {
	if p.mem == nil || p.readOnly {
		return nil
	}
	return errors.Wrap(p.mem.Flush(), "failed to flush mmap")
}

func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}

	if err := p.Flush(); err != nil {
		return err
	}
	if err := p.munmap(); err != nil {
		return err
	}

	err := p.file.Close()
	p.file = nil
	return errors.Wrap(err, "failed to close pager file")
}

func (p *Pager) mmap() error {
	if p.fileSize == 0 {
		return nil
	}

	prot := mmap.RDWR
	if p.readOnly {
		prot = mmap.RDONLY
	}

	mem, err := mmap.Map(p.file, prot, 0)
	if err != nil {
		return errors.Wrap(err, "failed to mmap pager file")
	}
	p.mem = mem
	return nil
}

func (p *Pager) munmap() error {
	if p.mem == nil {
		return nil
	}
	err := p.mem.Unmap()
	p.mem = nil
	return errors.Wrap(err, "failed to unmap pager file")
}

package db

const metadataSize = 10

// metadata lives in chunk 0.
type metadata struct {
	dirty bool

	magic    uint32
	version  uint16
	freeHead uint64 // block address of the first free block, 0 if none
}

func (m *metadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, metadataSize)
	bin.PutUint32(buf[0:4], m.magic)
	bin.PutUint16(buf[4:6], m.version)
	bin.PutUint32(buf[6:10], uint32(m.freeHead))
	return buf, nil
}

func (m *metadata) UnmarshalBinary(d []byte) error {
	m.magic = bin.Uint32(d[0:4])
	m.version = bin.Uint16(d[4:6])
	m.freeHead = uint64(bin.Uint32(d[6:10]))
	return nil
}

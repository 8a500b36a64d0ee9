// Package flatbuf implements the single-file flat model format.
//
// File layout:
//
//	0x00  [4]byte  magic "BLIT"
//	0x04  uint32   format version
//	0x08  uint32   flags
//	0x0C  uint32   reserved
//	0x10  uint64   graph section size
//	0x18  uint64   data section size (as stored)
//	0x20  [32]byte SHA-256 of the stored data section
//	0x40  graph section (msgpack)
//	      zero padding to a 64-byte boundary
//	      data section, zstd compressed when FlagCompressed is set
//
// Inside the uncompressed data section every tensor starts on a 64-byte
// boundary. All integers are little-endian.
package flatbuf

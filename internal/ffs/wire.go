// Package ffs manages FunctionFS instances: mounting, writing the
// binary descriptor and strings blocks to ep0, tracking instance
// state, and launching the user-space child process that owns the
// endpoint file descriptors once the service's configured activation
// event arrives.
package ffs

import (
	"encoding/binary"
	"fmt"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// FunctionFS magic numbers and header flags, straight off the kernel
// uapi (include/uapi/linux/usb/functionfs.h). Only the V2 descriptor
// format is supported; there is no V1 compile-time variant.
const (
	descriptorsMagicV2 = 3
	stringsMagic       = 2

	hasFSDesc  = 1 << 0
	hasHSDesc  = 1 << 1
	hasSSDesc  = 1 << 2
	hasMSOSDesc = 1 << 3
)

// EncodeDescriptors packs the full-speed, high-speed and super-speed
// raw descriptor byte strings into the V2 binary block ep0 expects.
// Any of the three may be nil to omit that speed entirely.
func EncodeDescriptors(fsDesc, hsDesc, ssDesc []byte) ([]byte, error) {
	var flags uint32
	var countFields []uint32
	var bodies [][]byte

	if fsDesc != nil {
		n, err := descriptorCount(fsDesc)
		if err != nil {
			return nil, fmt.Errorf("fs descriptors: %w", err)
		}
		flags |= hasFSDesc
		countFields = append(countFields, n)
		bodies = append(bodies, fsDesc)
	}
	if hsDesc != nil {
		n, err := descriptorCount(hsDesc)
		if err != nil {
			return nil, fmt.Errorf("hs descriptors: %w", err)
		}
		flags |= hasHSDesc
		countFields = append(countFields, n)
		bodies = append(bodies, hsDesc)
	}
	if ssDesc != nil {
		n, err := descriptorCount(ssDesc)
		if err != nil {
			return nil, fmt.Errorf("ss descriptors: %w", err)
		}
		flags |= hasSSDesc
		countFields = append(countFields, n)
		bodies = append(bodies, ssDesc)
	}

	headerLen := 4 + 4 + 4 + 4*len(countFields)
	bodyLen := 0
	for _, b := range bodies {
		bodyLen += len(b)
	}
	total := headerLen + bodyLen

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], descriptorsMagicV2)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(total))
	binary.LittleEndian.PutUint32(buf[8:12], flags)
	off := 12
	for _, n := range countFields {
		binary.LittleEndian.PutUint32(buf[off:off+4], n)
		off += 4
	}
	for _, b := range bodies {
		off += copy(buf[off:], b)
	}
	return buf, nil
}

// descriptorCount walks a concatenated run of USB descriptors (each
// beginning with a one-byte bLength) and returns how many there are,
// failing if a zero-length or truncated descriptor is found.
func descriptorCount(raw []byte) (uint32, error) {
	var count uint32
	i := 0
	for i < len(raw) {
		bLength := int(raw[i])
		if bLength == 0 {
			return 0, gadgeterr.New("descriptorCount", gadgeterr.BadValue,
				fmt.Errorf("zero-length descriptor at offset %d", i))
		}
		if i+bLength > len(raw) {
			return 0, gadgeterr.New("descriptorCount", gadgeterr.BadValue,
				fmt.Errorf("descriptor at offset %d truncated (bLength=%d, remaining=%d)", i, bLength, len(raw)-i))
		}
		i += bLength
		count++
	}
	return count, nil
}

// LangStrings is one language's ordered set of strings, in the same
// order descriptors reference them by string index.
type LangStrings struct {
	Lang    uint16
	Strings []string
}

// EncodeStrings packs langs into the strings block ep0 expects after
// the descriptor block.
func EncodeStrings(langs []LangStrings) []byte {
	headerLen := 4 + 4 + 4 + 4
	bodyLen := 0
	for _, l := range langs {
		bodyLen += 2
		for _, s := range l.Strings {
			bodyLen += len(s) + 1
		}
	}
	total := headerLen + bodyLen

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], stringsMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(total))
	strCount := uint32(0)
	if len(langs) > 0 {
		strCount = uint32(len(langs[0].Strings))
	}
	binary.LittleEndian.PutUint32(buf[8:12], strCount)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(langs)))

	off := 16
	for _, l := range langs {
		binary.LittleEndian.PutUint16(buf[off:off+2], l.Lang)
		off += 2
		for _, s := range l.Strings {
			off += copy(buf[off:], s)
			buf[off] = 0
			off++
		}
	}
	return buf
}

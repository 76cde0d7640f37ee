package magic

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/go-macho/types"
)

// Kind is what the first bytes of a file look like.
type Kind int

const (
	Other Kind = iota
	Thin
	Fat
)

func (k Kind) String() string {
	switch k {
	case Thin:
		return "thin"
	case Fat:
		return "fat"
	default:
		return "other"
	}
}

// Classify looks at the leading magic of b. Thin magics are accepted in
// either byte order; the universal magic is big-endian only.
func Classify(b []byte) Kind {
	if len(b) < 4 {
		return Other
	}
	if types.Magic(binary.BigEndian.Uint32(b)) == types.MagicFat {
		return Fat
	}
	for _, o := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch types.Magic(o.Uint32(b)) {
		case types.Magic32, types.Magic64:
			return Thin
		}
	}
	return Other
}

// Sniff classifies the file at filePath without mapping it.
func Sniff(filePath string) (Kind, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Other, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		return Other, fmt.Errorf("failed to read magic: %w", err)
	}
	return Classify(magic[:]), nil
}

func IsMachO(filePath string) (bool, error) {
	k, err := Sniff(filePath)
	if err != nil {
		return false, err
	}
	if k == Other {
		return false, fmt.Errorf("not a macho file")
	}
	return true, nil
}

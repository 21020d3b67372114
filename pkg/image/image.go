// Package image persists compiled units as self-describing CBOR documents.
package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/loxvm/pkg/bytecode"
)

// Version is the image format version written by Marshal.
const Version uint32 = 1

// Magic prefixes image files written by WriteFile.
var Magic = [4]byte{'L', 'X', 'B', 'C'}

var (
	ErrInvalidMagic       = errors.New("invalid magic number: expected LXBC")
	ErrVersionUnsupported = errors.New("unsupported image version")
)

// Image is a compiled unit ready to run: the encoded buffer, the constant
// pool it indexes into, and the hash of the source it was compiled from.
type Image struct {
	Version    uint32           `cbor:"1,keyasint"`
	SourceHash string           `cbor:"2,keyasint,omitempty"`
	Code       []byte           `cbor:"3,keyasint"`
	Constants  []bytecode.Value `cbor:"4,keyasint"`

	// Compiler is the bytecode.CompilerVersion that produced Code
	Compiler uint32 `cbor:"5,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// HashSource returns the hex SHA-256 of source text.
func HashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// FromChunk encodes a chunk into an image.
func FromChunk(c *bytecode.Chunk, sourceHash string) *Image {
	return &Image{
		Version:    Version,
		SourceHash: sourceHash,
		Code:       c.Encode(),
		Constants:  c.Constants,
		Compiler:   bytecode.CompilerVersion,
	}
}

// Current reports whether the image was written in the current format by
// the current compiler, so that recompiling its source would reproduce it.
func (img *Image) Current() bool {
	return img.Version == Version && img.Compiler == bytecode.CompilerVersion
}

// NewVM creates a VM over the image's code and constants.
func (img *Image) NewVM() *bytecode.VM {
	return bytecode.NewVM(img.Code, img.Constants)
}

// Marshal serializes an image to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	return encMode.Marshal(img)
}

// Unmarshal deserializes an image, rejecting versions this build cannot read.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version == 0 || img.Version > Version {
		return nil, fmt.Errorf("%w: %d (supported: 1..%d)", ErrVersionUnsupported, img.Version, Version)
	}
	return &img, nil
}

// WriteFile writes the magic prefix followed by the marshaled image.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return fmt.Errorf("image: marshal: %w", err)
	}
	buf := make([]byte, 0, len(Magic)+len(data))
	buf = append(buf, Magic[:]...)
	buf = append(buf, data...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads an image written by WriteFile.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	if len(data) < len(Magic) || !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidMagic)
	}
	return Unmarshal(data[len(Magic):])
}

package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// ErrMalformed signals bytes that are not a document produced by Marshal.
var ErrMalformed = errors.New("document: malformed binary")

// magic prefixes every encoded document; the last byte is the format version.
var magic = []byte("SFDOC\x01")

// maxDecodedSize bounds decompression so a crafted frame cannot exhaust memory.
const maxDecodedSize = 64 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("document: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("document: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("document: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("document: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes doc into the stored binary form. Identical documents always
// produce identical bytes.
func Marshal(doc Document) ([]byte, error) {
	body, err := encMode.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	out := make([]byte, 0, len(magic)+len(body)/2)
	out = append(out, magic...)
	return zstdEncoder.EncodeAll(body, out), nil
}

// Unmarshal parses bytes produced by Marshal. Any other input fails with an
// error wrapping ErrMalformed.
func Unmarshal(data []byte) (Document, error) {
	if !bytes.HasPrefix(data, magic) {
		return Document{}, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	body, err := zstdDecoder.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: decompress: %v", ErrMalformed, err)
	}
	var doc Document
	if err := decMode.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	for i, p := range doc.Pages {
		if p.Width <= 0 || p.Height <= 0 {
			return Document{}, fmt.Errorf("%w: page %d has no size", ErrMalformed, i+1)
		}
	}
	return doc, nil
}

// PageCount decodes data and reports its number of pages.
func PageCount(data []byte) (int, error) {
	doc, err := Unmarshal(data)
	if err != nil {
		return 0, err
	}
	return len(doc.Pages), nil
}

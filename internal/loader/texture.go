package loader

import (
	"bytes"
	"encoding/binary"

	"assetd/pkg/types"
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	ktx2Signature = []byte{0xAB, 'K', 'T', 'X', ' ', '2', '0', 0xBB, 0x0D, 0x0A, 0x1A, 0x0A}
)

// decodeTexture validates the container for the selected codec and extracts
// pixel dimensions. Pixel data itself is opaque to the engine; the renderer
// transcodes or uploads it as-is.
func decodeTexture(url string, c types.Codec, data []byte) (*Texture, error) {
	var (
		w, h int
		err  error
	)
	switch c {
	case types.CodecKTX2:
		w, h, err = ktx2Dimensions(url, data)
	case types.CodecWebP:
		w, h, err = webpDimensions(url, data)
	case types.CodecPNG:
		w, h, err = pngDimensions(url, data)
	default:
		return nil, &DecodeError{URL: url, Reason: "unsupported texture codec: " + string(c)}
	}
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, &DecodeError{URL: url, Reason: "texture has zero dimension"}
	}
	return &Texture{Codec: c, Width: w, Height: h, Payload: data}, nil
}

func pngDimensions(url string, data []byte) (int, int, error) {
	if len(data) < 24 || !bytes.Equal(data[:8], pngSignature) {
		return 0, 0, &DecodeError{URL: url, Reason: "invalid PNG signature"}
	}
	if string(data[12:16]) != "IHDR" {
		return 0, 0, &DecodeError{URL: url, Reason: "PNG missing IHDR chunk"}
	}
	w := int(binary.BigEndian.Uint32(data[16:20]))
	h := int(binary.BigEndian.Uint32(data[20:24]))
	return w, h, nil
}

func ktx2Dimensions(url string, data []byte) (int, int, error) {
	if len(data) < 28 || !bytes.Equal(data[:12], ktx2Signature) {
		return 0, 0, &DecodeError{URL: url, Reason: "invalid KTX2 identifier"}
	}
	w := int(binary.LittleEndian.Uint32(data[20:24]))
	h := int(binary.LittleEndian.Uint32(data[24:28]))
	return w, h, nil
}

func webpDimensions(url string, data []byte) (int, int, error) {
	if len(data) < 25 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return 0, 0, &DecodeError{URL: url, Reason: "invalid WebP container"}
	}
	switch string(data[12:16]) {
	case "VP8 ":
		// Lossy bitstream: start code then 14-bit dimensions.
		if len(data) < 30 || data[23] != 0x9D || data[24] != 0x01 || data[25] != 0x2A {
			return 0, 0, &DecodeError{URL: url, Reason: "invalid VP8 start code"}
		}
		w := int(binary.LittleEndian.Uint16(data[26:28])) & 0x3FFF
		h := int(binary.LittleEndian.Uint16(data[28:30])) & 0x3FFF
		return w, h, nil
	case "VP8L":
		if data[20] != 0x2F {
			return 0, 0, &DecodeError{URL: url, Reason: "invalid VP8L signature"}
		}
		bits := binary.LittleEndian.Uint32(data[21:25])
		w := int(bits&0x3FFF) + 1
		h := int((bits>>14)&0x3FFF) + 1
		return w, h, nil
	case "VP8X":
		if len(data) < 30 {
			return 0, 0, &DecodeError{URL: url, Reason: "truncated VP8X header"}
		}
		w := 1 + int(uint32(data[24])|uint32(data[25])<<8|uint32(data[26])<<16)
		h := 1 + int(uint32(data[27])|uint32(data[28])<<8|uint32(data[29])<<16)
		return w, h, nil
	default:
		return 0, 0, &DecodeError{URL: url, Reason: "unknown WebP variant"}
	}
}

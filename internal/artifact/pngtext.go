package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// TextEntry is one keyword/value pair stored in a PNG text chunk.
type TextEntry struct {
	Key   string
	Value string
}

// EmbedText inserts text chunks right after IHDR. ASCII values use tEXt;
// anything else goes into an uncompressed UTF-8 iTXt chunk.
func EmbedText(src []byte, entries []TextEntry) ([]byte, error) {
	if !bytes.HasPrefix(src, pngSignature) {
		return nil, errors.New("not a png")
	}
	// signature + IHDR (length, type, 13 bytes, crc)
	ihdrEnd := len(pngSignature) + 4 + 4 + 13 + 4
	if len(src) < ihdrEnd || string(src[12:16]) != "IHDR" {
		return nil, errors.New("png: missing IHDR")
	}
	var out bytes.Buffer
	out.Grow(len(src) + 256*len(entries))
	out.Write(src[:ihdrEnd])
	for _, e := range entries {
		if e.Key == "" || len(e.Key) > 79 {
			return nil, errors.New("png: invalid text keyword")
		}
		if isASCII(e.Value) {
			writeChunk(&out, "tEXt", append(append([]byte(e.Key), 0), e.Value...))
			continue
		}
		data := append([]byte(e.Key), 0, 0, 0, 0, 0)
		data = append(data, e.Value...)
		writeChunk(&out, "iTXt", data)
	}
	out.Write(src[ihdrEnd:])
	return out.Bytes(), nil
}

// ReadText returns all tEXt and uncompressed iTXt entries in file order.
func ReadText(src []byte) ([]TextEntry, error) {
	if !bytes.HasPrefix(src, pngSignature) {
		return nil, errors.New("not a png")
	}
	r := bytes.NewReader(src[len(pngSignature):])
	var out []TextEntry
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		n := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])
		if int64(n) > int64(r.Len()) {
			return nil, errors.New("png: truncated chunk")
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			return nil, err
		}
		switch typ {
		case "tEXt":
			if k, v, ok := bytes.Cut(data, []byte{0}); ok {
				out = append(out, TextEntry{Key: string(k), Value: latin1ToUTF8(v)})
			}
		case "iTXt":
			k, rest, ok := bytes.Cut(data, []byte{0})
			if !ok || len(rest) < 2 || rest[0] != 0 {
				continue
			}
			rest = rest[2:]
			// language tag and translated keyword
			for i := 0; i < 2; i++ {
				if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
					break
				}
			}
			if ok {
				out = append(out, TextEntry{Key: string(k), Value: string(rest)})
			}
		case "IEND":
			return out, nil
		}
	}
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	w.Write(n[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	w.WriteString(typ)
	w.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	w.Write(n[:])
}

func isASCII(s string) bool {
	for _, r := range s {
		if r == 0 || r > 0x7f {
			return false
		}
	}
	return true
}

// tEXt payloads are Latin-1.
func latin1ToUTF8(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

package display

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"

	// chunkSize is the base64 payload limit per escape sequence.
	chunkSize = 4096
	rawChunk  = chunkSize / 4 * 3
)

// KittyEncoder writes PNG data using the kitty graphics protocol.
type KittyEncoder struct {
	out io.Writer
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

// Encode streams r in chunks so large images never sit in memory as one
// base64 string. It reports whether anything was written.
func (e *KittyEncoder) Encode(r io.Reader) (bool, error) {
	br := bufio.NewReaderSize(r, rawChunk*2)
	buf := make([]byte, rawChunk)
	encoded := make([]byte, chunkSize)

	for i := 0; ; i++ {
		n, err := io.ReadFull(br, buf)
		if err == io.EOF {
			return i > 0, nil
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return i > 0, fmt.Errorf("failed to read image: %w", err)
		}

		_, peekErr := br.Peek(1)
		last := peekErr != nil

		base64.StdEncoding.Encode(encoded, buf[:n])
		payload := encoded[:base64.StdEncoding.EncodedLen(n)]

		if err := e.writeChunk(chunkParams(i == 0, last), payload); err != nil {
			return true, err
		}
		if last {
			return true, nil
		}
	}
}

func chunkParams(first, last bool) string {
	switch {
	case first && last:
		return "a=T,f=100,q=2"
	case first:
		return "a=T,f=100,q=2,m=1"
	case last:
		return "m=0"
	default:
		return "m=1"
	}
}

func (e *KittyEncoder) writeChunk(params string, payload []byte) error {
	_, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, payload, escapeEnd)
	return err
}

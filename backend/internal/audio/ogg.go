package audio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const oggHeaderSize = 27

// ErrInvalidOgg is returned when the stream does not start a page where one is expected
var ErrInvalidOgg = errors.New("invalid OGG header")

var (
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")
)

// OggReader yields the Opus packets of an Ogg stream, skipping the OpusHead and OpusTags headers.
// Packets spanning page boundaries are reassembled.
type OggReader struct {
	r       *bufio.Reader
	header  [oggHeaderSize]byte
	partial []byte
	ready   [][]byte
}

// NewOggReader creates a reader over r
func NewOggReader(r io.Reader) *OggReader {
	return &OggReader{r: bufio.NewReader(r)}
}

// ReadPacket returns the next audio packet, or io.EOF at the end of the stream
func (o *OggReader) ReadPacket() ([]byte, error) {
	for len(o.ready) == 0 {
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
	packet := o.ready[0]
	o.ready = o.ready[1:]
	return packet, nil
}

func (o *OggReader) readPage() error {
	if _, err := io.ReadFull(o.r, o.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated OGG page header: %w", err)
		}
		return err
	}

	if string(o.header[0:4]) != "OggS" {
		return ErrInvalidOgg
	}

	segCount := int(o.header[26])
	if segCount == 0 {
		return nil
	}

	segTable := make([]byte, segCount)
	if _, err := io.ReadFull(o.r, segTable); err != nil {
		return fmt.Errorf("truncated OGG segment table: %w", err)
	}

	for _, seg := range segTable {
		segLen := int(seg)
		if segLen > 0 {
			data := make([]byte, segLen)
			if _, err := io.ReadFull(o.r, data); err != nil {
				return fmt.Errorf("truncated OGG segment: %w", err)
			}
			o.partial = append(o.partial, data...)
		}

		// A lacing value of 255 means the packet continues in the next segment (or page)
		if segLen < 255 {
			o.finishPacket()
		}
	}
	return nil
}

func (o *OggReader) finishPacket() {
	packet := o.partial
	o.partial = nil
	if len(packet) == 0 {
		return
	}
	if bytes.HasPrefix(packet, opusHeadMagic) || bytes.HasPrefix(packet, opusTagsMagic) {
		return
	}
	o.ready = append(o.ready, packet)
}

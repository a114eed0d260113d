package style

import "github.com/bfv/configs/pkg/document"

// BinaryStyle selects how byte payloads are written. The encoding flips to
// the other representation when the payload is longer than
// SwitchIfLongerThan or shorter than SwitchIfShorterThan. -1 disables a
// threshold.
type BinaryStyle struct {
	Encoding            document.Encoding
	SwitchIfLongerThan  int
	SwitchIfShorterThan int
	Depth               int
}

// DefaultBinary returns the binary style used when a property declares one
// without further settings: base64 blocks, short payloads as bytes.
func DefaultBinary() BinaryStyle {
	return BinaryStyle{
		Encoding:            document.Base64Block,
		SwitchIfLongerThan:  -1,
		SwitchIfShorterThan: 10,
		Depth:               1,
	}
}

// EncodingFor returns the encoding used for a payload of n bytes. A payload
// sitting exactly on a threshold is written as a base64 block.
func (b *BinaryStyle) EncodingFor(n int) document.Encoding {
	if b == nil {
		return document.ByteSequence
	}
	if n == b.SwitchIfLongerThan || n == b.SwitchIfShorterThan {
		return document.Base64Block
	}
	longer := b.SwitchIfLongerThan >= 0 && n > b.SwitchIfLongerThan
	shorter := b.SwitchIfShorterThan >= 0 && n < b.SwitchIfShorterThan
	if longer || shorter {
		return flip(b.Encoding)
	}
	return b.Encoding
}

func flip(e document.Encoding) document.Encoding {
	if e == document.Base64Block {
		return document.ByteSequence
	}
	return document.Base64Block
}

// Render wraps data in a Binary node with the selected encoding.
func (b *BinaryStyle) Render(data []byte) *document.Binary {
	return &document.Binary{Data: data, Encoding: b.EncodingFor(len(data))}
}

package ltree

import (
	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = (*Path)(nil)
	_ msgpack.CustomDecoder = (*Path)(nil)
)

// EncodeMsgpack encodes the path as its dotted string form.
func (p *Path) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(p.raw)
}

// DecodeMsgpack decodes and validates a dotted string form.
func (p *Path) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

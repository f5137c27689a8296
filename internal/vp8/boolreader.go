package vp8

// boolDecoder is the boolean entropy decoder from RFC 6386 section 7.3.
type boolDecoder struct {
	data     []byte
	pos      int
	value    uint32
	rng      uint32
	bitCount int
	overrun  int
}

func newBoolDecoder(data []byte) *boolDecoder {
	d := &boolDecoder{data: data, rng: 255}
	d.value = uint32(d.nextByte())<<8 | uint32(d.nextByte())
	return d
}

func (d *boolDecoder) nextByte() byte {
	if d.pos < len(d.data) {
		b := d.data[d.pos]
		d.pos++
		return b
	}
	d.overrun++
	return 0
}

// exhausted reports whether decoding has read past the two bytes of
// look-ahead the decoder keeps buffered.
func (d *boolDecoder) exhausted() bool {
	return d.overrun > 2
}

func (d *boolDecoder) readBool(prob uint8) bool {
	split := 1 + (((d.rng - 1) * uint32(prob)) >> 8)
	bigSplit := split << 8
	var bit bool
	if d.value >= bigSplit {
		bit = true
		d.rng -= split
		d.value -= bigSplit
	} else {
		d.rng = split
	}
	for d.rng < 128 {
		d.value <<= 1
		d.rng <<= 1
		d.bitCount++
		if d.bitCount == 8 {
			d.bitCount = 0
			d.value |= uint32(d.nextByte())
		}
	}
	return bit
}

func (d *boolDecoder) readFlag() bool {
	return d.readBool(128)
}

func (d *boolDecoder) readLiteral(bits int) uint32 {
	var v uint32
	for ; bits > 0; bits-- {
		v <<= 1
		if d.readFlag() {
			v |= 1
		}
	}
	return v
}

// readSigned reads a magnitude followed by a sign flag.
func (d *boolDecoder) readSigned(bits int) int8 {
	v := int8(d.readLiteral(bits))
	if d.readFlag() {
		return -v
	}
	return v
}

// readOptionalSigned reads a presence flag and, when set, a signed value.
func (d *boolDecoder) readOptionalSigned(bits int) (int8, bool) {
	if !d.readFlag() {
		return 0, false
	}
	return d.readSigned(bits), true
}

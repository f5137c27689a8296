package testsupport

// BoolEncoder is the boolean entropy encoder from RFC 6386 section 7.3. It
// produces first partitions the vp8 package can parse.
type BoolEncoder struct {
	out      []byte
	rng      uint32
	bottom   uint32
	bitCount int
}

// NewBoolEncoder returns an empty encoder.
func NewBoolEncoder() *BoolEncoder {
	return &BoolEncoder{rng: 255, bitCount: 24}
}

func (e *BoolEncoder) addOne() {
	i := len(e.out) - 1
	for i >= 0 && e.out[i] == 255 {
		e.out[i] = 0
		i--
	}
	if i >= 0 {
		e.out[i]++
	}
}

// Bool writes one bit with the given probability of being zero.
func (e *BoolEncoder) Bool(prob uint8, bit bool) {
	split := 1 + (((e.rng - 1) * uint32(prob)) >> 8)
	if bit {
		e.bottom += split
		e.rng -= split
	} else {
		e.rng = split
	}
	for e.rng < 128 {
		e.rng <<= 1
		if e.bottom&(1<<31) != 0 {
			e.addOne()
		}
		e.bottom <<= 1
		e.bitCount--
		if e.bitCount == 0 {
			e.out = append(e.out, byte(e.bottom>>24))
			e.bottom &= (1 << 24) - 1
			e.bitCount = 8
		}
	}
}

// Flag writes an evenly weighted bit.
func (e *BoolEncoder) Flag(bit bool) {
	e.Bool(128, bit)
}

// Literal writes the low bits of v, most significant first.
func (e *BoolEncoder) Literal(v uint32, bits int) {
	for bits--; bits >= 0; bits-- {
		e.Flag(v>>uint(bits)&1 == 1)
	}
}

// Signed writes a magnitude followed by a sign flag.
func (e *BoolEncoder) Signed(v int8, bits int) {
	mag := int(v)
	if mag < 0 {
		mag = -mag
	}
	e.Literal(uint32(mag), bits)
	e.Flag(v < 0)
}

// OptionalSigned writes a presence flag and, when present, a signed value.
func (e *BoolEncoder) OptionalSigned(v int8, present bool, bits int) {
	e.Flag(present)
	if present {
		e.Signed(v, bits)
	}
}

// Bytes flushes the encoder and returns the encoded partition. The encoder
// must not be used afterwards.
func (e *BoolEncoder) Bytes() []byte {
	c := e.bitCount
	v := e.bottom
	if v&(1<<uint(32-c)) != 0 {
		e.addOne()
	}
	v <<= uint(c & 7)
	c >>= 3
	for c--; c >= 0; c-- {
		v <<= 8
	}
	for c = 0; c < 4; c++ {
		e.out = append(e.out, byte(v>>24))
		v <<= 8
	}
	return e.out
}

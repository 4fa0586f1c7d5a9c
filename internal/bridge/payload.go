package bridge

import "unicode/utf16"

// Payload is an owned UTF-16 string buffer. Ownership transfers to whichever
// goroutine pops it off a queue; callers must not retain a reference to a
// payload they have handed to append.
type Payload struct {
	units []uint16
}

// NewPayloadFromUTF8 converts a UTF-8 string into an owned UTF-16 buffer.
// Malformed input is substituted with the Unicode replacement character,
// matching the conversion Go's string->[]rune path already performs.
func NewPayloadFromUTF8(s string) Payload {
	if s == "" {
		return Payload{}
	}
	return Payload{units: utf16.Encode([]rune(s))}
}

// UTF8 renders the payload back as a UTF-8 string.
func (p Payload) UTF8() string {
	if len(p.units) == 0 {
		return ""
	}
	return string(utf16.Decode(p.units))
}

func (p Payload) Empty() bool {
	return len(p.units) == 0
}

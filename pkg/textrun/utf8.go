package textrun

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// utf8State reassembles codepoints and groups them into runs by timestamp.
//
// message holds complete codepoints not yet emitted; multibyte holds the bytes of a
// codepoint still waiting for continuation bytes. Outside a multibyte sequence
// begin == end always holds.
type utf8State struct {
	message   []byte
	multibyte []byte
	expected  int
	begin     float64
	end       float64
	stamped   bool
}

// timestamp moves the decoder to ts. Pending text is closed at the previous timestamp.
func (d *Decoder) timestamp(ts float64) {
	u := &d.text
	if u.stamped && ts == u.end {
		return
	}
	u.stamped = true

	d.emitMessage()

	// mid-codepoint: the eventual run spans from the lead byte's timestamp
	if u.multibyte == nil {
		u.begin = ts
	}
	u.end = ts
}

func (d *Decoder) parseUTF8(b byte) {
	u := &d.text

	if u.multibyte != nil {
		if b&0xC0 == 0x80 {
			u.multibyte = append(u.multibyte, b)
			if len(u.multibyte) == u.expected {
				u.message = append(u.message, u.multibyte...)
				u.multibyte = nil
				if u.begin != u.end {
					d.emitMessage()
					u.begin = u.end
				}
			}
			return
		}

		// invalid continuation: dump what we have, then treat b as a lead byte
		d.emitMessage()
		d.emitBroken(u.multibyte)
		u.multibyte = nil
		u.begin = u.end
	}

	switch {
	case b&0x80 == 0x00:
		u.message = append(u.message, b)
	case b&0xE0 == 0xC0:
		u.startMultibyte(b, 2)
	case b&0xF0 == 0xE0:
		u.startMultibyte(b, 3)
	case b&0xF8 == 0xF0:
		u.startMultibyte(b, 4)
	default:
		d.emitMessage()
		d.emitBroken([]byte{b})
	}
}

func (u *utf8State) startMultibyte(lead byte, expected int) {
	u.multibyte = append(make([]byte, 0, expected), lead)
	u.expected = expected
}

func (d *Decoder) emitMessage() {
	u := &d.text
	if len(u.message) == 0 {
		return
	}
	d.runs = append(d.runs, TextRun{
		Begin: u.begin,
		End:   u.end,
		Text:  replaceInvalid(u.message),
		Style: d.state,
	})
	u.message = u.message[:0]
}

// replaceInvalid substitutes U+FFFD for every byte that does not start a valid
// codepoint. Well-formed but invalid sequences (overlong forms, surrogates, values
// above U+10FFFF) get one replacement per byte.
func replaceInvalid(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var s strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			s.WriteRune(utf8.RuneError)
		} else {
			s.Write(b[:size])
		}
		b = b[size:]
	}
	return s.String()
}

func (d *Decoder) emitBroken(raw []byte) {
	d.runs = append(d.runs, TextRun{
		Begin:  d.text.begin,
		End:    d.text.end,
		Text:   hex.EncodeToString(raw),
		Broken: true,
		Style:  d.state,
	})
}

func (d *Decoder) flushUTF8() {
	u := &d.text
	d.emitMessage()
	if u.multibyte != nil {
		d.emitBroken(u.multibyte)
		u.multibyte = nil
		u.begin = u.end
	}
}

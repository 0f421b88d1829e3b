package textrun

import (
	"regexp"
	"strings"
)

const esc = 0x1B

// Steps of the escape sequence parser.
const (
	stepScan         = iota // waiting for ESC
	stepIntroducer          // seen ESC, want '['
	stepParameters          // 0x30–0x3F
	stepIntermediate        // 0x20–0x2F
	stepFinal               // 0x40–0x7E
)

// sgrPattern matches the text after "ESC[" of a Select Graphic Rendition sequence.
var sgrPattern = regexp.MustCompile(`^\d*(;\d*)*m$`)

type ansiState struct {
	step int
	seq  []byte
}

func (d *Decoder) parseANSI(b byte) {
	a := &d.esc
	switch a.step {
	case stepScan:
		if b == esc {
			a.seq = append(a.seq[:0], b)
			a.step = stepIntroducer
		} else {
			d.parseUTF8(b)
		}
		return
	case stepIntroducer:
		if b == '[' {
			a.seq = append(a.seq, b)
			a.step = stepParameters
			return
		}
		d.abort()
		d.parseANSI(b)
		return
	case stepParameters:
		if 0x30 <= b && b <= 0x3F {
			a.seq = append(a.seq, b)
			return
		}
		a.step = stepIntermediate
		fallthrough
	case stepIntermediate:
		if 0x20 <= b && b <= 0x2F {
			a.seq = append(a.seq, b)
			return
		}
		a.step = stepFinal
		fallthrough
	case stepFinal:
		if 0x40 <= b && b <= 0x7E {
			a.seq = append(a.seq, b)
			d.interpret()
			return
		}
		d.abort()
		d.parseANSI(b)
	}
}

// abort replays the buffered sequence into the UTF-8 layer so it renders literally.
func (d *Decoder) abort() {
	a := &d.esc
	seq := a.seq
	a.seq = nil
	a.step = stepScan
	for _, b := range seq {
		d.parseUTF8(b)
	}
}

func (d *Decoder) interpret() {
	command := string(d.esc.seq[2:])
	if !sgrPattern.MatchString(command) {
		d.abort()
		return
	}

	d.emitMessage()
	for _, param := range strings.Split(strings.TrimSuffix(command, "m"), ";") {
		d.state.apply(param)
	}
	d.esc.seq = d.esc.seq[:0]
	d.esc.step = stepScan
}

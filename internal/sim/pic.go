package sim

// 8259A command word bits.
const (
	icw1Bit    = 0x10
	icw1IC4    = 0x01
	icw1Single = 0x02

	ocwSelect    = 0x18
	ocw3Bits     = 0x08
	ocw3ReadReg  = 0x02
	ocw3ISR      = 0x01
	ocw2EOI      = 0x20
	ocw2Specific = 0x40
)

// pic models a single 8259A in edge triggered, fully nested mode.
type pic struct {
	irr, isr, imr uint8

	base    uint8
	cascade uint8

	// icwStep is 0 when operational, otherwise the number of the next
	// expected initialization word minus one.
	icwStep  int
	needICW4 bool
	single   bool
	readISR  bool
}

func (p *pic) writeCommand(v uint8) {
	switch {
	case v&icw1Bit != 0:
		*p = pic{icwStep: 1, needICW4: v&icw1IC4 != 0, single: v&icw1Single != 0}
	case v&ocwSelect == ocw3Bits:
		if v&ocw3ReadReg != 0 {
			p.readISR = v&ocw3ISR != 0
		}
	case v&ocw2EOI != 0:
		if v&ocw2Specific != 0 {
			p.isr &^= 1 << (v & 7)
			return
		}
		// Non-specific EOI clears the highest priority in-service bit.
		p.isr &= p.isr - 1
	}
}

func (p *pic) writeData(v uint8) {
	switch p.icwStep {
	case 0:
		p.imr = v
	case 1:
		p.base = v &^ 7
		p.icwStep = 2
		if p.single {
			p.icwStep = 3
		}
		if p.icwStep == 3 && !p.needICW4 {
			p.icwStep = 0
		}
	case 2:
		p.cascade = v
		p.icwStep = 3
		if !p.needICW4 {
			p.icwStep = 0
		}
	case 3:
		p.icwStep = 0
	}
}

func (p *pic) readCommand() uint8 {
	if p.readISR {
		return p.isr
	}
	return p.irr
}

func (p *pic) readData() uint8 {
	return p.imr
}

func (p *pic) initialized() bool {
	return p.icwStep == 0 && p.base != 0
}

// next returns the highest priority unmasked request that is not blocked by
// an in-service line of equal or higher priority.
func (p *pic) next() (uint8, bool) {
	req := p.irr &^ p.imr
	for i := uint8(0); i < 8; i++ {
		bit := uint8(1) << i
		if p.isr&bit != 0 {
			return 0, false
		}
		if req&bit != 0 {
			return i, true
		}
	}
	return 0, false
}

func (p *pic) ack(i uint8) {
	p.irr &^= 1 << i
	p.isr |= 1 << i
}

// picPair is the cascaded master/slave pair of a PC/AT. The slave is wired
// to master line 2.
type picPair struct {
	master, slave pic
}

const cascadeLine = 2

func (pp *picPair) raise(line uint8) {
	if line < 8 {
		pp.master.irr |= 1 << line
		return
	}
	pp.slave.irr |= 1 << (line - 8)
}

// syncCascade drives the master cascade request from the slave INT output.
func (pp *picPair) syncCascade() {
	if _, ok := pp.slave.next(); ok {
		pp.master.irr |= 1 << cascadeLine
	} else {
		pp.master.irr &^= 1 << cascadeLine
	}
}

// pending reports whether an interrupt would be signalled to the CPU.
func (pp *picPair) pending() bool {
	if !pp.master.initialized() {
		return false
	}
	pp.syncCascade()
	_, ok := pp.master.next()
	return ok
}

// acknowledge runs the INTA cycle and returns the vector supplied by the
// controllers.
func (pp *picPair) acknowledge() (uint8, bool) {
	if !pp.pending() {
		return 0, false
	}

	line, _ := pp.master.next()
	pp.master.ack(line)
	if line != cascadeLine {
		return pp.master.base + line, true
	}

	slaveLine, _ := pp.slave.next()
	pp.slave.ack(slaveLine)
	return pp.slave.base + slaveLine, true
}

// spurious injects a request that disappears before it is acknowledged. The
// CPU receives the lowest priority vector of the controller without the
// in-service bit being set.
func (pp *picPair) spurious(slave bool) uint8 {
	if !slave {
		return pp.master.base + 7
	}
	pp.master.isr |= 1 << cascadeLine
	return pp.slave.base + 7
}

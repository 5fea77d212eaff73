package irq

import (
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
)

// I/O ports of the cascaded 8259A pair.
const (
	masterCmdPort  = 0x20
	masterDataPort = 0x21
	slaveCmdPort   = 0xa0
	slaveDataPort  = 0xa1
)

// Command words.
const (
	icw1Init      = 0x10
	icw1NeedsICW4 = 0x01
	icw4Mode8086  = 0x01

	ocw2EOI     = 0x20
	ocw3ReadIRR = 0x0a
	ocw3ReadISR = 0x0b
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn            = cpu.PortWriteByte
	portReadByteFn             = cpu.PortReadByte
	ioWaitFn                   = cpu.IOWait
	saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
	restoreInterruptsFn        = cpu.RestoreInterrupts
)

// programPIC runs the ICW1-ICW4 initialization sequence on both controllers:
// edge triggered, cascaded through line 2, 8086 mode, master vectors starting
// at abi.IRQBase and slave vectors right after it.
func programPIC() {
	portWriteByteFn(masterCmdPort, icw1Init|icw1NeedsICW4)
	ioWaitFn()
	portWriteByteFn(slaveCmdPort, icw1Init|icw1NeedsICW4)
	ioWaitFn()

	portWriteByteFn(masterDataPort, abi.IRQBase)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, abi.IRQBase+8)
	ioWaitFn()

	// Tell the master that the slave sits on the cascade line and the
	// slave its cascade identity.
	portWriteByteFn(masterDataPort, 1<<Cascade)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, uint8(Cascade))
	ioWaitFn()

	portWriteByteFn(masterDataPort, icw4Mode8086)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, icw4Mode8086)
	ioWaitFn()
}

// GetMask returns the interrupt mask registers of both controllers. Bit n is
// set if line n is masked.
func GetMask() uint16 {
	return uint16(portReadByteFn(masterDataPort)) | uint16(portReadByteFn(slaveDataPort))<<8
}

// SetMask programs both interrupt mask registers. Interrupts are disabled
// while the registers are written so that no IRQ is delivered against a
// half-applied mask.
func SetMask(mask uint16) {
	enabled := saveAndDisableInterruptsFn()
	portWriteByteFn(masterDataPort, uint8(mask))
	portWriteByteFn(slaveDataPort, uint8(mask>>8))
	restoreInterruptsFn(enabled)
}

// Mask disables delivery of line. Masking an already masked line does not
// touch the hardware.
func Mask(line Line) {
	if line >= NumLines {
		return
	}

	enabled := saveAndDisableInterruptsFn()
	if mask := GetMask(); mask&line.bit() == 0 {
		SetMask(mask | line.bit())
	}
	restoreInterruptsFn(enabled)
}

// Unmask enables delivery of line. Unmasking an already unmasked line does
// not touch the hardware.
func Unmask(line Line) {
	if line >= NumLines {
		return
	}

	enabled := saveAndDisableInterruptsFn()
	if mask := GetMask(); mask&line.bit() != 0 {
		SetMask(mask &^ line.bit())
	}
	restoreInterruptsFn(enabled)
}

// End signals end-of-interrupt for line. Lines served by the slave need an
// EOI on both controllers since the master saw the request on the cascade
// line.
func End(line Line) {
	if line >= 8 {
		portWriteByteFn(slaveCmdPort, ocw2EOI)
	}
	portWriteByteFn(masterCmdPort, ocw2EOI)
}

// inService returns true if the controller owning line reports it in its
// in-service register.
func inService(line Line) bool {
	cmdPort, bit := uint16(masterCmdPort), uint8(line)
	if line >= 8 {
		cmdPort, bit = slaveCmdPort, bit-8
	}

	portWriteByteFn(cmdPort, ocw3ReadISR)
	return portReadByteFn(cmdPort)&(1<<bit) != 0
}

// Pending returns the interrupt request registers of both controllers.
func Pending() uint16 {
	portWriteByteFn(masterCmdPort, ocw3ReadIRR)
	portWriteByteFn(slaveCmdPort, ocw3ReadIRR)
	return uint16(portReadByteFn(masterCmdPort)) | uint16(portReadByteFn(slaveCmdPort))<<8
}

// Package sim runs the kernel core on a modelled PC: an interrupt flag, a
// cascaded 8259A pair, an 8042 keyboard controller and the descriptor table
// registers. The machine implements the hosted cpu backend so the kernel
// packages drive it through their regular port I/O and table loads.
//
// The kernel keeps its state in package variables, so a process can host a
// single booted Machine.
package sim

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
	"github.com/whampson/ohwes/kernel/desc"
	"github.com/whampson/ohwes/kernel/gate"
	"github.com/whampson/ohwes/kernel/irq"
	"github.com/whampson/ohwes/kernel/kmain"
	"github.com/whampson/ohwes/kernel/task"
	"github.com/whampson/ohwes/kernel/usermem"
)

const (
	postPort = 0x80

	// eflagsIF is the interrupt enable bit; bit 1 always reads as set.
	eflagsIF       = 0x200
	eflagsReserved = 0x2

	// userEIP is reported as the interrupted instruction of the scripted
	// user program.
	userEIP = 0x00400000

	// stopStatus is the exit status of a task terminated by Stop.
	stopStatus = 128 + 15
)

var (
	// ErrHalted is returned once the CPU has executed HLT with interrupts
	// disabled or the kernel panicked.
	ErrHalted = errors.New("cpu halted")

	// ErrNoTask is returned by Syscall if there is no live user task.
	ErrNoTask = errors.New("no running task")

	// ErrProtection is returned by Syscall if the system call gate cannot
	// be used from ring 3.
	ErrProtection = errors.New("general protection fault raising the system call vector")

	// ErrBooted is returned by Boot if a machine was already booted in
	// this process.
	ErrBooted = errors.New("a machine has already been booted")

	bootMu sync.Mutex
	booted bool
)

// Exit records the termination of a task.
type Exit struct {
	TaskID uint32
	Status int32
}

// Machine is a simulated PC. All kernel code runs with mu held; mu stands
// for the single CPU.
type Machine struct {
	mu   sync.Mutex
	idle *sync.Cond
	log  *logrus.Entry
	cfg  Config

	ifFlag  bool
	waiting bool
	halted  bool
	stopped bool

	pics picPair
	kbc  kbc

	gdtr, idtr cpu.DescriptorTableRegister
	ldtr, tr   uint16
	cs, ds     uint16

	mem     *usermem.BytesIO
	console io.Writer
	exits   []Exit
	prev    cpu.Backend
}

// New returns a powered-off machine whose console output is written to
// console.
func New(cfg Config, console io.Writer, log *logrus.Logger) *Machine {
	m := &Machine{
		cfg:     cfg,
		log:     log.WithField("component", "sim"),
		mem:     &usermem.BytesIO{Base: cfg.UserBase, Bytes: make([]byte, cfg.UserSize)},
		console: console,
	}
	m.idle = sync.NewCond(&m.mu)
	return m
}

// Boot attaches the machine to the kernel and brings up the core.
func (m *Machine) Boot() error {
	bootMu.Lock()
	defer bootMu.Unlock()
	if booted {
		return ErrBooted
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prev = cpu.Attach(m)
	task.SetExitHook(m.onExit)

	if err := kmain.Boot(kmain.Config{KernelStack: m.cfg.KernelStack, UserMem: m.mem, Console: m.console}); err != nil {
		cpu.Attach(m.prev)
		return err
	}

	booted = true
	m.log.WithFields(logrus.Fields{
		"gdtr": m.gdtr.Base(),
		"idtr": m.idtr.Base(),
		"tr":   m.tr,
		"ldtr": m.ldtr,
	}).Info("kernel core booted")
	return nil
}

// Stop wakes a CPU waiting for an interrupt. The task that waited is
// terminated with stopStatus and its blocked read fails with EINTR.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	m.idle.Broadcast()
}

// Memory returns the user address space.
func (m *Machine) Memory() *usermem.BytesIO {
	return m.mem
}

// Exits returns the recorded task exits.
func (m *Machine) Exits() []Exit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Exit(nil), m.exits...)
}

// Halted returns true if the CPU has stopped executing.
func (m *Machine) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// State is a snapshot of the CPU and controller registers.
type State struct {
	InterruptFlag bool
	GDTBase       uint32
	GDTLimit      uint16
	IDTBase       uint32
	IDTLimit      uint16
	LDTR, TR      uint16
	CS, DS        uint16

	MasterIMR, MasterIRR, MasterISR uint8
	SlaveIMR, SlaveIRR, SlaveISR    uint8
	MasterBase, SlaveBase           uint8

	KeyboardBacklog int
}

// State returns a snapshot of the machine registers.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		InterruptFlag:   m.ifFlag,
		GDTBase:         m.gdtr.Base(),
		GDTLimit:        m.gdtr.Limit(),
		IDTBase:         m.idtr.Base(),
		IDTLimit:        m.idtr.Limit(),
		LDTR:            m.ldtr,
		TR:              m.tr,
		CS:              m.cs,
		DS:              m.ds,
		MasterIMR:       m.pics.master.imr,
		MasterIRR:       m.pics.master.irr,
		MasterISR:       m.pics.master.isr,
		SlaveIMR:        m.pics.slave.imr,
		SlaveIRR:        m.pics.slave.irr,
		SlaveISR:        m.pics.slave.isr,
		MasterBase:      m.pics.master.base,
		SlaveBase:       m.pics.slave.base,
		KeyboardBacklog: m.kbc.backlog(),
	}
}

// RaiseIRQ asserts line on the interrupt controllers. The interrupt is
// delivered right away if the CPU accepts it.
func (m *Machine) RaiseIRQ(line irq.Line) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pics.raise(uint8(line))
	m.kick()
}

// RaiseSpurious delivers a spurious interrupt from the master or slave
// controller.
func (m *Machine) RaiseSpurious(slave bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halted || !m.ifFlag {
		return
	}
	vector := m.pics.spurious(slave)
	m.interrupt(vector)
}

// Feed passes a byte typed on the keyboard to the keyboard controller.
func (m *Machine) Feed(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kbc.feed(b) {
		m.pics.raise(kbcKeyboardLine)
		m.kick()
	}
}

// kick lets the CPU notice a new request: a waiting CPU is woken up,
// otherwise the interrupt is delivered on the caller's goroutine.
func (m *Machine) kick() {
	if m.waiting {
		m.idle.Signal()
		return
	}
	m.deliver()
}

// Syscall raises the system call vector from ring 3 on behalf of the current
// task and returns the value left in EAX.
func (m *Machine) Syscall(nr, a0, a1, a2 uint32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.halted {
		return 0, ErrHalted
	}
	if t := task.Current(); t == nil || t.Exited {
		return 0, ErrNoTask
	}

	regs := gate.Registers{
		EAX: nr, EBX: a0, ECX: a1, EDX: a2,
		EIP:    userEIP,
		CS:     uint32(desc.UserCS),
		EFlags: eflagsIF | eflagsReserved,
		ESP:    m.cfg.UserStack,
		SS:     uint32(desc.UserDS),
	}

	// INT n from ring 3 requires a present gate with DPL 3; otherwise the
	// CPU raises #GP with the IDT slot as error code.
	d := desc.IDT().Entry(abi.SyscallVector)
	if !d.Present() || d.DPL() < 3 {
		regs.ErrorCode = abi.SyscallVector<<3 | 2
		m.trap(&regs, uint8(gate.GPFException))
		m.ifFlag = true
		return 0, ErrProtection
	}

	m.trap(&regs, abi.SyscallVector)
	ret := int32(regs.EAX)
	m.log.WithFields(logrus.Fields{
		"syscall": abi.SyscallName(nr),
		"args":    []uint32{a0, a1, a2},
		"ret":     ret,
	}).Debug("system call")

	// IRET back to ring 3 restores IF.
	m.ifFlag = true
	m.deliver()

	if m.halted {
		return ret, ErrHalted
	}
	return ret, nil
}

// deliver hands pending interrupts to the CPU while it accepts them.
func (m *Machine) deliver() {
	for m.ifFlag && !m.halted {
		vector, ok := m.pics.acknowledge()
		if !ok {
			return
		}
		m.interrupt(vector)
	}
}

func (m *Machine) interrupt(vector uint8) {
	regs := gate.Registers{
		EIP:    userEIP,
		CS:     uint32(desc.KernelCS),
		EFlags: eflagsReserved,
	}
	if m.ifFlag {
		regs.EFlags |= eflagsIF
	}

	m.log.WithField("vector", vector).Debug("interrupt")
	m.trap(&regs, vector)
}

// trap transfers control through the IDT gate for vector the way the CPU
// does: the gate must be present, interrupt gates clear IF and the flags
// are restored on return.
func (m *Machine) trap(regs *gate.Registers, vector uint8) {
	if m.idtr.Limit() == 0 || m.idtr.Base() != desc.IDT().Base() {
		m.tripleFault("no IDT loaded", vector)
		return
	}

	d := desc.IDT().Entry(int(vector))
	if !d.Present() || !d.Kind().IsGate() {
		m.tripleFault("gate not present", vector)
		return
	}

	entry, ok := gate.VectorForEntry(uintptr(d.Offset()))
	if !ok {
		m.tripleFault("gate does not point at an entry stub", vector)
		return
	}
	regs.Vector = uint32(entry)

	saved := m.ifFlag
	if d.Kind() == desc.KindInterruptGate {
		m.ifFlag = false
	}
	gate.Dispatch(regs)
	m.ifFlag = saved
}

func (m *Machine) tripleFault(reason string, vector uint8) {
	m.log.WithFields(logrus.Fields{"vector": vector, "reason": reason}).Error("triple fault")
	m.halted = true
}

func (m *Machine) onExit(t *task.Task) {
	m.exits = append(m.exits, Exit{TaskID: t.ID, Status: t.ExitStatus})
	m.log.WithFields(logrus.Fields{"task": t.ID, "status": t.ExitStatus}).Info("task exited")
}

// SetInterruptFlag implements cpu.Backend.
func (m *Machine) SetInterruptFlag(enabled bool) {
	m.ifFlag = enabled
	if enabled {
		m.deliver()
	}
}

// InterruptFlag implements cpu.Backend.
func (m *Machine) InterruptFlag() bool {
	return m.ifFlag
}

// Halt implements cpu.Backend. With interrupts disabled the CPU stops for
// good.
func (m *Machine) Halt() {
	if !m.ifFlag {
		m.log.Warn("cpu halted with interrupts disabled")
		m.halted = true
		return
	}
	m.WaitForInterrupt()
}

// WaitForInterrupt implements cpu.Backend. It enables interrupts and parks
// the CPU until one is delivered. Once the machine is stopped the waiting
// task is terminated instead.
func (m *Machine) WaitForInterrupt() {
	m.ifFlag = true
	for !m.stopped && !m.halted {
		if m.pics.pending() {
			m.deliver()
			return
		}

		m.waiting = true
		m.idle.Wait()
		m.waiting = false
	}

	if t := task.Current(); m.stopped && t != nil && !t.Exited {
		t.Terminate(stopStatus)
	}
}

// PortWriteByte implements cpu.Backend.
func (m *Machine) PortWriteByte(port uint16, val uint8) {
	switch port {
	case 0x20:
		m.pics.master.writeCommand(val)
	case 0x21:
		m.pics.master.writeData(val)
	case 0xa0:
		m.pics.slave.writeCommand(val)
	case 0xa1:
		m.pics.slave.writeData(val)
	case kbcStatusPort:
		m.kbc.lastCommand = val
	case kbcDataPort, postPort:
	default:
		m.log.WithFields(logrus.Fields{"port": port, "value": val}).Debug("write to unmapped port")
		return
	}

	// An EOI or mask change may unblock a pending request.
	m.deliver()
}

// PortReadByte implements cpu.Backend.
func (m *Machine) PortReadByte(port uint16) uint8 {
	switch port {
	case 0x20:
		return m.pics.master.readCommand()
	case 0x21:
		return m.pics.master.readData()
	case 0xa0:
		return m.pics.slave.readCommand()
	case 0xa1:
		return m.pics.slave.readData()
	case kbcStatusPort:
		return m.kbc.status()
	case kbcDataPort:
		v, more := m.kbc.readData()
		if more {
			m.pics.raise(kbcKeyboardLine)
		}
		return v
	}

	m.log.WithField("port", port).Debug("read from unmapped port")
	return 0xff
}

// LoadGDT implements cpu.Backend.
func (m *Machine) LoadGDT(base uint32, limit uint16) {
	m.gdtr = cpu.NewDescriptorTableRegister(base, limit)
}

// LoadIDT implements cpu.Backend.
func (m *Machine) LoadIDT(base uint32, limit uint16) {
	m.idtr = cpu.NewDescriptorTableRegister(base, limit)
}

// LoadLDT implements cpu.Backend.
func (m *Machine) LoadLDT(sel uint16) {
	m.ldtr = sel
}

// LoadTR implements cpu.Backend.
func (m *Machine) LoadTR(sel uint16) {
	m.tr = sel
}

// ReloadSegments implements cpu.Backend.
func (m *Machine) ReloadSegments(code, data uint16) {
	m.cs, m.ds = code, data
}

// DumpTables writes the decoded GDT, LDT, IDT and TSS to w.
func (m *Machine) DumpTables(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	desc.GDT().DumpTo(w)
	desc.LDT().DumpTo(w)
	desc.IDT().DumpTo(w)
	desc.CurrentTSS().DumpTo(w)
}

// IRQStats returns the delivery counters of every line and the number of
// spurious interrupts.
func (m *Machine) IRQStats() ([irq.NumLines]irq.Stats, uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats [irq.NumLines]irq.Stats
	for line := range stats {
		stats[line] = irq.StatsFor(irq.Line(line))
	}
	return stats, irq.Spurious()
}

// Spawn replaces the current task with a new one that has the console
// terminal open on descriptors 0, 1 and 2.
func (m *Machine) Spawn(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := kmain.StartTask(id, m.mem)
	if err != nil {
		return err
	}
	task.SetCurrent(t)
	return nil
}

// Idle returns true while the CPU waits for an interrupt.
func (m *Machine) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

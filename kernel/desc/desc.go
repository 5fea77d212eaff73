// Package desc builds and loads the x86 descriptor tables: the GDT with the
// flat kernel and user segments, the LDT, the task state segment used for
// privilege transitions and the IDT.
//
// The tables live at fixed addresses and must be initialized in the order
// GDT, LDT, TSS, IDT: gates reference GDT selectors and the TSS descriptor
// must be in the GDT before the task register is loaded. All failures
// reported by this package are build defects; the caller is expected to
// panic.
package desc

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/abi"
	"github.com/whampson/ohwes/kernel/cpu"
)

type initStage uint8

const (
	stageNone initStage = iota
	stageGDT
	stageLDT
	stageTSS
	stageIDT
)

var (
	stage initStage

	errInitOrder = &kernel.Error{Module: "desc", Message: "descriptor tables must be initialized in GDT, LDT, TSS, IDT order"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadGDTFn        = cpu.LoadGDT
	loadIDTFn        = cpu.LoadIDT
	loadLDTFn        = cpu.LoadLDT
	loadTRFn         = cpu.LoadTR
	reloadSegmentsFn = cpu.ReloadSegments
)

// flat returns a spec for a 4G segment starting at address 0.
func flat(kind Kind, dpl uint8) SegmentSpec {
	return SegmentSpec{Kind: kind, Limit: maxLimit, DPL: dpl, Granularity4K: true, Size32: true}
}

// InitGDT builds the global descriptor table, loads it and reloads the
// segment registers with the kernel selectors. Calling InitGDT again starts
// the initialization sequence over.
func InitGDT() *kernel.Error {
	b := newBuilder(&gdt)
	b.segment(gdtKernelCode, flat(KindCode, 0))
	b.segment(gdtKernelData, flat(KindData, 0))
	b.segment(gdtUserCode, flat(KindCode, 3))
	b.segment(gdtUserData, flat(KindData, 3))
	b.segment(gdtTSS, SegmentSpec{Kind: KindTSS, Base: TSSBase, Limit: TSSSize - 1})
	b.segment(gdtLDT, SegmentSpec{Kind: KindLDT, Base: LDTBase, Limit: LDTLen*DescriptorSize - 1})
	if err := b.commit(); err != nil {
		return err
	}

	r := gdt.Register()
	loadGDTFn(&r)
	reloadSegmentsFn(uint16(KernelCS), uint16(KernelDS))
	stage = stageGDT
	return nil
}

// InitLDT builds the local descriptor table with a user code and data segment
// and loads the LDT register.
func InitLDT() *kernel.Error {
	if stage != stageGDT {
		return errInitOrder
	}

	b := newBuilder(&ldt)
	b.segment(ldtUserCode, flat(KindCode, 3))
	b.segment(ldtUserData, flat(KindData, 3))
	if err := b.commit(); err != nil {
		return err
	}

	loadLDTFn(uint16(LDTSel))
	stage = stageLDT
	return nil
}

// InitTSS initializes the task state segment with esp0 as the ring 0 stack
// and loads the task register.
func InitTSS(esp0 uint32) *kernel.Error {
	if stage != stageLDT {
		return errInitOrder
	}

	tss := TSS{
		SS0:  uint16(KernelDS),
		ESP0: esp0,
		LDT:  uint16(LDTSel),
		// An offset beyond the segment limit means there is no I/O
		// permission bitmap: every port access from ring 3 faults.
		IOMapBase: TSSSize,
	}
	*CurrentTSS() = tss

	loadTRFn(uint16(TSSSel))
	stage = stageTSS
	return nil
}

// InitIDT fills every IDT slot with a ring 0 interrupt gate pointing at the
// stub returned by entry and loads the IDT register. The system call vector
// gets a DPL 3 gate so that user code may raise it. Slots for which entry
// returns 0 stay not-present.
func InitIDT(entry func(vector uint8) uintptr) *kernel.Error {
	if stage != stageTSS {
		return errInitOrder
	}

	b := newBuilder(&idt)
	for vector := 0; vector < IDTLen; vector++ {
		offset := entry(uint8(vector))
		if offset == 0 {
			continue
		}

		spec := GateSpec{Kind: KindInterruptGate, Selector: KernelCS, Offset: uint64(offset)}
		if vector == abi.SyscallVector {
			spec.DPL = 3
		}
		b.gate(vector, spec)
	}
	if err := b.commit(); err != nil {
		return err
	}

	r := idt.Register()
	loadIDTFn(&r)
	stage = stageIDT
	return nil
}

// Ready returns true once all tables have been loaded.
func Ready() bool {
	return stage == stageIDT
}

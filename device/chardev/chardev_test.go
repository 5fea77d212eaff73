package chardev

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/usermem"
)

type nullDevice struct {
	name string
}

func (*nullDevice) Open(uint8, uint32) error                             { return nil }
func (*nullDevice) Close(uint8) error                                    { return nil }
func (*nullDevice) Read(uint8, []byte) (int, error)                      { return 0, nil }
func (*nullDevice) Write(_ uint8, p []byte) (int, error)                 { return len(p), nil }
func (*nullDevice) Ioctl(uint8, uint32, uint32, usermem.IO) (int, error) { return 0, nil }

func resetRegistry(t *testing.T) {
	t.Cleanup(func() {
		entries = [MaxDevices]entry{}
		count = 0
		nodes = [MaxNodes]Node{}
		nodeCount = 0
	})
}

func TestRegister(t *testing.T) {
	resetRegistry(t)

	kbd, tty, other := &nullDevice{"kbd"}, &nullDevice{"tty"}, &nullDevice{"other"}

	specs := []struct {
		major  uint8
		name   string
		dev    Device
		expErr *kernel.Error
	}{
		{13, "kbd", kbd, nil},
		{4, "tty", tty, nil},
		{13, "other", other, errMajorInUse},
		{5, "", other, errEmptyName},
		{5, "nil", nil, errNilDevice},
	}

	for specIndex, spec := range specs {
		if err := Register(spec.major, spec.name, spec.dev); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	if got := Lookup(13); got != kbd {
		t.Fatalf("expected the first registration of major 13 to remain bound; got %v", got)
	}

	if got := Lookup(200); got != nil {
		t.Fatalf("expected Lookup of an unregistered major to return nil; got %v", got)
	}

	major, dev, ok := LookupName("tty")
	if !ok || major != 4 || dev != tty {
		t.Fatalf("expected LookupName(\"tty\") to return (4, tty, true); got (%d, %v, %t)", major, dev, ok)
	}

	if _, _, ok = LookupName("missing"); ok {
		t.Fatal("expected LookupName of an unknown name to fail")
	}
}

func TestRegistryFull(t *testing.T) {
	resetRegistry(t)

	for major := uint8(0); major < MaxDevices; major++ {
		if err := Register(major, "dev", &nullDevice{}); err != nil {
			t.Fatalf("unexpected error registering major %d: %v", major, err)
		}
	}

	if err := Register(MaxDevices, "dev", &nullDevice{}); err != errRegistryFull {
		t.Fatalf("expected errRegistryFull; got %v", err)
	}
}

func TestUnregister(t *testing.T) {
	resetRegistry(t)

	a, b := &nullDevice{"a"}, &nullDevice{"b"}
	if err := Register(1, "a", a); err != nil {
		t.Fatal(err)
	}
	if err := Register(2, "b", b); err != nil {
		t.Fatal(err)
	}

	if Unregister(1, b) {
		t.Fatal("expected Unregister with a different device to be a no-op")
	}
	if Unregister(3, a) {
		t.Fatal("expected Unregister of an unknown major to be a no-op")
	}
	if !Unregister(1, a) {
		t.Fatal("expected Unregister to remove the matching registration")
	}

	if Lookup(1) != nil || Lookup(2) != b {
		t.Fatal("unexpected registry contents after Unregister")
	}

	if err := Register(1, "a2", b); err != nil {
		t.Fatalf("expected major 1 to be free again; got %v", err)
	}
}

func TestVisit(t *testing.T) {
	resetRegistry(t)

	for _, major := range []uint8{4, 13, 42} {
		Register(major, "dev", &nullDevice{})
	}

	var got []uint8
	Visit(func(major uint8, _ string, _ Device) bool {
		got = append(got, major)
		return true
	})

	if diff := cmp.Diff([]uint8{4, 13, 42}, got); diff != "" {
		t.Fatalf("unexpected visit order (-want +got):\n%s", diff)
	}

	got = got[:0]
	Visit(func(major uint8, _ string, _ Device) bool {
		got = append(got, major)
		return false
	})

	if len(got) != 1 {
		t.Fatalf("expected Visit to stop after fn returned false; visited %d entries", len(got))
	}
}

func TestNodes(t *testing.T) {
	resetRegistry(t)

	specs := []struct {
		path   string
		major  uint8
		minor  uint8
		expErr *kernel.Error
	}{
		{"/dev/tty0", 4, 0, nil},
		{"/dev/kbd", 13, 0, nil},
		{"/dev/tty0", 4, 1, errNodeExists},
		{"dev/tty1", 4, 1, errBadPath},
		{"/", 4, 1, errBadPath},
	}

	for specIndex, spec := range specs {
		if err := MakeNode(spec.path, spec.major, spec.minor); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	major, minor, ok := ResolveNode("/dev/kbd")
	if !ok || major != 13 || minor != 0 {
		t.Fatalf("expected /dev/kbd to resolve to 13:0; got %d:%d (%t)", major, minor, ok)
	}

	exp := []Node{{"/dev/tty0", 4, 0}, {"/dev/kbd", 13, 0}}
	if diff := cmp.Diff(exp, Nodes()); diff != "" {
		t.Fatalf("unexpected node table (-want +got):\n%s", diff)
	}

	RemoveNode("/dev/tty0")
	RemoveNode("/dev/missing")
	if _, _, ok = ResolveNode("/dev/tty0"); ok {
		t.Fatal("expected removed node not to resolve")
	}

	for i := len(Nodes()); i < MaxNodes; i++ {
		if err := MakeNode("/dev/n"+string(rune('a'+i)), 1, uint8(i)); err != nil {
			t.Fatal(err)
		}
	}

	if err := MakeNode("/dev/overflow", 1, 0); err != errNodeTableFull {
		t.Fatalf("expected errNodeTableFull; got %v", err)
	}
}

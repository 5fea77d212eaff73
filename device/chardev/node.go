package chardev

import (
	"github.com/whampson/ohwes/kernel"
	"github.com/whampson/ohwes/kernel/sync"
)

// MaxNodes is the capacity of the device node table.
const MaxNodes = 16

// Node names a device instance in the file namespace.
type Node struct {
	Path  string
	Major uint8
	Minor uint8
}

var (
	nodeLock  sync.Spinlock
	nodes     [MaxNodes]Node
	nodeCount int

	errNodeExists    = &kernel.Error{Module: "chardev", Message: "device node already exists"}
	errNodeTableFull = &kernel.Error{Module: "chardev", Message: "device node table is full"}
	errBadPath       = &kernel.Error{Module: "chardev", Message: "device node path must be absolute"}
)

func findNode(path string) int {
	for i := 0; i < nodeCount; i++ {
		if nodes[i].Path == path {
			return i
		}
	}
	return -1
}

// MakeNode creates a node at path referring to device (major, minor). The
// driver does not have to be registered yet; open fails with ENXIO until it
// is.
func MakeNode(path string, major, minor uint8) *kernel.Error {
	if len(path) < 2 || path[0] != '/' {
		return errBadPath
	}

	nodeLock.Acquire()
	defer nodeLock.Release()

	if findNode(path) >= 0 {
		return errNodeExists
	}
	if nodeCount == MaxNodes {
		return errNodeTableFull
	}

	nodes[nodeCount] = Node{Path: path, Major: major, Minor: minor}
	nodeCount++
	return nil
}

// RemoveNode deletes the node at path if it exists.
func RemoveNode(path string) {
	nodeLock.Acquire()
	defer nodeLock.Release()

	if i := findNode(path); i >= 0 {
		nodeCount--
		nodes[i] = nodes[nodeCount]
		nodes[nodeCount] = Node{}
	}
}

// ResolveNode returns the device numbers of the node at path.
func ResolveNode(path string) (major, minor uint8, ok bool) {
	nodeLock.Acquire()
	defer nodeLock.Release()

	if i := findNode(path); i >= 0 {
		return nodes[i].Major, nodes[i].Minor, true
	}
	return 0, 0, false
}

// Nodes returns a copy of the node table.
func Nodes() []Node {
	nodeLock.Acquire()
	defer nodeLock.Release()

	out := make([]Node, nodeCount)
	copy(out, nodes[:nodeCount])
	return out
}

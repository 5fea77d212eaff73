// Package device defines the driver model used by the hardware abstraction
// layer: drivers register a probe function at init time and the HAL probes
// them in detection order.
package device

import (
	"io"

	"github.com/whampson/ohwes/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when a driver is probed relative to the others.
type DetectOrder int8

const (
	// DetectOrderEarly drivers are probed before any other driver.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderInput is used by input devices that other drivers may
	// forward to.
	DetectOrderInput DetectOrder = -64

	// DetectOrderConsole is used by console devices.
	DetectOrderConsole DetectOrder = 0

	// DetectOrderLast drivers are probed after all other drivers.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is used to register a driver with the HAL.
type DriverInfo struct {
	// Order specifies at which stage of the detection process the driver
	// is probed.
	Order DetectOrder

	// Probe scans for the hardware and returns a driver or nil.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

var registeredDrivers DriverInfoList

// RegisterDriver adds info to the list of drivers probed by the HAL.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}

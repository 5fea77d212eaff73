// Package hal probes the registered device drivers and manages the kernel
// console.
package hal

import (
	"bytes"
	"io"
	"sort"

	"github.com/whampson/ohwes/device"
	"github.com/whampson/ohwes/kernel/kfmt"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	console io.Writer

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer
)

// AttachConsole makes w the kernel console. Output buffered before the
// console was attached is replayed to w.
func AttachConsole(w io.Writer) {
	devices.console = w
	kfmt.SetOutputSink(w)
}

// Console returns the attached console or nil.
func Console() io.Writer {
	return devices.console
}

// ActiveDrivers returns the drivers initialized by DetectHardware.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Stable(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and records each
// successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()
		w.Reset()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

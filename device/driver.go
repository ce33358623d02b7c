package device

import (
	"io"
	"rvkernel/kernel"
)

// Detection order controls the relative order in which probe functions run
// during hal.DetectHardware, so that drivers with dependencies on other
// drivers (e.g. a TTY wanting an already-initialized console) probe later.
const (
	DetectOrderEarly int = iota
	DetectOrderNormal
	DetectOrderLate
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Diagnostic output is
	// written to w.
	DriverInit(w io.Writer) *kernel.Error
}

// ProbeFn attempts to detect a particular piece of hardware, returning the
// initialized (but not yet DriverInit'd) driver instance, or nil if the
// hardware is not present.
type ProbeFn func() Driver

// DriverInfo pairs a probe function with the order it should run in.
type DriverInfo struct {
	Order int
	Probe ProbeFn
}

// DriverInfoList implements sort.Interface, ordering by Order ascending.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

var registeredDrivers DriverInfoList

// RegisterDriver adds a driver probe to the list consulted by
// hal.DetectHardware. Drivers call this from an init() block.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the full set of registered driver probes.
func DriverList() DriverInfoList {
	return registeredDrivers
}

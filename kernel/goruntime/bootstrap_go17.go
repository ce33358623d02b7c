// +build go1.7,!go1.8

package goruntime

import (
	_ "unsafe" // required for go:linkname
)

//go:linkname procResize runtime.procresize
func procResize(int32) uintptr

// modulesInit is defined on go1.8 so just declare an empty
// stub for go 1.7 to keep the compiler happy.
func modulesInit() {
}

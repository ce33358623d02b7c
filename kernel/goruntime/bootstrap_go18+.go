// +build go1.8

package goruntime

import (
	_ "unsafe" // required for go:linkname
)

//go:linkname procResize runtime.procresize
func procResize(int32) uintptr

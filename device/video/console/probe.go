package console

import (
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/sbi"
)

var (
	getFramebufferInfoFn = sbi.GetFramebufferInfo
	mapRegionFn          = vmm.MapRegion
)

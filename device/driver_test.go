package device

import (
	"sort"
	"testing"
)

func TestDriverInfoListSorting(t *testing.T) {
	defer func() {
		registeredDrivers = nil
	}()

	origList := []*DriverInfo{
		{Order: DetectOrderNormal},
		{Order: DetectOrderLate},
		{Order: DetectOrderEarly},
		{Order: DetectOrderEarly},
	}

	for _, drv := range origList {
		RegisterDriver(drv)
	}

	registeredList := DriverList()
	if exp, got := len(origList), len(registeredList); got != exp {
		t.Fatalf("expected DriverList() to return %d entries; got %d", exp, got)
	}

	sort.Sort(registeredList)
	for i := 1; i < len(registeredList); i++ {
		if registeredList[i-1].Order > registeredList[i].Order {
			t.Fatalf("expected sorted list to be non-decreasing by Order; entry %d (%d) > entry %d (%d)",
				i-1, registeredList[i-1].Order, i, registeredList[i].Order)
		}
	}
}

func TestDriverList(t *testing.T) {
	defer func() {
		registeredDrivers = nil
	}()

	if got := len(DriverList()); got != 0 {
		t.Fatalf("expected an empty driver list; got %d entries", got)
	}

	RegisterDriver(&DriverInfo{Order: DetectOrderNormal, Probe: func() Driver { return nil }})
	if got := len(DriverList()); got != 1 {
		t.Fatalf("expected 1 registered driver; got %d", got)
	}
}

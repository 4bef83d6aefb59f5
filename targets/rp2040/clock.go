//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"cncmotion/core"
)

// RP2040 TIMER peripheral, free-running at 1MHz
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word, no latching
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime feeds the event clock from the hardware counter
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}

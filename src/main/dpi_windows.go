//go:build windows

package main

import (
	"log"
	"syscall"
)

// enableDPIAwareness makes screen captures use physical pixels on scaled displays.
func enableDPIAwareness() {
	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		if ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware)); ret != 0 {
			log.Printf("main: per-monitor DPI awareness not set (code %d)", ret)
		}
		return
	}
	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Printf("main: no DPI awareness API available")
		return
	}
	_, _, _ = setProcessDPIAware.Call()
}

package symcipher

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HasAESHardwareSupport reports whether the running CPU exposes AES
// instruction-set acceleration, mirroring the hardware capability probe
// BAR's crypt.c performs against libgcrypt's HWF flags at startup.
func HasAESHardwareSupport() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// HardwareInfo holds diagnostic fields describing the platform's AES
// acceleration support.
type HardwareInfo struct {
	AESHardwareSupport bool   `json:"aes_hardware_support"`
	Architecture       string `json:"architecture"`
	GOOS               string `json:"goos"`
	GoVersion          string `json:"go_version"`
}

// GetHardwareInfo returns a snapshot of the current platform's
// acceleration capabilities.
func GetHardwareInfo() HardwareInfo {
	return HardwareInfo{
		AESHardwareSupport: HasAESHardwareSupport(),
		Architecture:       runtime.GOARCH,
		GOOS:               runtime.GOOS,
		GoVersion:          runtime.Version(),
	}
}

package header

import (
	"fmt"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/exec"
)

const (
	cpuAny     types.CPU = 0xffffffff
	cpuHppa    types.CPU = 11
	cpuMC680x0 types.CPU = 6
	cpuMC88000 types.CPU = 13
	cpuI860    types.CPU = 15
	cpuSparc   types.CPU = 14

	// capabilityMask covers the feature bits (e.g. CPU_SUBTYPE_LIB64) that
	// do not change what a subtype names.
	capabilityMask types.CPUSubtype = 0x80000000
)

type archDesc struct {
	cpu  types.CPU
	sub  types.CPUSubtype
	name string
}

// archTable is matched top to bottom; "*_ALL" entries come first so the
// generic name wins for the common case.
var archTable = []archDesc{
	{cpuHppa, 0, "hppa"},
	{types.CPUI386, 3, "i386"},
	{types.CPUAmd64, 3, "x86_64"},
	{cpuI860, 0, "i860"},
	{cpuMC680x0, 1, "m68k"},
	{cpuMC88000, 0, "m88k"},
	{types.CPUPpc, 0, "ppc"},
	{types.CPUPpc64, 0, "ppc64"},
	{cpuSparc, 0, "sparc"},
	{types.CPUArm, 0, "arm"},
	{cpuAny, 0x7fffffff, "any"},

	{cpuHppa, 1, "hppa7100LC"},
	{cpuMC680x0, 3, "m68030"},
	{cpuMC680x0, 2, "m68040"},
	{types.CPUI386, 4, "i486"},
	{types.CPUI386, 0x84, "i486SX"},
	{types.CPUI386, 5, "pentium"},
	{types.CPUI386, 0x16, "pentpro"},
	{types.CPUI386, 0x36, "pentIIm3"},
	{types.CPUI386, 0x56, "pentIIm5"},
	{types.CPUI386, 0x0a, "pentium4"},
	{types.CPUAmd64, 8, "x86_64h"},
	{types.CPUPpc, 1, "ppc601"},
	{types.CPUPpc, 3, "ppc603"},
	{types.CPUPpc, 4, "ppc603e"},
	{types.CPUPpc, 5, "ppc603ev"},
	{types.CPUPpc, 6, "ppc604"},
	{types.CPUPpc, 7, "ppc604e"},
	{types.CPUPpc, 9, "ppc750"},
	{types.CPUPpc, 10, "ppc7400"},
	{types.CPUPpc, 11, "ppc7450"},
	{types.CPUPpc, 100, "ppc970"},
	{types.CPUPpc64, 100, "ppc970-64"},
	{types.CPUArm, types.CPUSubtypeArmV4T, "armv4t"},
	{types.CPUArm, types.CPUSubtypeArmV5Tej, "armv5"},
	{types.CPUArm, types.CPUSubtypeArmXscale, "xscale"},
	{types.CPUArm, types.CPUSubtypeArmV6, "armv6"},
	{types.CPUArm, types.CPUSubtypeArmV7, "armv7"},
	{types.CPUArm, types.CPUSubtypeArmV7F, "armv7f"},
	{types.CPUArm, types.CPUSubtypeArmV7S, "armv7s"},
	{types.CPUArm, types.CPUSubtypeArmV7K, "armv7k"},
	{types.CPUArm64, types.CPUSubtypeArm64All, "arm64"},
	{types.CPUArm64, types.CPUSubtypeArm64V8, "arm64v8"},
	{types.CPUArm64, types.CPUSubtypeArm64E, "arm64e"},

	{cpuAny, 0, "little"},
	{cpuAny, 1, "big"},
}

// Describe returns the short architecture name for a cpu/subtype pair.
func Describe(cpu types.CPU, sub types.CPUSubtype) (string, bool) {
	sub &^= capabilityMask
	for _, a := range archTable {
		if a.cpu == cpu && a.sub == sub {
			return a.name, true
		}
	}
	return "", false
}

// DescribeOrUnknown is Describe with a placeholder for unlisted pairs.
func DescribeOrUnknown(cpu types.CPU, sub types.CPUSubtype) string {
	if s, ok := Describe(cpu, sub); ok {
		return s
	}
	return fmt.Sprintf("<unknown cpu %d/%d>", uint32(cpu), uint32(sub))
}

// Normalize maps a cpu type onto the container-neutral architecture enum.
func Normalize(cpu types.CPU) exec.Arch {
	switch cpu {
	case types.CPUI386:
		return exec.ArchX86
	case types.CPUAmd64:
		return exec.ArchX86_64
	case types.CPUArm:
		return exec.ArchARM
	case types.CPUArm64:
		return exec.ArchAArch64
	case types.CPUPpc:
		return exec.ArchPowerPC
	case types.CPUPpc64:
		return exec.ArchPowerPC64
	}
	return exec.ArchUnknown
}

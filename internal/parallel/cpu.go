package parallel

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSummary describes the host CPU in one line, for banners and `version`.
func CPUSummary() string {
	brand := strings.TrimSpace(cpuid.CPU.BrandName)
	if brand == "" {
		brand = runtime.GOARCH
	}
	var simd []string
	for _, f := range []cpuid.FeatureID{cpuid.AVX512F, cpuid.AVX2, cpuid.FMA3, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			simd = append(simd, f.String())
		}
	}
	s := fmt.Sprintf("%s (%d physical / %d logical cores)",
		brand, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	if len(simd) > 0 {
		s += " [" + strings.Join(simd, ",") + "]"
	}
	return s
}

package app

import (
	"os"
	"path/filepath"
	"runtime"
)

var venvIndicators = map[string][]string{
	"linux":   {"bin", "include", "lib", "pyvenv.cfg"},
	"darwin":  {"bin", "include", "lib", "pyvenv.cfg"},
	"windows": {"Scripts", "Include", "Lib", "pyvenv.cfg"},
}

// VenvChecker recognises virtual-environment directories by their layout.
type VenvChecker struct {
	indicators []string
}

func NewVenvChecker() VenvChecker {
	return NewVenvCheckerFor(runtime.GOOS)
}

// NewVenvCheckerFor uses the layout of goos. Unknown platforms only look
// for pyvenv.cfg.
func NewVenvCheckerFor(goos string) VenvChecker {
	indicators, ok := venvIndicators[goos]
	if !ok {
		indicators = []string{"pyvenv.cfg"}
	}
	return VenvChecker{indicators: indicators}
}

func (v VenvChecker) IsVenv(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, ind := range v.indicators {
		if _, err := os.Stat(filepath.Join(dir, ind)); err != nil {
			return false
		}
	}
	return true
}

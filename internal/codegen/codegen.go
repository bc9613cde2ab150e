// Package codegen generates per-process configuration headers from a
// resolved process's resources. C++ is presently the only supported
// output language.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/cfgtypes"
	"github.com/epoxyos/harden/internal/runtypes"
)

// Language is a supported code generation output language.
type Language int

const (
	CPP Language = iota
)

var languageNames = map[string]Language{
	"c++": CPP,
}

// ParseLanguage resolves a CLI-supplied language name, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	if lang, ok := languageNames[strings.ToLower(s)]; ok {
		return lang, nil
	}

	names := make([]string, 0, len(languageNames))
	for name := range languageNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return 0, buildererr.Newf(buildererr.ConfigParse, "unrecognized language %q, must be one of: %s", s, strings.Join(names, " "))
}

// Generate emits process's configuration header in the given language.
func Generate(language Language, process *runtypes.Process) (string, error) {
	switch language {
	case CPP:
		return generateCPP(process)
	default:
		return "", buildererr.Newf(buildererr.ConfigParse, "unsupported language %d", language)
	}
}

func generateCPP(process *runtypes.Process) (string, error) {
	var b strings.Builder
	b.WriteString("// Automatically generated. Do not touch.\n\n#pragma once\n\n#include <cstddef>\n#include <cstdint>\n")

	names := make([]string, 0, len(process.Resources))
	for name := range process.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res, err := generateCPPResource(name, process.Resources[name])
		if err != nil {
			return "", err
		}
		b.WriteString(res)
	}

	return b.String(), nil
}

func generateCPPResource(name string, res runtypes.Resource) (string, error) {
	switch res.Meta.Kind {
	case runtypes.MetaFramebuffer:
		return generateCPPFramebuffer(name, res)
	case runtypes.MetaSifivePlic:
		return fmt.Sprintf("static inline uintptr_t %s_base {%#x};\nstatic inline uint16_t %s_ndev {%d};\n", name, res.Region.VirtStart, name, res.Meta.NDev)
	case runtypes.MetaSBITimer:
		return fmt.Sprintf("static inline uint64_t %s_freq_hz {%d};\n", name, res.Meta.FreqHz)
	default:
		return "", buildererr.Newf(buildererr.ConfigParse, "unknown resource kind for %q", name)
	}
}

func generateCPPFramebuffer(name string, res runtypes.Resource) (string, error) {
	format := res.Meta.Format
	if format.Pixel != cfgtypes.R5G6B5 {
		return "", buildererr.Newf(buildererr.ConfigParse, "framebuffer %q: pixel format %q not implemented, only %q is supported", name, format.Pixel, cfgtypes.R5G6B5)
	}
	if format.Stride%2 != 0 {
		return "", buildererr.Newf(buildererr.ConfigParse, "framebuffer %q: stride %d is not a multiple of the pixel size", name, format.Stride)
	}

	cols := format.Stride / 2
	return fmt.Sprintf(
		"static inline uint16_t volatile (&%s_pixels)[%d][%d] {*reinterpret_cast<uint16_t volatile (*)[%d][%d]>(%#x)};\nstatic inline size_t %s_width {%d};\n",
		name, format.Height, cols, format.Height, cols, res.Region.VirtStart, name, format.Width,
	), nil
}

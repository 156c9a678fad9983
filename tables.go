// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
)

// CircuitMixColumns names the embedded AES MixColumns circuit. It maps one
// state column, 4 bytes laid out byte-major with the most significant bit
// first, to the mixed column in the same layout.
const CircuitMixColumns = "mixcolumns"

// circuitAliases maps alternate names onto built-in circuits. "mixcolumns2"
// is the name the circuit file was distributed under.
var circuitAliases = map[string]string{
	"mixcolumns2": CircuitMixColumns,
}

//go:embed circuits/*.txt
var circuitFS embed.FS

// embedded holds the built-in circuits, parsed and validated once at package
// initialization and never modified afterwards.
var embedded = mustLoadEmbedded()

func mustLoadEmbedded() map[string]*Circuit {
	entries, err := circuitFS.ReadDir("circuits")
	if err != nil {
		panic(fmt.Sprintf("lincircuit: read embedded circuits: %v", err))
	}

	out := make(map[string]*Circuit, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		f, err := circuitFS.Open(path.Join("circuits", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("lincircuit: open embedded circuit %s: %v", name, err))
		}
		c, err := ParseCircuit(name, f)
		f.Close()
		if err != nil {
			panic(fmt.Sprintf("lincircuit: embedded circuit %s: %v", name, err))
		}
		out[name] = c
	}
	return out
}

// EmbeddedCircuit returns the built-in circuit registered under name or one
// of its aliases.
func EmbeddedCircuit(name string) (*Circuit, error) {
	if canonical, ok := circuitAliases[name]; ok {
		name = canonical
	}
	c, ok := embedded[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCircuit, name)
	}
	return c, nil
}

// EmbeddedCircuitNames lists the built-in circuits in lexical order. Aliases
// are not included.
func EmbeddedCircuitNames() []string {
	names := make([]string, 0, len(embedded))
	for name := range embedded {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

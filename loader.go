// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lincircuit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Loader resolves circuit names. Built-in circuits take precedence; other
// names are read from Dir as <name>.txt.
type Loader struct {
	// Dir is the directory holding circuit files. Empty disables the disk
	// fallback.
	Dir string
}

// Load returns the circuit registered under name.
func (l Loader) Load(name string) (*Circuit, error) {
	if c, err := EmbeddedCircuit(name); err == nil {
		return c, nil
	}
	if l.Dir == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCircuit, name)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: invalid circuit name %q", ErrUnknownCircuit, name)
	}

	f, err := os.Open(filepath.Join(l.Dir, name+".txt"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCircuit, name)
		}
		return nil, fmt.Errorf("open circuit %q: %w", name, err)
	}
	defer f.Close()

	return ParseCircuit(name, f)
}

// Copyright (c) 2020–2024 The bench developers. All rights reserved.
// Project site: https://github.com/gotmc/bench
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"fmt"
	"strings"
)

// Unknown fills identity fields missing from an *IDN? reply.
const Unknown = "UNKNOWN"

// Identity is a parsed *IDN? reply.
type Identity struct {
	Vendor   string
	Model    string
	Serial   string // empty when the instrument does not report one
	Firmware string
	Raw      string
}

// ParseIdentity splits a comma separated identification string into its
// fields.
func ParseIdentity(idn string) Identity {
	raw := strings.TrimSpace(idn)
	id := Identity{Vendor: Unknown, Model: Unknown, Raw: raw}
	if raw == "" {
		return id
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] != "" {
		id.Vendor = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		id.Model = parts[1]
	}
	if len(parts) > 2 && parts[2] != "0" {
		id.Serial = parts[2]
	}
	if len(parts) > 3 {
		id.Firmware = strings.Join(parts[3:], ",")
	}
	return id
}

func (id Identity) String() string {
	if id.Serial == "" {
		return fmt.Sprintf("%s %s", id.Vendor, id.Model)
	}
	return fmt.Sprintf("%s %s (s/n %s)", id.Vendor, id.Model, id.Serial)
}

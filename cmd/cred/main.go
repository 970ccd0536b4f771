// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command cred computes contribution scores over addressable property
// graphs.
//
// Usage:
//
//	cred compute -o scores.json github.json discord.json
//	cred check github.json
//	cred merge -o merged.json github.json discord.json
//	cred serve --port 8090 --db ~/.cred/db --watch ./graphs
//	cred config init cred.yaml
//
// Every command accepts -c to load a YAML configuration. Flags override
// the configuration file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

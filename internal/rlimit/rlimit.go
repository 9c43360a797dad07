// Copyright 2024 The crescendo Authors
// This file is part of the crescendo library.
//
// The crescendo library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The crescendo library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the crescendo library. If not, see <http://www.gnu.org/licenses/>.

//go:build linux

// Package rlimit raises the process's open-file soft limit at startup so
// that a large dispatcher connection pool never runs out of descriptors.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IncreaseNofile raises RLIMIT_NOFILE's soft limit to the hard limit and
// returns the resulting soft limit. It returns an error, and changes
// nothing, if the hard limit is below min; the orchestrator logs that error
// and continues startup.
func IncreaseNofile(min uint64) (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, fmt.Errorf("rlimit: get RLIMIT_NOFILE: %w", err)
	}

	if rlim.Max < min {
		return 0, fmt.Errorf("rlimit: file descriptor hard limit %d is below required minimum %d", rlim.Max, min)
	}

	if rlim.Cur != rlim.Max {
		raised := unix.Rlimit{Cur: rlim.Max, Max: rlim.Max}
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &raised); err != nil {
			return 0, fmt.Errorf("rlimit: set RLIMIT_NOFILE: %w", err)
		}
		return raised.Cur, nil
	}
	return rlim.Cur, nil
}

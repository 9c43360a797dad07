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

//go:build !linux

package workers

import "fmt"

// PinCurrentThread is a stub on platforms without SCHED_SETAFFINITY. It
// always returns an error, which the orchestrator treats as fatal when
// thread_pinning is enabled.
func PinCurrentThread(coreID int) error {
	return fmt.Errorf("workers: thread pinning is not supported on this platform")
}

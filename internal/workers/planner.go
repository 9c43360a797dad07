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

package workers

import (
	"fmt"
	"math"
	"sort"
)

// Class distinguishes a producer core from a dispatcher core.
type Class int

const (
	ClassTxGen Class = iota
	ClassNetwork
)

func (c Class) String() string {
	switch c {
	case ClassTxGen:
		return "tx_gen"
	case ClassNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Desire is what a class wants: a fixed core count, or a percentage of
// whatever is left once every exact desire has been satisfied.
type Desire struct {
	Class      Class
	Exact      uint64 // used when Percentage == 0 and IsExact is true
	Percentage float64
	IsExact    bool
}

// ExactDesire builds a fixed-count desire for class.
func ExactDesire(class Class, count uint64) Desire {
	return Desire{Class: class, Exact: count, IsExact: true}
}

// PercentageDesire builds a desire for a fraction of the remaining cores
// once every exact desire is satisfied, after an at-least-one guarantee.
func PercentageDesire(class Class, percentage float64) Desire {
	return Desire{Class: class, Percentage: percentage}
}

// Assignment is one core's class assignment.
type Assignment struct {
	CoreID int
	Class  Class
}

// Plan assigns cores (given as a slice of core IDs) to worker classes in
// three passes:
//  1. Exact desires pop their requested count of cores from the back of
//     the available list, capped at whatever remains.
//  2. Any percentage desire that still has zero cores assigned is given
//     exactly one core (the at-least-one guarantee), in desire order.
//  3. Each percentage desire is given floor(remainingAtStartOfPass * p)
//     cores, where remainingAtStartOfPass is fixed at the count left
//     after passes 1 and 2 — not re-evaluated as this pass consumes cores.
//
// Because exact desires pop from the back while percentage desires pop
// from whatever is left afterward, the core sets handed to each class are
// not necessarily contiguous ranges; this is a known, cosmetic quirk.
func Plan(coreIDs []int, desires []Desire) ([]Assignment, map[Class]int) {
	available := append([]int(nil), coreIDs...)
	pop := func() (int, bool) {
		n := len(available)
		if n == 0 {
			return 0, false
		}
		id := available[n-1]
		available = available[:n-1]
		return id, true
	}

	var result []Assignment
	counts := make(map[Class]int)

	var percentageDesires []Desire
	for _, d := range desires {
		if !d.IsExact {
			percentageDesires = append(percentageDesires, d)
			continue
		}
		want := d.Exact
		if uint64(len(available)) < want {
			want = uint64(len(available))
		}
		for i := uint64(0); i < want; i++ {
			id, ok := pop()
			if !ok {
				break
			}
			result = append(result, Assignment{CoreID: id, Class: d.Class})
			counts[d.Class]++
		}
	}

	for _, d := range percentageDesires {
		if counts[d.Class] > 0 {
			continue
		}
		id, ok := pop()
		if !ok {
			break
		}
		result = append(result, Assignment{CoreID: id, Class: d.Class})
		counts[d.Class]++
	}

	remainingAtStartOfPass := len(available)
	for _, d := range percentageDesires {
		n := int(math.Floor(float64(remainingAtStartOfPass) * d.Percentage))
		for i := 0; i < n; i++ {
			id, ok := pop()
			if !ok {
				break
			}
			result = append(result, Assignment{CoreID: id, Class: d.Class})
			counts[d.Class]++
		}
	}

	return result, counts
}

// Summary renders a deterministic, human-readable line per class, sorted
// by class name, for startup logging.
func Summary(counts map[Class]int) string {
	classes := make([]Class, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].String() < classes[j].String() })

	out := ""
	for _, c := range classes {
		out += fmt.Sprintf("- %s: %d\n", c, counts[c])
	}
	return out
}

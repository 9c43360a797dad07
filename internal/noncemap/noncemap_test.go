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

package noncemap

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimMonotonicUnderContention(t *testing.T) {
	const numAccounts = 4
	const claimsPerAccount = 2000
	const numProducers = 8

	m := New(numAccounts)

	var wg sync.WaitGroup
	seen := make([][]uint64, numAccounts)
	var mu sync.Mutex

	for w := 0; w < numProducers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([][]uint64, numAccounts)
			for i := 0; i < claimsPerAccount; i++ {
				acct := uint32(i % numAccounts)
				local[acct] = append(local[acct], m.Claim(acct))
			}
			mu.Lock()
			for a := range local {
				seen[a] = append(seen[a], local[a]...)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for acct, nonces := range seen {
		sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
		for i, n := range nonces {
			if n != uint64(i) {
				t.Fatalf("account %d: expected prefix [0..n), got gap/duplicate at index %d: %d", acct, i, n)
			}
		}
	}
}

func TestClaimIndependentAcrossAccounts(t *testing.T) {
	m := New(2)
	assert.EqualValues(t, 0, m.Claim(0), "first claim on account 0")
	assert.EqualValues(t, 0, m.Claim(1), "first claim on account 1")
	assert.EqualValues(t, 1, m.Claim(0), "second claim on account 0")
}

func TestLen(t *testing.T) {
	m := New(7)
	assert.Equal(t, 7, m.Len())
}

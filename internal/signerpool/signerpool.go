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

// Package signerpool deterministically derives a fixed set of account
// signers from a BIP-39 mnemonic at startup.
package signerpool

import (
	"crypto/ecdsa"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"golang.org/x/sync/errgroup"
)

var logger = log.New("component", "signerpool")

// Signer is an index-addressed, immutable account key pair. Once built, a
// Signer may be read from any number of goroutines without synchronization.
type Signer struct {
	index      uint32
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address { return s.address }

// PrivateKey returns the signer's private key, used for transaction signing.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey { return s.privateKey }

// Index returns the account index this signer was derived at.
func (s *Signer) Index() uint32 { return s.index }

// Pool is the immutable, process-lifetime sequence of derived signers.
type Pool struct {
	signers []*Signer
}

// Derive builds a Pool of n signers from mnemonic, one per child index on
// the standard Ethereum derivation path m/44'/60'/0'/0/{i}. Derivation runs
// in parallel across the available CPUs; a failure to derive any one signer
// is fatal, since the spec treats this as a startup-only, fail-fast
// precondition for every downstream producer.
func Derive(mnemonic string, n uint32) (*Pool, error) {
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("signerpool: parse mnemonic: %w", err)
	}

	signers := make([]*Signer, n)

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i := uint32(0); i < n; i++ {
		i := i
		eg.Go(func() error {
			path := hdwallet.MustParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", i))
			account, err := wallet.Derive(path, false)
			if err != nil {
				return fmt.Errorf("signerpool: derive account %d: %w", i, err)
			}
			privateKey, err := wallet.PrivateKey(account)
			if err != nil {
				return fmt.Errorf("signerpool: private key for account %d: %w", i, err)
			}
			signers[i] = &Signer{
				index:      i,
				privateKey: privateKey,
				address:    crypto.PubkeyToAddress(privateKey.PublicKey),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Info("derived signer pool", "accounts", n)
	return &Pool{signers: signers}, nil
}

// At returns the signer for the given account index. Index must be in
// [0, N); callers are expected to have validated the index against Len.
func (p *Pool) At(index uint32) *Signer {
	return p.signers[index]
}

// Len reports the number of signers in the pool.
func (p *Pool) Len() int {
	return len(p.signers)
}

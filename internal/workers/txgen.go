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
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/transmissions11/crescendo/internal/noncemap"
	"github.com/transmissions11/crescendo/internal/signerpool"
	"github.com/transmissions11/crescendo/internal/txbuilder"
	"github.com/transmissions11/crescendo/internal/txqueue"
)

// TxGenConfig carries everything a producer needs that doesn't change
// across its whole lifetime.
type TxGenConfig struct {
	ChainID                     *big.Int
	GasPrice                    *big.Int
	GasLimit                    uint64
	TokenContractAddress        common.Address
	RecipientDistributionFactor uint32
	MaxTransferAmount           uint64
	BatchSize                   int
}

// RunTxGen is the producer loop body: an unbounded, non-suspending loop
// that signs transactions and flushes them to the queue in batches. It
// never returns; callers run it on its own pinned OS thread.
func RunTxGen(cfg TxGenConfig, signers *signerpool.Pool, nonces *noncemap.Map, queue *txqueue.Queue) {
	rng := rand.New(rand.NewSource(rand.Int63()))
	n := uint32(signers.Len())

	recipientSpace := n / cfg.RecipientDistributionFactor
	if recipientSpace == 0 {
		recipientSpace = 1
	}

	batch := make([][]byte, 0, cfg.BatchSize)

	for {
		senderIndex := uint32(rng.Intn(int(n)))
		recipientIndex := uint32(rng.Intn(int(recipientSpace)))

		sender := signers.At(senderIndex)
		recipient := signers.At(recipientIndex)

		nonce := nonces.Claim(senderIndex)

		amount := big.NewInt(0).SetUint64(1 + uint64(rng.Int63n(int64(cfg.MaxTransferAmount))))

		callData, err := txbuilder.EncodeTransferCall(recipient.Address(), amount)
		if err != nil {
			log.Error("txgen: encode transfer call", "err", err)
			continue
		}

		payload, err := txbuilder.SignLegacy(
			sender.PrivateKey(),
			cfg.ChainID,
			nonce,
			cfg.GasPrice,
			cfg.GasLimit,
			cfg.TokenContractAddress,
			callData,
		)
		if err != nil {
			log.Error("txgen: sign transaction", "err", err)
			continue
		}

		batch = append(batch, payload)
		if len(batch) == cfg.BatchSize {
			queue.PushBatch(batch)
			batch = make([][]byte, 0, cfg.BatchSize)
		}
	}
}

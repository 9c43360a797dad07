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

// Package txbuilder composes and signs legacy EIP-2718 transactions on the
// producer's hot path. Every exported function is pure and synchronous: no
// suspension is permitted here, since it runs on the inner producer loop.
package txbuilder

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// erc20TransferABI is the minimal ERC-20 interface this generator needs;
// parsed once at init time and reused from every producer goroutine (the
// parsed abi.ABI is read-only after construction).
const erc20TransferABI = `[{
	"constant": false,
	"inputs": [
		{"name": "to", "type": "address"},
		{"name": "value", "type": "uint256"}
	],
	"name": "transfer",
	"outputs": [{"name": "", "type": "bool"}],
	"type": "function"
}]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("txbuilder: parse embedded ERC20 ABI: %v", err))
	}
	erc20ABI = parsed
}

// EncodeTransferCall ABI-encodes an ERC-20 transfer(address,uint256) call.
func EncodeTransferCall(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: pack transfer call: %w", err)
	}
	return data, nil
}

// SignLegacy composes a legacy transaction calling the token contract and
// returns its EIP-2718-encoded, signed bytes. The transaction always has
// value zero; token movement happens entirely through callData.
func SignLegacy(
	privateKey *ecdsa.PrivateKey,
	chainID *big.Int,
	nonce uint64,
	gasPrice *big.Int,
	gasLimit uint64,
	tokenContract common.Address,
	callData []byte,
) ([]byte, error) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &tokenContract,
		Value:    common.Big0,
		Data:     callData,
	})

	signer := types.NewEIP155Signer(chainID)
	signedTx, err := types.SignTx(tx, signer, privateKey)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: sign transaction: %w", err)
	}

	payload, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("txbuilder: encode transaction: %w", err)
	}
	return payload, nil
}

// Decoded mirrors the fields a test needs to assert round-trip correctness;
// it is not used on any hot path.
type Decoded struct {
	ChainID  *big.Int
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Input    []byte
	Signer   common.Address
}

// Decode reverses SignLegacy's encoding, recovering the signer address from
// the signature. Used only by tests and any future verification tooling.
func Decode(payload []byte, chainID *big.Int) (*Decoded, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("txbuilder: decode transaction: %w", err)
	}
	signer := types.NewEIP155Signer(chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: recover sender: %w", err)
	}
	to := common.Address{}
	if tx.To() != nil {
		to = *tx.To()
	}
	return &Decoded{
		ChainID:  chainID,
		Nonce:    tx.Nonce(),
		GasPrice: tx.GasPrice(),
		GasLimit: tx.Gas(),
		To:       to,
		Value:    tx.Value(),
		Input:    tx.Data(),
		Signer:   from,
	}, nil
}

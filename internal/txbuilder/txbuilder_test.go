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

package txbuilder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignLegacyRoundTrips(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	wantSigner := crypto.PubkeyToAddress(privateKey.PublicKey)

	chainID := big.NewInt(1337)
	tokenContract := common.HexToAddress("0x00000000000000000000000000000000000001")
	recipient := common.HexToAddress("0x00000000000000000000000000000000000002")
	amount := big.NewInt(4242)

	callData, err := EncodeTransferCall(recipient, amount)
	if err != nil {
		t.Fatalf("EncodeTransferCall: %v", err)
	}

	payload, err := SignLegacy(privateKey, chainID, 7, big.NewInt(10_000_000_000), 100_000, tokenContract, callData)
	if err != nil {
		t.Fatalf("SignLegacy: %v", err)
	}

	decoded, err := Decode(payload, chainID)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Nonce != 7 {
		t.Errorf("Nonce = %d, want 7", decoded.Nonce)
	}
	if decoded.GasLimit != 100_000 {
		t.Errorf("GasLimit = %d, want 100000", decoded.GasLimit)
	}
	if decoded.GasPrice.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Errorf("GasPrice = %s, want 10000000000", decoded.GasPrice)
	}
	if decoded.To != tokenContract {
		t.Errorf("To = %s, want %s", decoded.To.Hex(), tokenContract.Hex())
	}
	if decoded.Value.Sign() != 0 {
		t.Errorf("Value = %s, want 0", decoded.Value)
	}
	if decoded.Signer != wantSigner {
		t.Errorf("recovered signer = %s, want %s", decoded.Signer.Hex(), wantSigner.Hex())
	}
	if string(decoded.Input) != string(callData) {
		t.Errorf("Input did not round trip")
	}
}

func TestEncodeTransferCallSelector(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000003")
	data, err := EncodeTransferCall(to, big.NewInt(1))
	if err != nil {
		t.Fatalf("EncodeTransferCall: %v", err)
	}
	// transfer(address,uint256) selector is 0xa9059cbb.
	want := []byte{0xa9, 0x05, 0x9c, 0xbb}
	if len(data) < 4 {
		t.Fatalf("call data too short: %d bytes", len(data))
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("selector mismatch: got %x, want %x", data[:4], want)
		}
	}
}

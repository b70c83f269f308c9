package testchain

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
)

// TransferTx signs an ERC20 transfer for callers that bypass bind.
func TransferTx(chainID *big.Int, key *ecdsa.PrivateKey, nonce uint64, token, to common.Address, amount *big.Int) (*types.Transaction, error) {
	input, err := abi.ERC20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      100_000,
		GasPrice: big.NewInt(1),
		Data:     input,
	})
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
}

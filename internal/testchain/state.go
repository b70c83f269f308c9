package testchain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errInsufficientBalance   = errors.New("insufficient balance")
	errInsufficientAllowance = errors.New("insufficient allowance")
)

type allowanceKey struct {
	owner, spender common.Address
}

// state is everything a snapshot captures.
type state struct {
	balances   map[common.Address]map[common.Address]*big.Int
	supply     map[common.Address]*big.Int
	allowances map[common.Address]map[allowanceKey]*big.Int
	prices     map[common.Address]*big.Int
	nonces     map[common.Address]uint64
	paused     bool
	frozen     map[common.Address]bool
}

func newState() *state {
	return &state{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		supply:     make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[allowanceKey]*big.Int),
		prices:     make(map[common.Address]*big.Int),
		nonces:     make(map[common.Address]uint64),
		frozen:     make(map[common.Address]bool),
	}
}

func (s *state) clone() *state {
	out := newState()
	for token, holders := range s.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, amount := range holders {
			copied[holder] = new(big.Int).Set(amount)
		}
		out.balances[token] = copied
	}
	for token, amount := range s.supply {
		out.supply[token] = new(big.Int).Set(amount)
	}
	for token, allowances := range s.allowances {
		copied := make(map[allowanceKey]*big.Int, len(allowances))
		for key, amount := range allowances {
			copied[key] = new(big.Int).Set(amount)
		}
		out.allowances[token] = copied
	}
	for asset, price := range s.prices {
		out.prices[asset] = new(big.Int).Set(price)
	}
	for account, nonce := range s.nonces {
		out.nonces[account] = nonce
	}
	for asset, frozen := range s.frozen {
		out.frozen[asset] = frozen
	}
	out.paused = s.paused
	return out
}

func (s *state) balance(token, holder common.Address) *big.Int {
	if amount, ok := s.balances[token][holder]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

func (s *state) totalSupply(token common.Address) *big.Int {
	if amount, ok := s.supply[token]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

func (s *state) setBalance(token, holder common.Address, amount *big.Int) {
	holders, ok := s.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		s.balances[token] = holders
	}
	holders[holder] = amount
}

func (s *state) mint(token, holder common.Address, amount *big.Int) {
	s.setBalance(token, holder, new(big.Int).Add(s.balance(token, holder), amount))
	s.supply[token] = new(big.Int).Add(s.totalSupply(token), amount)
}

func (s *state) burn(token, holder common.Address, amount *big.Int) error {
	have := s.balance(token, holder)
	if have.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	s.setBalance(token, holder, have.Sub(have, amount))
	s.supply[token] = new(big.Int).Sub(s.totalSupply(token), amount)
	return nil
}

func (s *state) transfer(token, from, to common.Address, amount *big.Int) error {
	have := s.balance(token, from)
	if have.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	s.setBalance(token, from, have.Sub(have, amount))
	s.setBalance(token, to, new(big.Int).Add(s.balance(token, to), amount))
	return nil
}

func (s *state) allowance(token, owner, spender common.Address) *big.Int {
	if amount, ok := s.allowances[token][allowanceKey{owner, spender}]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

func (s *state) approve(token, owner, spender common.Address, amount *big.Int) {
	allowances, ok := s.allowances[token]
	if !ok {
		allowances = make(map[allowanceKey]*big.Int)
		s.allowances[token] = allowances
	}
	allowances[allowanceKey{owner, spender}] = new(big.Int).Set(amount)
}

func (s *state) spendAllowance(token, owner, spender common.Address, amount *big.Int) error {
	have := s.allowance(token, owner, spender)
	if have.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	s.approve(token, owner, spender, have.Sub(have, amount))
	return nil
}

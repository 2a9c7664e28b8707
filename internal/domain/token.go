package domain

import (
	"sort"
	"sync"
)

// TokenRegistry maps tokens to their display symbols in a thread-safe
// manner. Tokens are registered from configuration at start-up.
type TokenRegistry struct {
	mu      sync.RWMutex
	symbols map[Token]string
}

// NewTokenRegistry creates an empty TokenRegistry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		symbols: make(map[Token]string),
	}
}

// Register associates a symbol with a token, replacing any previous one.
func (r *TokenRegistry) Register(token Token, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols[token] = symbol
}

// Symbol returns the token's symbol or ErrTokenNotFound.
func (r *TokenRegistry) Symbol(token Token) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.symbols[token]
	if !ok {
		return "", ErrTokenNotFound
	}
	return s, nil
}

// Tokens returns all registered tokens in ascending order.
func (r *TokenRegistry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, 0, len(r.symbols))
	for t := range r.symbols {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Jeremy Hahn
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dh

import (
	"context"
	"math/big"
	"sync"
)

// primeBits is the required size of the Diffie-Hellman prime.
const primeBits = 2048

// Config holds the Diffie-Hellman domain parameters fetched from the server.
type Config struct {
	// G is the generator, always one of 2..7.
	G int32

	// Prime is the big-endian 2048-bit safe prime.
	Prime []byte

	// Version is the server-side parameter version, used to detect staleness
	// when re-fetching.
	Version int32
}

// PrimeCache caches safe-prime verdicts so the expensive primality test runs
// at most once per distinct prime across the process.
type PrimeCache interface {
	// IsGoodPrime returns 1 if the prime is known good, 0 if known bad and
	// -1 if unknown.
	IsGoodPrime(prime []byte) int
	AddGoodPrime(prime []byte)
	AddBadPrime(prime []byte)
}

// MemoryPrimeCache is a process-wide PrimeCache backed by a map.
type MemoryPrimeCache struct {
	mu      sync.RWMutex
	verdict map[string]bool
}

// NewMemoryPrimeCache creates an empty prime cache.
func NewMemoryPrimeCache() *MemoryPrimeCache {
	return &MemoryPrimeCache{verdict: make(map[string]bool)}
}

func (c *MemoryPrimeCache) IsGoodPrime(prime []byte) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	good, ok := c.verdict[string(prime)]
	if !ok {
		return -1
	}
	if good {
		return 1
	}
	return 0
}

func (c *MemoryPrimeCache) AddGoodPrime(prime []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdict[string(prime)] = true
}

func (c *MemoryPrimeCache) AddBadPrime(prime []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdict[string(prime)] = false
}

// CheckConfig validates the domain parameters. The generator must make g a
// quadratic residue mod p, which for g in 2..7 reduces to a condition on
// p mod 4g, and p must be a safe prime. Verdicts are cached when a cache is
// provided.
func CheckConfig(cfg *Config, cache PrimeCache) error {
	prime := new(big.Int).SetBytes(cfg.Prime)
	return checkPrime(cfg.Prime, prime, cfg.G, cache)
}

func checkPrime(primeBytes []byte, prime *big.Int, g int32, cache PrimeCache) error {
	if prime.BitLen() != primeBits {
		return ErrPrimeSize
	}

	mod := func(n int64) uint64 {
		return new(big.Int).Mod(prime, big.NewInt(n)).Uint64()
	}
	var modOK bool
	switch g {
	case 2:
		modOK = mod(8) == 7
	case 3:
		modOK = mod(3) == 2
	case 4:
		modOK = true
	case 5:
		r := mod(5)
		modOK = r == 1 || r == 4
	case 6:
		r := mod(24)
		modOK = r == 19 || r == 23
	case 7:
		r := mod(7)
		modOK = r == 3 || r == 5 || r == 6
	default:
		modOK = false
	}
	if !modOK {
		return ErrBadPrimeMod
	}

	if cache != nil {
		switch cache.IsGoodPrime(primeBytes) {
		case 1:
			return nil
		case 0:
			return ErrNotSafePrime
		}
	}

	if !prime.ProbablyPrime(64) {
		if cache != nil {
			cache.AddBadPrime(primeBytes)
		}
		return ErrNotSafePrime
	}
	halfPrime := new(big.Int).Sub(prime, big.NewInt(1))
	halfPrime.Rsh(halfPrime, 1)
	if !halfPrime.ProbablyPrime(64) {
		if cache != nil {
			cache.AddBadPrime(primeBytes)
		}
		return ErrNotSafePrime
	}

	if cache != nil {
		cache.AddGoodPrime(primeBytes)
	}
	return nil
}

// Provider supplies Diffie-Hellman domain parameters to call engines. The
// provider is owned by the hosting process and shared read-mostly across
// calls.
type Provider interface {
	// Cached returns the last known parameters without blocking, or nil.
	Cached() *Config

	// Fetch obtains fresh parameters, typically from the server.
	Fetch(ctx context.Context) (*Config, error)
}

// FetchFunc loads domain parameters given the currently cached version, or 0
// when nothing is cached.
type FetchFunc func(ctx context.Context, version int32) (*Config, error)

// CachingProvider wraps a FetchFunc with a process-wide cache. A fetch that
// fails while a cached config exists falls back to the cached value.
type CachingProvider struct {
	fetch FetchFunc

	mu     sync.RWMutex
	cached *Config
}

// NewCachingProvider creates a provider around the given fetch function.
func NewCachingProvider(fetch FetchFunc) *CachingProvider {
	return &CachingProvider{fetch: fetch}
}

func (p *CachingProvider) Cached() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

func (p *CachingProvider) Fetch(ctx context.Context) (*Config, error) {
	p.mu.RLock()
	old := p.cached
	p.mu.RUnlock()

	var version int32
	if old != nil {
		version = old.Version
	}

	cfg, err := p.fetch(ctx, version)
	if err != nil {
		if old != nil {
			return old, nil
		}
		return nil, err
	}
	if cfg == nil {
		// Server reported the cached version is still current.
		if old != nil {
			return old, nil
		}
		return nil, ErrNoConfig
	}

	p.mu.Lock()
	p.cached = cfg
	p.mu.Unlock()
	return cfg, nil
}

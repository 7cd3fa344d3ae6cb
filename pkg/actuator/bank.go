// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import "sync"

// Bank simulates a timer module with buffered compare registers.
// Stage writes a channel's shadow register; CommitAll latches every staged
// shadow into the live registers in one step. Live values may be read from
// any goroutine.
type Bank struct {
	mu      sync.Mutex
	shadow  [NumChannels]uint32
	staged  [NumChannels]bool
	live    [NumChannels]uint32
	commits uint64

	onCommit func(live [NumChannels]uint32)
}

// NewBank creates a bank with every live register at zero
func NewBank() *Bank {
	return &Bank{}
}

// OnCommit registers fn to be called with the new live values after every
// commit. fn runs on the committing goroutine and must not block.
func (b *Bank) OnCommit(fn func(live [NumChannels]uint32)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCommit = fn
}

// Stage implements Hardware
func (b *Bank) Stage(ch Channel, value uint32) {
	if ch < 0 || int(ch) >= NumChannels {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shadow[ch] = value
	b.staged[ch] = true
}

// CommitAll implements Hardware. Channels not staged since the last commit
// keep their live value.
func (b *Bank) CommitAll() {
	b.mu.Lock()
	for ch := range b.live {
		if b.staged[ch] {
			b.live[ch] = b.shadow[ch]
			b.staged[ch] = false
		}
	}
	b.commits++
	live, fn := b.live, b.onCommit
	b.mu.Unlock()

	if fn != nil {
		fn(live)
	}
}

// Live returns a consistent snapshot of all live registers
func (b *Bank) Live() [NumChannels]uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Shadow returns the buffered register values, staged or not
func (b *Bank) Shadow() [NumChannels]uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shadow
}

// Commits returns the number of commits issued
func (b *Bank) Commits() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package credential holds hosted-repo scan tokens in locked, zero-on-close
// memory so they never appear in a core dump, a swap file, or a findings
// envelope — a Target only ever carries a CredentialRef handle back to a
// Store, never the secret itself.
package credential

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/scanforge/scanforge/internal/model"
)

// Ref is the opaque, loggable identifier a Target embeds in place of a
// secret. It implements model.CredentialRef.
type Ref struct {
	name string
}

// Ref returns name, the non-secret identifier used for logging and
// lookups — never the credential value itself.
func (r Ref) Ref() string { return r.name }

var _ model.CredentialRef = Ref{}

// Store holds named credentials in memguard-locked enclaves. A Store is
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	secrets map[string]*memguard.Enclave
}

// NewStore returns an empty credential store.
func NewStore() *Store {
	return &Store{secrets: make(map[string]*memguard.Enclave)}
}

// Put locks value into an enclave under name, wiping the plaintext value
// buffer as memguard.NewBufferFromBytes takes ownership of it. Calling Put
// again with the same name replaces the previous enclave.
func (s *Store) Put(name string, value []byte) Ref {
	buf := memguard.NewBufferFromBytes(value)
	enclave := buf.Seal()

	s.mu.Lock()
	s.secrets[name] = enclave
	s.mu.Unlock()

	return Ref{name: name}
}

// Resolve opens the enclave for ref and returns the plaintext as a
// memguard.LockedBuffer the caller must Destroy() once the credential has
// been handed to the transport layer (e.g. set as an Authorization
// header). Returns an error if no credential is registered under ref.
func (s *Store) Resolve(ref model.CredentialRef) (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	enclave, ok := s.secrets[ref.Ref()]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("credential: no secret registered for %q", ref.Ref())
	}
	return enclave.Open()
}

// Forget removes the credential registered under name from the store.
func (s *Store) Forget(name string) {
	s.mu.Lock()
	delete(s.secrets, name)
	s.mu.Unlock()
}

// Purge drops every credential in the store. The scan command defers it
// for its store; on SIGINT/SIGTERM, memguard's interrupt handler armed by
// Init purges locked memory.
func (s *Store) Purge() {
	s.mu.Lock()
	s.secrets = make(map[string]*memguard.Enclave)
	s.mu.Unlock()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package credential

import (
	"bytes"
	"testing"
)

func TestStore_PutAndResolve(t *testing.T) {
	store := NewStore()
	ref := store.Put("github-token", []byte("s3cr3t"))

	if ref.Ref() != "github-token" {
		t.Fatalf("Ref() = %q, want github-token", ref.Ref())
	}

	buf, err := store.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer buf.Destroy()

	if !bytes.Equal(buf.Bytes(), []byte("s3cr3t")) {
		t.Errorf("Resolve() = %q, want s3cr3t", buf.Bytes())
	}
}

func TestStore_ResolveUnknownRef(t *testing.T) {
	store := NewStore()
	if _, err := store.Resolve(Ref{name: "missing"}); err == nil {
		t.Fatal("expected an error resolving an unregistered credential")
	}
}

func TestStore_ForgetRemovesCredential(t *testing.T) {
	store := NewStore()
	ref := store.Put("a", []byte("x"))
	store.Forget("a")

	if _, err := store.Resolve(ref); err == nil {
		t.Fatal("expected Resolve to fail after Forget")
	}
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtrust/pkg/doc/proof"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/vault"
)

const testPassphrase = "correct horse battery staple 32b"

var testCreated = time.Date(2018, 7, 18, 15, 5, 30, 0, time.UTC)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()

	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	v, err := vault.FromSeed(seed, testPassphrase)
	require.NoError(t, err)

	return v
}

func newSignedDocument(t *testing.T, v *vault.Vault) *Document {
	t.Helper()

	pub, err := v.PublicKey(vault.IdentityKeyPath, testPassphrase)
	require.NoError(t, err)

	doc, err := FromPublicKey(pub, testCreated)
	require.NoError(t, err)

	digest, err := doc.Digest()
	require.NoError(t, err)

	sig, err := v.Sign(vault.IdentityKeyPath, testPassphrase, digest)
	require.NoError(t, err)

	return doc.WithProof(doc.Proof.WithSignature(sig))
}

func TestFromPublicKey(t *testing.T) {
	v := newTestVault(t)

	pub, err := v.PublicKey(vault.IdentityKeyPath, testPassphrase)
	require.NoError(t, err)

	doc, err := FromPublicKey(pub, testCreated)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(doc.ID, "did:jolo:"))
	require.Len(t, strings.TrimPrefix(doc.ID, "did:jolo:"), 64)
	require.Equal(t, PublicKeyToDID(pub), doc.ID)
	require.Len(t, doc.PublicKey, 1)
	require.Equal(t, doc.ID+"#keys-1", doc.PublicKey[0].ID)
	require.Equal(t, doc.ID, doc.PublicKey[0].Owner)
	require.Equal(t, hex.EncodeToString(pub), doc.PublicKey[0].PublicKeyHex)
	require.Equal(t, []Authentication{{Reference: doc.ID + "#keys-1"}}, doc.Authentication)
	require.Empty(t, doc.Service)
	require.Equal(t, "2018-07-18T15:05:30.000Z", doc.Created)
	require.NotNil(t, doc.Proof)
	require.Empty(t, doc.Signature())
	require.Equal(t, proof.Signer{DID: doc.ID, KeyID: doc.ID + "#keys-1"}, doc.Signer())

	raw, err := doc.JSONBytes()
	require.NoError(t, err)
	require.Contains(t, string(raw), `"service":[]`)

	t.Run("Failure - not a public key", func(t *testing.T) {
		_, err := FromPublicKey([]byte{1, 2, 3}, testCreated)
		require.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestSignAndVerify(t *testing.T) {
	v := newTestVault(t)
	doc := newSignedDocument(t, v)

	key, err := doc.SigningKey()
	require.NoError(t, err)

	pub, err := key.Bytes()
	require.NoError(t, err)

	sig, err := doc.Proof.Signature()
	require.NoError(t, err)

	digest, err := doc.Digest()
	require.NoError(t, err)
	require.True(t, vault.Verify(digest, pub, sig))

	t.Run("Round trip through JSON keeps the digest", func(t *testing.T) {
		raw, err := doc.JSONBytes()
		require.NoError(t, err)

		parsed, err := Parse(raw)
		require.NoError(t, err)

		again, err := parsed.Digest()
		require.NoError(t, err)
		require.Equal(t, digest, again)
	})
	t.Run("Tampered document fails verification", func(t *testing.T) {
		tampered := doc.Clone()
		tampered.Created = "2019-01-01T00:00:00.000Z"

		d, err := tampered.Digest()
		require.NoError(t, err)
		require.False(t, vault.Verify(d, pub, sig))
	})
	t.Run("Unsigned document has no digest", func(t *testing.T) {
		unsigned := doc.Clone()
		unsigned.Proof = nil

		_, err := unsigned.Digest()
		require.ErrorIs(t, err, ErrInvalidDocument)

		_, err = unsigned.SigningKey()
		require.ErrorIs(t, err, ErrInvalidDocument)
		require.Empty(t, unsigned.Signer().DID)
	})
}

func TestParse(t *testing.T) {
	v := newTestVault(t)
	doc := newSignedDocument(t, v)

	t.Run("Embedded authentication key", func(t *testing.T) {
		c := doc.Clone()
		c.Authentication = append(c.Authentication, Authentication{Embedded: &PublicKey{
			ID:           c.ID + "#auth-2",
			Type:         PublicKeyType,
			Owner:        c.ID,
			PublicKeyHex: c.PublicKey[0].PublicKeyHex,
		}})

		raw, err := c.JSONBytes()
		require.NoError(t, err)

		parsed, err := Parse(raw)
		require.NoError(t, err)
		require.NotNil(t, parsed.Authentication[1].Embedded)
		require.Equal(t, c.ID+"#auth-2", parsed.Authentication[1].KeyID())

		key, err := parsed.PublicKeyByID(c.ID + "#auth-2")
		require.NoError(t, err)
		require.Equal(t, c.PublicKey[0].PublicKeyHex, key.PublicKeyHex)
	})
	t.Run("Failure - malformed JSON", func(t *testing.T) {
		_, err := Parse([]byte("{"))
		require.ErrorIs(t, err, ErrInvalidDocument)
		require.Equal(t, trusterrors.Validation, trusterrors.KindOf(err))
	})
	t.Run("Failure - id is not a DID", func(t *testing.T) {
		c := doc.Clone()
		c.ID = "bob"

		raw, err := c.JSONBytes()
		require.NoError(t, err)

		_, err = Parse(raw)
		require.ErrorIs(t, err, ErrInvalidDocument)
	})
	t.Run("Failure - proof creator not in document", func(t *testing.T) {
		c := doc.Clone()
		c.Proof.Creator = "did:jolo:other#keys-1"

		raw, err := c.JSONBytes()
		require.NoError(t, err)

		_, err = Parse(raw)
		require.ErrorIs(t, err, ErrUnknownSigningKey)
	})
	t.Run("Failure - duplicate key id", func(t *testing.T) {
		c := doc.Clone()
		c.PublicKey = append(c.PublicKey, c.PublicKey[0])

		raw, err := c.JSONBytes()
		require.NoError(t, err)

		_, err = Parse(raw)
		require.ErrorIs(t, err, ErrDuplicateKeyID)

		_, err = c.PublicKeyByID(c.PublicKey[0].ID)
		require.ErrorIs(t, err, ErrDuplicateKeyID)
	})
	t.Run("Failure - dangling authentication reference", func(t *testing.T) {
		c := doc.Clone()
		c.Authentication = []Authentication{{Reference: c.ID + "#keys-9"}}

		require.ErrorIs(t, c.Validate(), ErrKeyNotFound)
	})
	t.Run("Failure - embedded key without id", func(t *testing.T) {
		var a Authentication
		require.Error(t, json.Unmarshal([]byte(`{"type":"Secp256k1VerificationKey2018"}`), &a))
	})
	t.Run("Failure - unknown key", func(t *testing.T) {
		_, err := doc.PublicKeyByID(doc.ID + "#keys-2")
		require.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestServices(t *testing.T) {
	v := newTestVault(t)
	doc := newSignedDocument(t, v)

	_, ok := doc.PublicProfileService()
	require.False(t, ok)

	updated := testCreated.Add(time.Hour)
	withProfile := doc.WithPublicProfile("ipfs://QmXoypizjW3WknFiJnKLwHCnL72vedxjQkDDP1mXWo6uco", "profile", updated)

	svc, ok := withProfile.PublicProfileService()
	require.True(t, ok)
	require.Equal(t, doc.ID+"#profile", svc.ID)
	require.Equal(t, PublicProfileServiceType, svc.Type)
	require.Equal(t, "2018-07-18T16:05:30.000Z", withProfile.Updated)

	// original untouched
	require.Empty(t, doc.Service)
	require.Empty(t, doc.Updated)

	replaced := withProfile.WithPublicProfile("ipfs://QmOther", "", updated)
	require.Len(t, replaced.Service, 1)
	require.Equal(t, "ipfs://QmOther", replaced.Service[0].ServiceEndpoint)

	other := replaced.WithService(Service{ID: doc.ID + "#hub", Type: "Hub", ServiceEndpoint: "https://hub.example.com"})
	require.Len(t, other.Service, 2)

	t.Run("Service entries are covered by the digest", func(t *testing.T) {
		d1, err := doc.Digest()
		require.NoError(t, err)

		d2, err := withProfile.Digest()
		require.NoError(t, err)
		require.NotEqual(t, d1, d2)
	})
}

func TestKeyIDToDID(t *testing.T) {
	require.Equal(t, "did:jolo:abc", KeyIDToDID("did:jolo:abc#keys-1"))
	require.Equal(t, "did:jolo:abc", KeyIDToDID("did:jolo:abc"))
}

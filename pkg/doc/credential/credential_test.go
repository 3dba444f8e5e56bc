/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/linkeddata"
	"github.com/trustbloc/didtrust/pkg/vault"
)

const testPassphrase = "correct horse battery staple 32b"

var testIssued = time.Date(2018, 7, 18, 15, 5, 30, 0, time.UTC)

type testIssuer struct {
	vault *vault.Vault
	pub   []byte
	keyID string
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	v, err := vault.FromSeed(seed, testPassphrase)
	require.NoError(t, err)

	pub, err := v.PublicKey(vault.IdentityKeyPath, testPassphrase)
	require.NoError(t, err)

	return &testIssuer{vault: v, pub: pub, keyID: did.PublicKeyToDID(pub) + "#keys-1"}
}

func (i *testIssuer) sign(t *testing.T, c *SignedCredential) *SignedCredential {
	t.Helper()

	digest, err := c.Digest()
	require.NoError(t, err)

	sig, err := i.vault.Sign(vault.IdentityKeyPath, testPassphrase, digest)
	require.NoError(t, err)

	return c.WithProof(c.Proof.WithSignature(sig))
}

func profileArgs(issuer *testIssuer) *CreateArgs {
	return &CreateArgs{
		Metadata: PublicProfile(),
		Claim: map[string]interface{}{
			"name":        "Alice",
			"description": "Test identity",
			"url":         "https://alice.example.com",
		},
		Subject:     did.KeyIDToDID(issuer.keyID),
		IssuerKeyID: issuer.keyID,
		Issued:      testIssued,
	}
}

func TestBuild(t *testing.T) {
	issuer := newTestIssuer(t)

	c, err := Build(profileArgs(issuer))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(c.ID, "urn:uuid:"))
	require.Equal(t, did.KeyIDToDID(issuer.keyID), c.Issuer)
	require.Equal(t, c.Issuer, c.Subject())
	require.Equal(t, []string{BaseType, PublicProfileType}, c.Type)
	require.True(t, c.HasType(PublicProfileType))
	require.False(t, c.HasType("EmailCredential"))
	require.Equal(t, "Public Profile", c.Name)
	require.Equal(t, "2018-07-18T15:05:30.000Z", c.Issued)
	require.Equal(t, "2019-07-18T15:05:30.000Z", c.Expires)
	require.Empty(t, c.Signature())

	expires, err := c.ExpiresAt()
	require.NoError(t, err)
	require.Equal(t, testIssued.Add(defaultValidity), expires)

	t.Run("Explicit expiry", func(t *testing.T) {
		args := profileArgs(issuer)
		args.Expires = testIssued.Add(time.Hour)

		c, err := Build(args)
		require.NoError(t, err)
		require.Equal(t, "2018-07-18T16:05:30.000Z", c.Expires)
	})
	t.Run("Failure - subject is not a DID", func(t *testing.T) {
		args := profileArgs(issuer)
		args.Subject = "alice"

		_, err := Build(args)
		require.ErrorIs(t, err, ErrInvalidCredential)
	})
	t.Run("Failure - issuer key is not a DID key", func(t *testing.T) {
		args := profileArgs(issuer)
		args.IssuerKeyID = "keys-1"

		_, err := Build(args)
		require.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestSignAndParse(t *testing.T) {
	issuer := newTestIssuer(t)

	c, err := Build(profileArgs(issuer))
	require.NoError(t, err)

	signed := issuer.sign(t, c)
	require.NotEmpty(t, signed.Signature())
	require.Empty(t, c.Signature())

	digest, err := signed.Digest()
	require.NoError(t, err)

	sig, err := signed.Proof.Signature()
	require.NoError(t, err)
	require.True(t, vault.Verify(digest, issuer.pub, sig))

	raw, err := signed.JSONBytes()
	require.NoError(t, err)

	t.Run("Round trip keeps the digest", func(t *testing.T) {
		parsed, err := Parse(raw)
		require.NoError(t, err)

		again, err := parsed.Digest()
		require.NoError(t, err)
		require.Equal(t, digest, again)
	})
	t.Run("Claim tampering changes the digest", func(t *testing.T) {
		parsed, err := Parse(raw)
		require.NoError(t, err)

		parsed.Claim["name"] = "Mallory"

		d, err := parsed.Digest()
		require.NoError(t, err)
		require.False(t, vault.Verify(d, issuer.pub, sig))
	})
	t.Run("Undefined claim term is rejected", func(t *testing.T) {
		parsed, err := Parse(raw)
		require.NoError(t, err)

		parsed.Claim["nickname"] = "al"

		_, err = parsed.Digest()
		require.ErrorIs(t, err, linkeddata.ErrCanonicalization)
	})
	t.Run("Failure - parse", func(t *testing.T) {
		mutate := func(t *testing.T, fn func(m map[string]interface{})) []byte {
			t.Helper()

			var m map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &m))
			fn(m)

			b, err := json.Marshal(m)
			require.NoError(t, err)

			return b
		}

		_, err := Parse([]byte("["))
		require.ErrorIs(t, err, ErrInvalidCredential)

		_, err = Parse(mutate(t, func(m map[string]interface{}) { m["issuer"] = "alice" }))
		require.ErrorIs(t, err, ErrInvalidCredential)

		_, err = Parse(mutate(t, func(m map[string]interface{}) {
			delete(m["claim"].(map[string]interface{}), "id")
		}))
		require.ErrorIs(t, err, ErrInvalidCredential)

		_, err = Parse(mutate(t, func(m map[string]interface{}) { delete(m, "proof") }))
		require.ErrorIs(t, err, ErrInvalidCredential)

		_, err = Parse(mutate(t, func(m map[string]interface{}) {
			m["proof"].(map[string]interface{})["creator"] = "did:jolo:other#keys-1"
		}))
		require.ErrorIs(t, err, ErrInvalidCredential)
	})
	t.Run("Failure - bad expiry", func(t *testing.T) {
		bad := *signed
		bad.Expires = "tomorrow"

		_, err := bad.ExpiresAt()
		require.ErrorIs(t, err, ErrInvalidCredential)

		bad.Expires = ""

		exp, err := bad.ExpiresAt()
		require.NoError(t, err)
		require.True(t, exp.IsZero())
	})
	t.Run("Failure - unsigned digest", func(t *testing.T) {
		unsigned := *signed
		unsigned.Proof = nil

		_, err := unsigned.Digest()
		require.ErrorIs(t, err, ErrInvalidCredential)
		require.Empty(t, unsigned.Signer().DID)
		require.Empty(t, unsigned.Signature())
	})
}

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
)

// Compressed public key of the secp256k1 generator point.
var testPublicKey = []byte{
	0x02, 0x79, 0xbe, 0x66, 0x7e, 0xf9, 0xdc, 0xbb, 0xac, 0x55, 0xa0, 0x62, 0x95, 0xce, 0x87, 0x0b,
	0x07, 0x02, 0x9b, 0xfc, 0xdb, 0x2d, 0xce, 0x28, 0xd9, 0x59, 0xf2, 0x81, 0x5b, 0x16, 0xf8, 0x17, 0x98,
}

func TestIdentity(t *testing.T) {
	doc, err := did.FromPublicKey(testPublicKey, time.Now())
	require.NoError(t, err)

	require.True(t, Identity{}.IsZero())
	require.Empty(t, Identity{}.DID())
	require.Nil(t, Identity{}.Document())
	require.Nil(t, Identity{}.PublicKeys())
	require.Nil(t, Identity{}.ServiceEndpoints())

	_, err = Identity{}.PublicKey("x")
	require.ErrorIs(t, err, did.ErrKeyNotFound)

	id := New(doc, nil)
	require.False(t, id.IsZero())
	require.Equal(t, doc.ID, id.DID())
	require.Len(t, id.PublicKeys(), 1)
	require.Empty(t, id.ServiceEndpoints())

	_, ok := id.PublicProfile()
	require.False(t, ok)

	key, err := id.PublicKey(doc.ID + "#keys-1")
	require.NoError(t, err)
	require.Equal(t, doc.PublicKey[0], *key)

	t.Run("Accessors return copies", func(t *testing.T) {
		id.Document().ID = "did:jolo:changed"
		id.PublicKeys()[0].PublicKeyHex = "00"
		doc.ID = "did:jolo:changed-too"

		require.NotEqual(t, "did:jolo:changed", id.DID())
		require.NotEqual(t, "did:jolo:changed-too", id.DID())
		require.NotEqual(t, "00", id.PublicKeys()[0].PublicKeyHex)
	})
	t.Run("With public profile", func(t *testing.T) {
		profile, err := credential.Build(&credential.CreateArgs{
			Metadata:    credential.PublicProfile(),
			Claim:       map[string]interface{}{"name": "Alice"},
			Subject:     id.DID(),
			IssuerKeyID: id.DID() + "#keys-1",
			Issued:      time.Now(),
		})
		require.NoError(t, err)

		withProfile := id.WithPublicProfile(profile)

		got, ok := withProfile.PublicProfile()
		require.True(t, ok)
		require.Equal(t, profile.ID, got.ID)

		got.Claim["name"] = "Mallory"

		again, _ := withProfile.PublicProfile()
		require.Equal(t, "Alice", again.Claim["name"])

		_, ok = id.PublicProfile()
		require.False(t, ok)

		updated := withProfile.WithDocument(withProfile.Document().WithPublicProfile("ipfs://Qm", "", time.Now()))
		require.Len(t, updated.ServiceEndpoints(), 1)

		_, ok = updated.PublicProfile()
		require.True(t, ok)
	})
}

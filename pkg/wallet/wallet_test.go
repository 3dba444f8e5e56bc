/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/interaction"
	"github.com/trustbloc/didtrust/pkg/registry"
	"github.com/trustbloc/didtrust/pkg/resolver"
	"github.com/trustbloc/didtrust/pkg/vault"
)

const testPassphrase = "correct horse battery staple 32b"

type testNetwork struct {
	registry *registry.Registry
	resolver *resolver.Resolver
}

func newTestNetwork(t *testing.T) *testNetwork {
	t.Helper()

	reg, err := registry.New(mem.NewProvider())
	require.NoError(t, err)

	return &testNetwork{registry: reg, resolver: resolver.New(reg)}
}

func newTestVault(t *testing.T, seedByte byte) *vault.Vault {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte + byte(i)
	}

	v, err := vault.FromSeed(seed, testPassphrase)
	require.NoError(t, err)

	return v
}

func (n *testNetwork) newWallet(t *testing.T, seedByte byte) *Wallet {
	t.Helper()

	w, err := Create(context.Background(), newTestVault(t, seedByte), testPassphrase,
		WithResolver(n.resolver), WithRegistrar(n.registry))
	require.NoError(t, err)

	return w
}

func emailMetadata() credential.Metadata {
	return credential.Metadata{
		Type: []string{"EmailCredential"},
		Name: "Email address",
		Context: []interface{}{
			map[string]interface{}{
				"EmailCredential": "https://example.com/terms/EmailCredential",
				"email":           "schema:email",
			},
		},
	}
}

type failingRegistrar struct{}

func (failingRegistrar) Anchor(context.Context, []byte, []byte) error {
	return errors.New("registry unavailable")
}

// gatedRegistrar holds every anchor until release is closed.
type gatedRegistrar struct {
	next    Registrar
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRegistrar) Anchor(ctx context.Context, docRecord, profileRecord []byte) error {
	g.entered <- struct{}{}
	<-g.release

	return g.next.Anchor(ctx, docRecord, profileRecord)
}

func TestCreate(t *testing.T) {
	network := newTestNetwork(t)
	v := newTestVault(t, 1)

	w, err := Create(context.Background(), v, testPassphrase,
		WithResolver(network.resolver), WithRegistrar(network.registry))
	require.NoError(t, err)

	pub, err := v.PublicKey(vault.IdentityKeyPath, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, did.PublicKeyToDID(pub), w.DID())
	require.Equal(t, w.DID()+"#keys-1", w.KeyID())
	require.Equal(t, v, w.Vault())
	require.NoError(t, resolver.VerifyDocument(w.Identity().Document()))

	resolved, err := network.resolver.Resolve(context.Background(), w.DID())
	require.NoError(t, err)
	require.Equal(t, w.DID(), resolved.DID())

	t.Run("Without a registrar nothing is anchored", func(t *testing.T) {
		w, err := Create(context.Background(), newTestVault(t, 2), testPassphrase)
		require.NoError(t, err)

		_, err = network.registry.Resolve(context.Background(), w.DID())
		require.ErrorIs(t, err, registry.ErrNotFound)
	})
	t.Run("Failure - wrong passphrase", func(t *testing.T) {
		_, err := Create(context.Background(), v, "wrong")
		require.ErrorIs(t, err, vault.ErrDecryptionFailed)
	})
	t.Run("Failure - registrar", func(t *testing.T) {
		_, err := Create(context.Background(), v, testPassphrase, WithRegistrar(failingRegistrar{}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "registry unavailable")
	})
}

func TestPublicProfile(t *testing.T) {
	network := newTestNetwork(t)
	alice := network.newWallet(t, 1)

	profile, err := alice.CreatePublicProfile(context.Background(),
		map[string]interface{}{"name": "Alice", "description": "Test identity"}, "Alice's profile", testPassphrase)
	require.NoError(t, err)
	require.True(t, profile.HasType(credential.PublicProfileType))
	require.Equal(t, alice.DID(), profile.Subject())

	got, ok := alice.Identity().PublicProfile()
	require.True(t, ok)
	require.Equal(t, profile.ID, got.ID)

	resolved, err := network.resolver.Resolve(context.Background(), alice.DID())
	require.NoError(t, err)

	got, ok = resolved.PublicProfile()
	require.True(t, ok)
	require.Equal(t, profile.ID, got.ID)

	service, ok := resolved.Document().PublicProfileService()
	require.True(t, ok)
	require.True(t, strings.HasPrefix(service.ServiceEndpoint, registry.ContentScheme))
	require.Equal(t, "Alice's profile", service.Description)
}

func TestInteraction(t *testing.T) {
	network := newTestNetwork(t)
	alice := network.newWallet(t, 1)
	bob := network.newWallet(t, 2)
	ctx := context.Background()

	request, err := alice.IssueRequest(&interaction.CredentialRequest{
		CallbackURL:            "https://example.com/callback",
		CredentialRequirements: []interaction.CredentialRequirement{{Type: []string{credential.BaseType, "EmailCredential"}}},
	}, testPassphrase)
	require.NoError(t, err)

	encoded, err := request.Encode()
	require.NoError(t, err)

	received, err := interaction.Parse(encoded)
	require.NoError(t, err)
	require.NoError(t, bob.ValidateToken(ctx, received, nil))

	email, err := bob.CreateSignedCredential(&CredentialArgs{
		Metadata: emailMetadata(),
		Claim:    map[string]interface{}{"email": "bob@example.com"},
	}, testPassphrase)
	require.NoError(t, err)

	response, err := bob.IssueResponse(&interaction.CredentialResponse{
		SuppliedCredentials: []*credential.SignedCredential{email},
	}, received, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, request.Nonce(), response.Nonce())
	require.Equal(t, alice.DID(), response.Audience())

	require.NoError(t, alice.ValidateToken(ctx, response, request))

	t.Run("Credentials from the response validate", func(t *testing.T) {
		payload, err := response.Payload()
		require.NoError(t, err)

		supplied := payload.(*interaction.CredentialResponse).SuppliedCredentials
		require.Len(t, supplied, 1)
		require.NoError(t, alice.ValidateCredential(ctx, supplied[0]))
	})
	t.Run("Failure - response to another request", func(t *testing.T) {
		other, err := alice.IssueRequest(&interaction.Authentication{Challenge: "abc"}, testPassphrase)
		require.NoError(t, err)

		require.ErrorIs(t, alice.ValidateToken(ctx, response, other), interaction.ErrNonceMismatch)
	})
	t.Run("Failure - response validated by another identity", func(t *testing.T) {
		carol := network.newWallet(t, 3)

		require.ErrorIs(t, carol.ValidateToken(ctx, response, nil), interaction.ErrNotIntendedAudience)
	})
	t.Run("Failure - expired", func(t *testing.T) {
		late := network.newWallet(t, 1)
		late.clock = func() time.Time { return time.Now().Add(2 * interaction.DefaultExpiry) }

		require.ErrorIs(t, late.ValidateToken(ctx, response, request), interaction.ErrExpired)
	})
}

func TestPaymentRequestDefaults(t *testing.T) {
	w, err := Create(context.Background(), newTestVault(t, 1), testPassphrase)
	require.NoError(t, err)

	token, err := w.IssueRequest(interaction.PaymentRequest{
		CallbackURL:        "https://example.com/pay",
		Description:        "coffee",
		TransactionOptions: interaction.TransactionOptions{Value: "1000"},
	}, testPassphrase)
	require.NoError(t, err)

	payload, err := token.Payload()
	require.NoError(t, err)

	options := payload.(*interaction.PaymentRequest).TransactionOptions
	require.Equal(t, uint64(defaultGasLimit), options.GasLimit)
	require.Equal(t, defaultGasPrice, options.GasPrice)
	require.Equal(t, "1000", options.Value)

	keys, err := w.PublicKeys(testPassphrase)
	require.NoError(t, err)

	ethereumKey, err := hex.DecodeString(keys[EthereumKey])
	require.NoError(t, err)

	address, err := EthereumAddress(ethereumKey)
	require.NoError(t, err)
	require.Equal(t, address, options.To)

	t.Run("Explicit recipient is kept", func(t *testing.T) {
		token, err := w.IssueRequest(&interaction.PaymentRequest{
			TransactionOptions: interaction.TransactionOptions{To: "0x01", Value: "1", GasLimit: 5},
		}, testPassphrase)
		require.NoError(t, err)

		payload, err := token.Payload()
		require.NoError(t, err)

		options := payload.(*interaction.PaymentRequest).TransactionOptions
		require.Equal(t, "0x01", options.To)
		require.Equal(t, uint64(5), options.GasLimit)
	})
}

func TestEthereumAddress(t *testing.T) {
	// Well-known address of the secp256k1 key with private scalar 1.
	pub, err := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.NoError(t, err)

	address, err := EthereumAddress(pub)
	require.NoError(t, err)
	require.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", address)

	_, err = EthereumAddress([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestPublicKeys(t *testing.T) {
	w, err := Create(context.Background(), newTestVault(t, 1), testPassphrase)
	require.NoError(t, err)

	keys, err := w.PublicKeys(testPassphrase)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, w.Identity().PublicKeys()[0].PublicKeyHex, keys[IdentityKey])
	require.NotEqual(t, keys[IdentityKey], keys[EthereumKey])

	_, err = w.PublicKeys("wrong")
	require.Error(t, err)
}

func TestAsymEncryptToDID(t *testing.T) {
	network := newTestNetwork(t)
	alice := network.newWallet(t, 1)
	bob := network.newWallet(t, 2)

	ciphertext, err := alice.AsymEncryptToDID(context.Background(), []byte("hello bob"), bob.KeyID())
	require.NoError(t, err)

	plaintext, err := bob.AsymDecrypt(ciphertext, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, "hello bob", string(plaintext))

	_, err = alice.AsymDecrypt(ciphertext, testPassphrase)
	require.ErrorIs(t, err, vault.ErrDecryptionFailed)

	t.Run("Failure - unknown key", func(t *testing.T) {
		_, err := alice.AsymEncryptToDID(context.Background(), []byte("x"), bob.DID()+"#keys-9")
		require.ErrorIs(t, err, did.ErrKeyNotFound)
	})
	t.Run("Failure - unknown DID", func(t *testing.T) {
		_, err := alice.AsymEncryptToDID(context.Background(), []byte("x"), "did:jolo:00#keys-1")
		require.ErrorIs(t, err, resolver.ErrDidNotAnchored)
	})
}

func TestRecover(t *testing.T) {
	network := newTestNetwork(t)
	alice := network.newWallet(t, 1)
	bob := network.newWallet(t, 2)
	ctx := context.Background()

	_, err := alice.CreatePublicProfile(ctx, map[string]interface{}{"name": "Alice"}, "", testPassphrase)
	require.NoError(t, err)

	phrase, err := alice.Mnemonic(testPassphrase)
	require.NoError(t, err)
	require.Len(t, strings.Fields(phrase), 48)

	t.Run("From the anchored identity", func(t *testing.T) {
		recovered, err := Recover(ctx, phrase, "new passphrase", WithResolver(network.resolver))
		require.NoError(t, err)
		require.Equal(t, alice.DID(), recovered.DID())

		_, ok := recovered.Identity().PublicProfile()
		require.True(t, ok)
	})
	t.Run("Without a resolver", func(t *testing.T) {
		recovered, err := Recover(ctx, phrase, testPassphrase)
		require.NoError(t, err)
		require.Equal(t, alice.DID(), recovered.DID())
	})
	t.Run("Seed phrase only", func(t *testing.T) {
		recovered, err := Recover(ctx, strings.Join(strings.Fields(phrase)[:24], " "), testPassphrase)
		require.NoError(t, err)
		require.Equal(t, alice.DID(), recovered.DID())
	})
	t.Run("Failure - phrase names another DID", func(t *testing.T) {
		bobPhrase, err := bob.Mnemonic(testPassphrase)
		require.NoError(t, err)

		mixed := strings.Join(append(strings.Fields(phrase)[:24], strings.Fields(bobPhrase)[24:]...), " ")

		_, err = Recover(ctx, mixed, testPassphrase)
		require.ErrorIs(t, err, ErrIdentityMismatch)
	})
	t.Run("Failure - invalid phrase", func(t *testing.T) {
		_, err := Recover(ctx, "not a mnemonic", testPassphrase)
		require.ErrorIs(t, err, vault.ErrInvalidMnemonic)
	})
	t.Run("Failure - not anchored", func(t *testing.T) {
		unanchored, err := Create(ctx, newTestVault(t, 9), testPassphrase)
		require.NoError(t, err)

		p, err := unanchored.Mnemonic(testPassphrase)
		require.NoError(t, err)

		_, err = Recover(ctx, p, testPassphrase, WithResolver(network.resolver))
		require.ErrorIs(t, err, resolver.ErrDidNotAnchored)
	})
}

func TestIdentityReplacement(t *testing.T) {
	network := newTestNetwork(t)
	alice := network.newWallet(t, 1)
	bob := network.newWallet(t, 2)

	t.Run("WithIdentity", func(t *testing.T) {
		resolved, err := network.resolver.Resolve(context.Background(), alice.DID())
		require.NoError(t, err)
		require.NoError(t, alice.WithIdentity(resolved))

		require.ErrorIs(t, alice.WithIdentity(bob.Identity()), ErrIdentityMismatch)
	})
	t.Run("Open", func(t *testing.T) {
		opened, err := Open(alice.Vault(), alice.Identity(), testPassphrase)
		require.NoError(t, err)
		require.Equal(t, alice.DID(), opened.DID())

		_, err = Open(alice.Vault(), bob.Identity(), testPassphrase)
		require.ErrorIs(t, err, ErrIdentityMismatch)
	})
	t.Run("WithIdentity waits for a profile update in flight", func(t *testing.T) {
		ctx := context.Background()
		carol := network.newWallet(t, 3)

		gate := &gatedRegistrar{next: network.registry, entered: make(chan struct{}, 1), release: make(chan struct{})}

		w, err := Open(carol.Vault(), carol.Identity(), testPassphrase,
			WithResolver(network.resolver), WithRegistrar(gate))
		require.NoError(t, err)

		resolved, err := network.resolver.Resolve(ctx, w.DID())
		require.NoError(t, err)

		profileDone := make(chan error, 1)

		go func() {
			_, errProfile := w.CreatePublicProfile(ctx,
				map[string]interface{}{"name": "Carol", "description": "Test identity"}, "", testPassphrase)
			profileDone <- errProfile
		}()

		<-gate.entered

		replaced := make(chan error, 1)

		go func() {
			replaced <- w.WithIdentity(resolved)
		}()

		select {
		case <-replaced:
			t.Fatal("identity replaced while the profile was being anchored")
		case <-time.After(50 * time.Millisecond):
		}

		close(gate.release)

		require.NoError(t, <-profileDone)
		require.NoError(t, <-replaced)

		_, ok := w.Identity().PublicProfile()
		require.False(t, ok)
	})
}

func TestNoResolver(t *testing.T) {
	w, err := Create(context.Background(), newTestVault(t, 1), testPassphrase)
	require.NoError(t, err)

	token, err := w.IssueRequest(&interaction.Authentication{Challenge: "abc"}, testPassphrase)
	require.NoError(t, err)

	require.ErrorIs(t, w.ValidateToken(context.Background(), token, nil), ErrNoResolver)

	_, err = w.AsymEncryptToDID(context.Background(), []byte("x"), w.KeyID())
	require.ErrorIs(t, err, ErrNoResolver)

	cred, err := w.CreateSignedCredential(&CredentialArgs{
		Metadata: emailMetadata(),
		Claim:    map[string]interface{}{"email": "alice@example.com"},
	}, testPassphrase)
	require.NoError(t, err)
	require.ErrorIs(t, w.ValidateCredential(context.Background(), cred), ErrNoResolver)
}

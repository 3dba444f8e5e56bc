/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wallet binds a vault to the identity it controls and signs on its behalf: DID
// documents, credentials and interaction tokens.
package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/trustbloc/edge-core/pkg/log"
	"golang.org/x/crypto/sha3"

	"github.com/trustbloc/didtrust/pkg/doc/credential"
	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/doc/proof"
	"github.com/trustbloc/didtrust/pkg/identity"
	"github.com/trustbloc/didtrust/pkg/interaction"
	"github.com/trustbloc/didtrust/pkg/registry"
	"github.com/trustbloc/didtrust/pkg/resolver"
	"github.com/trustbloc/didtrust/pkg/trusterrors"
	"github.com/trustbloc/didtrust/pkg/trustutils"
	"github.com/trustbloc/didtrust/pkg/vault"
)

const (
	logModuleName = "didtrust/wallet"

	// IdentityKey names the identity key in the PublicKeys map.
	IdentityKey = "identityKey"
	// EthereumKey names the ledger key in the PublicKeys map.
	EthereumKey = "ethereumKey"

	defaultGasLimit = 21000
	defaultGasPrice = "10000000000"
)

var logger = log.New(logModuleName)

var (
	// ErrNoResolver is returned by operations that need to resolve other identities when the
	// wallet was built without a resolver.
	ErrNoResolver = trusterrors.New(trusterrors.Resolution, "wallet has no resolver")
	// ErrIdentityMismatch is returned when an identity or phrase does not belong to the vault.
	ErrIdentityMismatch = trusterrors.New(trusterrors.Validation, "identity is not controlled by the vault")
)

// Registrar anchors signed documents.
type Registrar interface {
	Anchor(ctx context.Context, docRecord, profileRecord []byte) error
}

// IdentityResolver resolves DIDs to verified identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, did string) (identity.Identity, error)
}

// Option configures a Wallet.
type Option func(w *Wallet)

// WithResolver sets the resolver used to validate tokens and credentials from other identities.
func WithResolver(r IdentityResolver) Option {
	return func(w *Wallet) {
		w.resolver = r
	}
}

// WithRegistrar anchors every document the wallet signs.
func WithRegistrar(r Registrar) Option {
	return func(w *Wallet) {
		w.registrar = r
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(w *Wallet) {
		w.clock = clock
	}
}

// Wallet signs for the identity whose controlling key lives in its vault. Safe for concurrent use.
type Wallet struct {
	vault     *vault.Vault
	resolver  IdentityResolver
	registrar Registrar
	clock     func() time.Time

	// update serializes identity replacements that span signing and anchoring.
	update   sync.Mutex
	mutex    sync.RWMutex
	identity identity.Identity
}

func newWallet(v *vault.Vault, opts []Option) *Wallet {
	w := &Wallet{vault: v, clock: time.Now}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Create builds a self-issued identity from the vault's identity key, signs its document and,
// when a registrar is configured, anchors it.
func Create(ctx context.Context, v *vault.Vault, passphrase string, opts ...Option) (*Wallet, error) {
	w := newWallet(v, opts)

	doc, err := w.selfIssuedDocument(passphrase)
	if err != nil {
		return nil, err
	}

	signed, err := w.signAndAnchor(ctx, doc, nil, passphrase)
	if err != nil {
		return nil, err
	}

	w.identity = identity.New(signed, nil)

	logger.Infof("created identity %s", signed.ID)

	return w, nil
}

// Open returns a wallet for an existing identity. The identity must be controlled by the
// vault's identity key.
func Open(v *vault.Vault, id identity.Identity, passphrase string, opts ...Option) (*Wallet, error) {
	w := newWallet(v, opts)

	err := w.checkControl(id, passphrase)
	if err != nil {
		return nil, err
	}

	w.identity = id

	return w, nil
}

// Recover rebuilds a wallet from an identity phrase produced by Mnemonic. When the phrase also
// encodes a DID, it must be the DID of the recovered key. With a resolver configured, the
// anchored identity is resolved; otherwise a fresh self-issued document is signed.
func Recover(ctx context.Context, phrase, passphrase string, opts ...Option) (*Wallet, error) {
	seedPhrase, didID, err := vault.SplitMnemonic(phrase)
	if err != nil {
		return nil, err
	}

	v, err := vault.Recover(seedPhrase, passphrase)
	if err != nil {
		return nil, err
	}

	w := newWallet(v, opts)

	pub, err := v.PublicKey(vault.IdentityKeyPath, passphrase)
	if err != nil {
		return nil, err
	}

	id := did.PublicKeyToDID(pub)
	if didID != "" && id != "did:"+did.Method+":"+didID {
		return nil, fmt.Errorf("%w: phrase names %s, key controls %s", ErrIdentityMismatch, didID, id)
	}

	if w.resolver == nil {
		return Create(ctx, v, passphrase, opts...)
	}

	resolved, err := w.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recover %s: %w", id, err)
	}

	return Open(v, resolved, passphrase, opts...)
}

// DID returns the wallet's identifier.
func (w *Wallet) DID() string {
	return w.Identity().DID()
}

// KeyID returns the id of the key the wallet signs with.
func (w *Wallet) KeyID() string {
	return w.DID() + "#" + did.KeyFragment
}

// Identity returns the current identity.
func (w *Wallet) Identity() identity.Identity {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.identity
}

// Vault returns the wallet's vault.
func (w *Wallet) Vault() *vault.Vault {
	return w.vault
}

// WithIdentity replaces the wallet's identity, for instance after resolving a newer version of
// the document. The identity must keep the same DID.
func (w *Wallet) WithIdentity(id identity.Identity) error {
	if id.DID() != w.DID() {
		return fmt.Errorf("%w: %s is not %s", ErrIdentityMismatch, id.DID(), w.DID())
	}

	w.update.Lock()
	defer w.update.Unlock()

	w.setIdentity(id)

	return nil
}

// Mnemonic returns the identity phrase: the seed phrase followed by a phrase encoding the DID.
func (w *Wallet) Mnemonic(passphrase string) (string, error) {
	return w.vault.Mnemonic(passphrase, w.DID())
}

// PublicKeys derives the identity and ledger public keys, hex-encoded.
func (w *Wallet) PublicKeys(passphrase string) (map[string]string, error) {
	keys := make(map[string]string)

	for name, path := range map[string]string{
		IdentityKey: vault.IdentityKeyPath,
		EthereumKey: vault.EthereumKeyPath,
	} {
		pub, err := w.vault.PublicKey(path, passphrase)
		if err != nil {
			return nil, err
		}

		keys[name] = hex.EncodeToString(pub)
	}

	return keys, nil
}

// CredentialArgs describe a credential to issue. Subject defaults to the wallet's DID and Expires
// to a year after issuance.
type CredentialArgs struct {
	Metadata credential.Metadata
	Claim    map[string]interface{}
	Subject  string
	Expires  time.Time
}

// CreateSignedCredential issues a credential signed by the wallet's identity key.
func (w *Wallet) CreateSignedCredential(args *CredentialArgs, passphrase string) (*credential.SignedCredential,
	error) {
	subject := args.Subject
	if subject == "" {
		subject = w.DID()
	}

	cred, err := credential.Build(&credential.CreateArgs{
		Metadata:    args.Metadata,
		Claim:       args.Claim,
		Subject:     subject,
		IssuerKeyID: w.KeyID(),
		Issued:      w.clock(),
		Expires:     args.Expires,
	})
	if err != nil {
		return nil, err
	}

	digest, err := cred.Digest()
	if err != nil {
		return nil, err
	}

	signature, err := w.sign(digest, passphrase)
	if err != nil {
		return nil, err
	}

	return cred.WithProof(cred.Proof.WithSignature(signature)), nil
}

// CreatePublicProfile issues a public profile credential about the wallet's identity, points the
// document's profile service at it and re-signs the document. Both are anchored when a registrar
// is configured.
func (w *Wallet) CreatePublicProfile(ctx context.Context, claim map[string]interface{}, description,
	passphrase string) (*credential.SignedCredential, error) {
	profile, err := w.CreateSignedCredential(&CredentialArgs{
		Metadata: credential.PublicProfile(),
		Claim:    claim,
	}, passphrase)
	if err != nil {
		return nil, err
	}

	profileRecord, err := profile.JSONBytes()
	if err != nil {
		return nil, err
	}

	w.update.Lock()
	defer w.update.Unlock()

	current := w.Identity()

	doc := current.Document().WithPublicProfile(registry.ContentScheme+trustutils.ContentID(profileRecord),
		description, w.clock())

	signed, err := w.signAndAnchor(ctx, doc, profileRecord, passphrase)
	if err != nil {
		return nil, err
	}

	w.setIdentity(current.WithDocument(signed).WithPublicProfile(profile))

	return profile, nil
}

func (w *Wallet) setIdentity(id identity.Identity) {
	w.mutex.Lock()
	w.identity = id
	w.mutex.Unlock()
}

// IssueRequest signs an interaction request.
func (w *Wallet) IssueRequest(payload interaction.Payload, passphrase string,
	opts ...interaction.IssueOption) (*interaction.Token, error) {
	payload, err := w.withPaymentDefaults(payload, passphrase)
	if err != nil {
		return nil, err
	}

	return interaction.Issue(payload, w.KeyID(), w.signFunc(passphrase),
		append([]interaction.IssueOption{interaction.WithClock(w.clock)}, opts...)...)
}

// IssueResponse signs a response to request: the nonce is carried over and the request's
// issuer becomes the audience.
func (w *Wallet) IssueResponse(payload interaction.Payload, request *interaction.Token, passphrase string,
	opts ...interaction.IssueOption) (*interaction.Token, error) {
	return interaction.Issue(payload, w.KeyID(), w.signFunc(passphrase),
		append([]interaction.IssueOption{interaction.WithClock(w.clock), interaction.InResponseTo(request)},
			opts...)...)
}

// ValidateToken checks a received token. sent is the request the token answers, or nil when the
// token is a request addressed to this wallet.
func (w *Wallet) ValidateToken(ctx context.Context, received, sent *interaction.Token) error {
	if w.resolver == nil {
		return ErrNoResolver
	}

	opts := []interaction.ValidateOption{
		interaction.WithSelfDID(w.DID()),
		interaction.WithValidationClock(w.clock),
	}

	if sent != nil {
		opts = append(opts, interaction.WithSentToken(sent))
	}

	return interaction.Validate(ctx, received, w.resolver, opts...)
}

// ValidateCredential checks a credential issued by another identity.
func (w *Wallet) ValidateCredential(ctx context.Context, cred *credential.SignedCredential) error {
	if w.resolver == nil {
		return ErrNoResolver
	}

	return resolver.ValidateCredential(ctx, cred, w.resolver, w.clock())
}

// AsymEncryptToDID encrypts data to the key keyRef (did#fragment) of a resolved identity.
func (w *Wallet) AsymEncryptToDID(ctx context.Context, data []byte, keyRef string) ([]byte, error) {
	if w.resolver == nil {
		return nil, ErrNoResolver
	}

	target, err := w.resolver.Resolve(ctx, did.KeyIDToDID(keyRef))
	if err != nil {
		return nil, err
	}

	key, err := target.PublicKey(keyRef)
	if err != nil {
		return nil, err
	}

	pub, err := key.Bytes()
	if err != nil {
		return nil, err
	}

	return vault.AsymEncrypt(data, pub)
}

// AsymDecrypt decrypts data encrypted to the wallet's identity key.
func (w *Wallet) AsymDecrypt(data []byte, passphrase string) ([]byte, error) {
	return w.vault.AsymDecrypt(data, vault.IdentityKeyPath, passphrase)
}

func (w *Wallet) selfIssuedDocument(passphrase string) (*did.Document, error) {
	pub, err := w.vault.PublicKey(vault.IdentityKeyPath, passphrase)
	if err != nil {
		return nil, err
	}

	return did.FromPublicKey(pub, w.clock())
}

// signAndAnchor gives doc a fresh proof, signs it and hands it to the registrar, if any.
func (w *Wallet) signAndAnchor(ctx context.Context, doc *did.Document, profileRecord []byte,
	passphrase string) (*did.Document, error) {
	p, err := proof.New(doc.ID+"#"+did.KeyFragment, w.clock())
	if err != nil {
		return nil, err
	}

	unsigned := doc.WithProof(p)

	digest, err := unsigned.Digest()
	if err != nil {
		return nil, err
	}

	signature, err := w.sign(digest, passphrase)
	if err != nil {
		return nil, err
	}

	signed := unsigned.WithProof(p.WithSignature(signature))

	if w.registrar == nil {
		return signed, nil
	}

	raw, err := signed.JSONBytes()
	if err != nil {
		return nil, err
	}

	err = w.registrar.Anchor(ctx, raw, profileRecord)
	if err != nil {
		return nil, fmt.Errorf("anchor %s: %w", signed.ID, err)
	}

	return signed, nil
}

func (w *Wallet) checkControl(id identity.Identity, passphrase string) error {
	if id.IsZero() {
		return fmt.Errorf("%w: empty identity", ErrIdentityMismatch)
	}

	pub, err := w.vault.PublicKey(vault.IdentityKeyPath, passphrase)
	if err != nil {
		return err
	}

	key, err := id.PublicKey(id.DID() + "#" + did.KeyFragment)
	if err != nil || key.PublicKeyHex != hex.EncodeToString(pub) {
		return fmt.Errorf("%w: %s", ErrIdentityMismatch, id.DID())
	}

	return nil
}

func (w *Wallet) sign(digest []byte, passphrase string) ([]byte, error) {
	return w.vault.Sign(vault.IdentityKeyPath, passphrase, digest)
}

func (w *Wallet) signFunc(passphrase string) interaction.SignFunc {
	return func(digest []byte) ([]byte, error) {
		return w.sign(digest, passphrase)
	}
}

// withPaymentDefaults fills in gas and, when missing, the wallet's own ledger address as recipient.
func (w *Wallet) withPaymentDefaults(payload interaction.Payload, passphrase string) (interaction.Payload, error) {
	var withDefaults interaction.PaymentRequest

	switch request := payload.(type) {
	case *interaction.PaymentRequest:
		withDefaults = *request
	case interaction.PaymentRequest:
		withDefaults = request
	default:
		return payload, nil
	}

	options := &withDefaults.TransactionOptions

	if options.GasLimit == 0 {
		options.GasLimit = defaultGasLimit
	}

	if options.GasPrice == "" {
		options.GasPrice = defaultGasPrice
	}

	if options.To == "" {
		pub, err := w.vault.PublicKey(vault.EthereumKeyPath, passphrase)
		if err != nil {
			return nil, err
		}

		options.To, err = EthereumAddress(pub)
		if err != nil {
			return nil, err
		}
	}

	return &withDefaults, nil
}

// EthereumAddress returns the 0x-prefixed ledger address of a secp256k1 public key.
func EthereumAddress(publicKey []byte) (string, error) {
	pub, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:]) //nolint:errcheck

	return "0x" + hex.EncodeToString(h.Sum(nil)[12:]), nil
}

// Package wallet decodes WIF-encoded private keys and produces secp256k1
// signatures for the dual-witness submission scheme: an attester key that
// proves the submission originated in the trusted environment, and a
// fee-payer key that covers the network fee.
package wallet

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/r3e-network/price-oracle/internal/oerrors"
)

// Signer wraps a decoded private key and signs payload digests with it.
// Implementations MUST NOT leak the underlying key material through any
// exported field.
type Signer interface {
	// Sign returns a DER-encoded secp256k1 signature over the SHA-256
	// digest of payload.
	Sign(payload []byte) ([]byte, error)
	// PublicKeyHash returns the compressed-public-key hash used to derive
	// this signer's on-chain address.
	PublicKeyHash() []byte
}

type wifSigner struct {
	key *secp256k1.PrivateKey
	pub []byte
}

// FromWIF decodes a wallet-import-format private key. A key shorter than
// 52 characters or otherwise malformed is rejected as a credentials error.
func FromWIF(wif string) (Signer, error) {
	if len(wif) < 52 {
		return nil, oerrors.ErrCredentials
	}
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, oerrors.ErrCredentials
	}
	priv, _ := secp256k1.PrivKeyFromBytes(decoded.PrivKey.Serialize())
	pub := priv.PubKey().SerializeCompressed()
	return &wifSigner{key: priv, pub: pub}, nil
}

func (s *wifSigner) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig := ecdsa.Sign(s.key, digest[:])
	return sig.Serialize(), nil
}

func (s *wifSigner) PublicKeyHash() []byte {
	h := sha256.Sum256(s.pub)
	return h[:]
}

// DualSigner produces both witnesses a batch submission needs: the
// attester's (membership proof) and the fee-payer's (network fee cover).
// Either key missing is a configuration error surfaced as ErrCredentials.
type DualSigner struct {
	Attester Signer
	FeePayer Signer
}

// NewDualSigner decodes both WIFs and fails closed if either is absent.
func NewDualSigner(attesterWIF, feePayerWIF string) (*DualSigner, error) {
	if attesterWIF == "" || feePayerWIF == "" {
		return nil, oerrors.ErrCredentials
	}
	attester, err := FromWIF(attesterWIF)
	if err != nil {
		return nil, err
	}
	feePayer, err := FromWIF(feePayerWIF)
	if err != nil {
		return nil, err
	}
	return &DualSigner{Attester: attester, FeePayer: feePayer}, nil
}

// Witness is one signer's contribution to a transaction: the "called-by-
// entry" scope is the only scope this system ever requests.
type Witness struct {
	PublicKeyHash []byte
	Signature     []byte
	Scope         string
}

const calledByEntryScope = "CalledByEntry"

// SignPayload produces both witnesses for a single transaction payload
// (e.g. the serialized UpdatePriceBatch invocation).
func (d *DualSigner) SignPayload(payload []byte) ([]Witness, error) {
	attesterSig, err := d.Attester.Sign(payload)
	if err != nil {
		return nil, err
	}
	feePayerSig, err := d.FeePayer.Sign(payload)
	if err != nil {
		return nil, err
	}
	return []Witness{
		{PublicKeyHash: d.Attester.PublicKeyHash(), Signature: attesterSig, Scope: calledByEntryScope},
		{PublicKeyHash: d.FeePayer.PublicKeyHash(), Signature: feePayerSig, Scope: calledByEntryScope},
	}, nil
}

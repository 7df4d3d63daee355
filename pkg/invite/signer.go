// Copyright 2025 Hyli
//
// Invite signer: holds the secp256k1 key matched to the wallet's
// invite-code public key and signs consume receipts as secp256k1 blobs
// ready to fold into a registration transaction.

package invite

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/wallet"
)

// DevSecretKeyHex is the development signing key. Its public key is the
// wallet's compile-time default invite-code key, so a dev deployment
// works out of the box. Production must set INVITE_CODE_PKEY.
const DevSecretKeyHex = "0000000000000001000000000000000100000000000000010000000000000001"

// Signer signs invite consume receipts.
type Signer struct {
	secretKey *ecdsa.PrivateKey
	publicKey [33]byte
}

// NewSigner parses a hex-encoded secp256k1 secret key.
func NewSigner(secretKeyHex string) (*Signer, error) {
	if secretKeyHex == "" {
		secretKeyHex = DevSecretKeyHex
	}
	raw, err := hex.DecodeString(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invite secret key must be a hex string: %w", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid invite secret key: %w", err)
	}
	s := &Signer{secretKey: key}
	copy(s.publicKey[:], ethcrypto.CompressPubkey(&key.PublicKey))
	return s, nil
}

// PublicKey returns the compressed public key.
func (s *Signer) PublicKey() [33]byte {
	return s.publicKey
}

// IsDevKey reports whether the signer runs with the development key.
func (s *Signer) IsDevKey() bool {
	return s.publicKey == wallet.DefaultInviteCodePublicKey
}

// SignConsume builds the secp256k1 blob attesting that code was
// consumed by walletName. The blob identity is the wallet's future
// on-chain identity under the given contract.
func (s *Signer) SignConsume(code, walletName string, contractName model.ContractName) (*model.Blob, error) {
	identity := model.Identity(fmt.Sprintf("%s@%s", walletName, contractName))
	digest := sha256.Sum256([]byte(wallet.InviteMessage(code, walletName)))

	sig, err := ethcrypto.Sign(digest[:], s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign invite receipt: %w", err)
	}

	blob := model.Secp256k1Blob{
		Identity:  identity,
		Data:      digest,
		PublicKey: s.publicKey,
	}
	// Drop the recovery byte; the wallet verifies against the embedded
	// public key.
	copy(blob.Signature[:], sig[:64])

	wireBlob, err := blob.AsBlob()
	if err != nil {
		return nil, err
	}
	return &wireBlob, nil
}

// Copyright 2025 Hyli
//
// Auth witness verification, one function per variant.

package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/hyli/wallet-node/pkg/model"
)

var (
	ErrUninitialized      = errors.New("Wallet is not initialized")
	ErrMissingCheckSecret = errors.New("Missing check_secret blob")
	ErrMissingCheckJwt    = errors.New("Missing check_jwt blob")
)

// checkJwtNonceLen is the fixed width of the ASCII nonce inside a
// check_jwt blob: {32-byte email hash}{1 separator}{13 digits}.
const checkJwtNonceLen = 13

// Verify checks the auth witness the calldata carries against this
// method, for an action over the given account with the given nonce.
// The returned string is the program output on success.
func (m *AuthMethod) Verify(calldata *model.Calldata, account string, nonce uint64) (string, error) {
	switch m.Enum {
	case AuthKindPassword:
		return m.verifyPassword(calldata)
	case AuthKindJwt:
		return m.verifyJwt(calldata, nonce)
	case AuthKindEthereum:
		return m.verifyEthereum(calldata, account, nonce)
	case AuthKindHyliApp:
		return m.verifyHyliApp(calldata, account, nonce)
	default:
		return "", ErrUninitialized
	}
}

func (m *AuthMethod) verifyPassword(calldata *model.Calldata) (string, error) {
	blob, ok := calldata.FindBlobByContract(model.ContractCheckSecret)
	if !ok {
		return "", ErrMissingCheckSecret
	}
	checked := hex.EncodeToString(blob.Data)
	if checked != m.Password.Hash {
		return "", fmt.Errorf("Invalid authentication, expected %s, got %s", m.Password.Hash, checked)
	}
	return "Authentication successful", nil
}

func (m *AuthMethod) verifyJwt(calldata *model.Calldata, nonce uint64) (string, error) {
	blob, ok := calldata.FindBlobByContract(model.ContractCheckJwt)
	if !ok {
		return "", ErrMissingCheckJwt
	}
	// Layout: 32-byte email hash, one separator byte, 13 ASCII digits.
	// Anything beyond byte 46 is ignored.
	if len(blob.Data) < 32+1+checkJwtNonceLen {
		return "", fmt.Errorf("check_jwt blob too short: %d bytes", len(blob.Data))
	}
	if !bytes.Equal(blob.Data[:32], m.Jwt.EmailHash[:]) {
		return "", errors.New("JWT email hash does not match registered identity")
	}
	digits := string(blob.Data[33 : 33+checkJwtNonceLen])
	jwtNonce, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return "", fmt.Errorf("check_jwt nonce is not numeric: %q", digits)
	}
	if jwtNonce != nonce {
		return "", fmt.Errorf("JWT nonce does not match: %d != %d", jwtNonce, nonce)
	}
	return "JWT authentication successful", nil
}

func (m *AuthMethod) verifyEthereum(calldata *model.Calldata, account string, nonce uint64) (string, error) {
	msg := fmt.Sprintf("Sign in to Hyli as %s with nonce %d", account, nonce)
	digest := ethereumSignedMessageDigest([]byte(msg))

	blob, err := model.CheckSecp256k1(calldata, digest)
	if err != nil {
		return "", err
	}

	pub, err := ethcrypto.DecompressPubkey(blob.PublicKey[:])
	if err != nil {
		return "", fmt.Errorf("invalid secp256k1 public key: %w", err)
	}
	recovered := hex.EncodeToString(ethcrypto.PubkeyToAddress(*pub).Bytes())
	if recovered != normalizeAddress(m.Ethereum.Address) {
		return "", fmt.Errorf("Ethereum address mismatch: expected %s, got %s", m.Ethereum.Address, recovered)
	}
	return "Ethereum authentication successful", nil
}

func (m *AuthMethod) verifyHyliApp(calldata *model.Calldata, account string, nonce uint64) (string, error) {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:hyliapp", account, nonce)))

	blob, err := model.CheckSecp256k1(calldata, digest)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(blob.PublicKey[:])
	recovered := hex.EncodeToString(sum[:20])
	if recovered != normalizeAddress(m.HyliApp.Address) {
		return "", fmt.Errorf("HyliApp address mismatch: expected %s, got %s", m.HyliApp.Address, recovered)
	}
	return "HyliApp authentication successful", nil
}

// ethereumSignedMessageDigest hashes a message the personal_sign way:
// Keccak256("\x19Ethereum Signed Message:\n" + len + msg).
func ethereumSignedMessageDigest(msg []byte) [32]byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	var digest [32]byte
	copy(digest[:], ethcrypto.Keccak256([]byte(prefixed)))
	return digest
}

// HyliAppAddress derives the HyliApp address for a compressed public
// key: the first 20 bytes of its SHA-256, hex encoded.
func HyliAppAddress(publicKey [33]byte) string {
	sum := sha256.Sum256(publicKey[:])
	return hex.EncodeToString(sum[:20])
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

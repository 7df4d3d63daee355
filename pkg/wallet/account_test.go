// Copyright 2025 Hyli
//
// Account transition tests: auth variants, nonce discipline, session
// keys.

package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/hyli/wallet-node/pkg/model"
)

const testContract = model.ContractName("wallet")

// devInviteKey is the signing key behind DefaultInviteCodePublicKey.
const devInviteKey = "0000000000000001000000000000000100000000000000010000000000000001"

func devKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	raw, err := hex.DecodeString(devInviteKey)
	if err != nil {
		t.Fatalf("failed to decode dev key: %v", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		t.Fatalf("failed to parse dev key: %v", err)
	}
	return key
}

func signedBlob(t *testing.T, key *ecdsa.PrivateKey, identity model.Identity, digest [32]byte) model.Blob {
	t.Helper()
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("failed to sign digest: %v", err)
	}
	blob := model.Secp256k1Blob{Identity: identity, Data: digest}
	copy(blob.PublicKey[:], ethcrypto.CompressPubkey(&key.PublicKey))
	copy(blob.Signature[:], sig[:64])
	wire, err := blob.AsBlob()
	if err != nil {
		t.Fatalf("failed to encode secp blob: %v", err)
	}
	return wire
}

func inviteBlob(t *testing.T, code, account string) model.Blob {
	t.Helper()
	digest := sha256.Sum256([]byte(InviteMessage(code, account)))
	return signedBlob(t, devKey(t), model.Identity(account+"@wallet"), digest)
}

func secretBlob(secret []byte) model.Blob {
	return model.Blob{ContractName: model.ContractCheckSecret, Data: secret}
}

func actionBlob(t *testing.T, action *WalletAction) model.Blob {
	t.Helper()
	blob, err := action.AsBlob(testContract)
	if err != nil {
		t.Fatalf("failed to encode action: %v", err)
	}
	return blob
}

func calldataAt(account string, index model.BlobIndex, blobs ...model.Blob) *model.Calldata {
	indexed := model.IndexBlobs(blobs...)
	return &model.Calldata{
		Identity:    model.Identity(account + "@wallet"),
		Blobs:       indexed,
		TxBlobCount: uint32(len(indexed)),
		Index:       index,
	}
}

func registerAction(account string, nonce uint64, auth AuthMethod) *WalletAction {
	return &WalletAction{
		Enum: ActionRegisterIdentity,
		RegisterIdentity: RegisterIdentity{
			Account:    account,
			Nonce:      nonce,
			Salt:       "test_salt",
			AuthMethod: auth,
			InviteCode: "test_invite_code",
		},
	}
}

func verifyAction(account string, nonce uint64) *WalletAction {
	return &WalletAction{
		Enum:           ActionVerifyIdentity,
		VerifyIdentity: VerifyIdentity{Account: account, Nonce: nonce},
	}
}

func passwordAuthFixture() (AuthMethod, []byte) {
	secret := sha256.Sum256([]byte("pw"))
	return NewPasswordAuth(hex.EncodeToString(secret[:])), secret[:]
}

func TestPasswordRegisterAndVerify(t *testing.T) {
	auth, secret := passwordAuthFixture()
	record := AccountInfo{Identity: "bob"}

	register := registerAction("bob", 1, auth)
	calldata := calldataAt("bob", 0, actionBlob(t, register), secretBlob(secret), inviteBlob(t, "test_invite_code", "bob"))
	if _, err := ApplyAction(&record, register, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if record.Nonce != 1 {
		t.Errorf("nonce after registration: got %d, want 1", record.Nonce)
	}
	if record.AuthMethod.IsUninitialized() {
		t.Error("auth method should be installed")
	}

	verify := verifyAction("bob", 2)
	calldata = calldataAt("bob", 0, actionBlob(t, verify), secretBlob(secret))
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if record.Nonce != 2 {
		t.Errorf("nonce after verify: got %d, want 2", record.Nonce)
	}

	// Same nonce again, with no prior blob proving the identity.
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrInvalidNonce) {
		t.Errorf("stale nonce should fail with ErrInvalidNonce, got %v", err)
	}
	if record.Nonce != 2 {
		t.Errorf("failed verify must not move the nonce: got %d", record.Nonce)
	}
}

func TestRegister_WrongPassword(t *testing.T) {
	auth, _ := passwordAuthFixture()
	record := AccountInfo{Identity: "bob"}
	register := registerAction("bob", 1, auth)
	wrong := sha256.Sum256([]byte("not-pw"))
	calldata := calldataAt("bob", 0, actionBlob(t, register), secretBlob(wrong[:]), inviteBlob(t, "test_invite_code", "bob"))
	if _, err := ApplyAction(&record, register, calldata, DefaultInviteCodePublicKey); err == nil {
		t.Fatal("registration with a wrong secret should fail")
	}
	if !record.AuthMethod.IsUninitialized() {
		t.Error("failed registration must leave the record untouched")
	}
}

func TestRegister_BadInviteSigner(t *testing.T) {
	auth, secret := passwordAuthFixture()
	record := AccountInfo{Identity: "bob"}
	register := registerAction("bob", 1, auth)

	rogue, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	digest := sha256.Sum256([]byte(InviteMessage("test_invite_code", "bob")))
	badInvite := signedBlob(t, rogue, "bob@wallet", digest)

	calldata := calldataAt("bob", 0, actionBlob(t, register), secretBlob(secret), badInvite)
	if _, err := ApplyAction(&record, register, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrInvitePublicKey) {
		t.Errorf("invite signed by the wrong key should fail, got %v", err)
	}
}

func TestEqualNonceWithPriorBlob(t *testing.T) {
	auth, secret := passwordAuthFixture()
	record := AccountInfo{Identity: "bob", AuthMethod: auth, Nonce: 1}

	first := verifyAction("bob", 2)
	second := verifyAction("bob", 2)
	blobs := []model.Blob{actionBlob(t, first), actionBlob(t, second), secretBlob(secret)}

	if _, err := ApplyAction(&record, first, calldataAt("bob", 0, blobs...), DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if record.Nonce != 2 {
		t.Fatalf("nonce after first verify: got %d, want 2", record.Nonce)
	}

	// Equal nonce is accepted because blob #0 proved the identity.
	if _, err := ApplyAction(&record, second, calldataAt("bob", 1, blobs...), DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("equal-nonce verify with prior blob failed: %v", err)
	}
	if record.Nonce != 2 {
		t.Errorf("nonce should stay at 2, got %d", record.Nonce)
	}
}

func TestJwtAuth(t *testing.T) {
	emailHash := sha256.Sum256([]byte("bob@example.com"))
	record := AccountInfo{Identity: "bob", AuthMethod: NewJwtAuth(emailHash), Nonce: 1}

	jwtData := make([]byte, 0, 46)
	jwtData = append(jwtData, emailHash[:]...)
	jwtData = append(jwtData, '|')
	jwtData = append(jwtData, []byte(fmt.Sprintf("%013d", 2))...)
	jwtData = append(jwtData, []byte("trailing-garbage-is-ignored")...)
	jwtBlob := model.Blob{ContractName: model.ContractCheckJwt, Data: jwtData}

	verify := verifyAction("bob", 2)
	calldata := calldataAt("bob", 0, actionBlob(t, verify), jwtBlob)
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("jwt verify failed: %v", err)
	}

	// Wrong email hash.
	other := sha256.Sum256([]byte("mallory@example.com"))
	record = AccountInfo{Identity: "bob", AuthMethod: NewJwtAuth(other), Nonce: 1}
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err == nil {
		t.Fatal("jwt verify with mismatched email hash should fail")
	}
}

func TestEthereumAuth(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	record := AccountInfo{Identity: "bob", AuthMethod: NewEthereumAuth(address), Nonce: 1}

	msg := fmt.Sprintf("Sign in to Hyli as %s with nonce %d", "bob", 2)
	digest := ethereumSignedMessageDigest([]byte(msg))
	witness := signedBlob(t, key, "bob@wallet", digest)

	verify := verifyAction("bob", 2)
	calldata := calldataAt("bob", 0, actionBlob(t, verify), witness)
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("ethereum verify failed: %v", err)
	}

	// A witness from another key recovers a different address.
	rogue, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	record = AccountInfo{Identity: "bob", AuthMethod: NewEthereumAuth(address), Nonce: 1}
	calldata = calldataAt("bob", 0, actionBlob(t, verify), signedBlob(t, rogue, "bob@wallet", digest))
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err == nil {
		t.Fatal("ethereum verify with the wrong signer should fail")
	}
}

func TestHyliAppAuth(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	var compressed [33]byte
	copy(compressed[:], ethcrypto.CompressPubkey(&key.PublicKey))
	record := AccountInfo{Identity: "bob", AuthMethod: NewHyliAppAuth(HyliAppAddress(compressed)), Nonce: 1}

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:hyliapp", "bob", 2)))
	witness := signedBlob(t, key, "bob@wallet", digest)

	verify := verifyAction("bob", 2)
	calldata := calldataAt("bob", 0, actionBlob(t, verify), witness)
	if _, err := ApplyAction(&record, verify, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("hyliapp verify failed: %v", err)
	}
}

func TestSessionKeyLifecycle(t *testing.T) {
	auth, secret := passwordAuthFixture()
	record := AccountInfo{Identity: "bob", AuthMethod: auth, Nonce: 1}

	sessionKey, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	var compressed [33]byte
	copy(compressed[:], ethcrypto.CompressPubkey(&sessionKey.PublicKey))
	keyHex := hex.EncodeToString(compressed[:])

	whitelist := []model.ContractName{"oranj"}
	add := &WalletAction{
		Enum: ActionAddSessionKey,
		AddSessionKey: AddSessionKey{
			Account:        "bob",
			Key:            keyHex,
			ExpirationDate: 2_000,
			Whitelist:      &whitelist,
			Nonce:          2,
		},
	}
	calldata := calldataAt("bob", 0, actionBlob(t, add), secretBlob(secret))
	if _, err := ApplyAction(&record, add, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("add session key failed: %v", err)
	}
	if len(record.SessionKeys) != 1 {
		t.Fatalf("expected 1 session key, got %d", len(record.SessionKeys))
	}

	// Duplicate key is rejected.
	add.AddSessionKey.Nonce = 3
	calldata = calldataAt("bob", 0, actionBlob(t, add), secretBlob(secret))
	if _, err := ApplyAction(&record, add, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrSessionKeyExists) {
		t.Errorf("duplicate session key should fail, got %v", err)
	}
	if record.Nonce != 2 {
		t.Errorf("failed add must not move the nonce: got %d", record.Nonce)
	}

	use := &WalletAction{Enum: ActionUseSessionKey, UseSessionKey: UseSessionKey{Account: "bob", Nonce: 3}}
	digest := sha256.Sum256([]byte(strconv.FormatUint(3, 10)))
	witness := signedBlob(t, sessionKey, "bob@wallet", digest)
	oranjBlob := model.Blob{ContractName: "oranj", Data: []byte{1}}

	useCalldata := calldataAt("bob", 0, actionBlob(t, use), witness, oranjBlob)
	useCalldata.TxCtx = &model.TxContext{Timestamp: 1_000, LaneId: "lane-1"}
	if _, err := ApplyAction(&record, use, useCalldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("use session key failed: %v", err)
	}
	if record.Nonce != 3 {
		t.Errorf("nonce after use: got %d, want 3", record.Nonce)
	}

	remove := &WalletAction{
		Enum:             ActionRemoveSessionKey,
		RemoveSessionKey: RemoveSessionKey{Account: "bob", Key: keyHex, Nonce: 4},
	}
	calldata = calldataAt("bob", 0, actionBlob(t, remove), secretBlob(secret))
	if _, err := ApplyAction(&record, remove, calldata, DefaultInviteCodePublicKey); err != nil {
		t.Fatalf("remove session key failed: %v", err)
	}
	if len(record.SessionKeys) != 0 {
		t.Errorf("expected 0 session keys, got %d", len(record.SessionKeys))
	}

	remove.RemoveSessionKey.Nonce = 5
	calldata = calldataAt("bob", 0, actionBlob(t, remove), secretBlob(secret))
	if _, err := ApplyAction(&record, remove, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrSessionKeyNotFound) {
		t.Errorf("removing an absent key should fail, got %v", err)
	}
}

func TestUseSessionKey_Constraints(t *testing.T) {
	sessionKey, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	var compressed [33]byte
	copy(compressed[:], ethcrypto.CompressPubkey(&sessionKey.PublicKey))
	keyHex := hex.EncodeToString(compressed[:])

	whitelist := []model.ContractName{"oranj"}
	lane := model.LaneId("lane-1")
	base := func() AccountInfo {
		auth, _ := passwordAuthFixture()
		return AccountInfo{
			Identity:   "bob",
			AuthMethod: auth,
			Nonce:      1,
			SessionKeys: []SessionKey{{
				PublicKey:      keyHex,
				ExpirationDate: 2_000,
				Whitelist:      &whitelist,
				LaneId:         &lane,
			}},
		}
	}

	use := &WalletAction{Enum: ActionUseSessionKey, UseSessionKey: UseSessionKey{Account: "bob", Nonce: 2}}
	digest := sha256.Sum256([]byte(strconv.FormatUint(2, 10)))
	witness := signedBlob(t, sessionKey, "bob@wallet", digest)

	t.Run("blob outside whitelist", func(t *testing.T) {
		record := base()
		calldata := calldataAt("bob", 0, actionBlob(t, use), witness, model.Blob{ContractName: "dex", Data: []byte{1}})
		calldata.TxCtx = &model.TxContext{Timestamp: 1_000, LaneId: lane}
		if _, err := ApplyAction(&record, use, calldata, DefaultInviteCodePublicKey); err == nil {
			t.Fatal("blob outside the whitelist should fail")
		}
	})

	t.Run("partial calldata", func(t *testing.T) {
		record := base()
		calldata := calldataAt("bob", 0, actionBlob(t, use), witness)
		calldata.TxBlobCount = 3 // claims a blob the calldata does not carry
		calldata.TxCtx = &model.TxContext{Timestamp: 1_000, LaneId: lane}
		if _, err := ApplyAction(&record, use, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrPartialCalldata) {
			t.Fatalf("partial calldata should fail, got %v", err)
		}
	})

	t.Run("wrong lane", func(t *testing.T) {
		record := base()
		calldata := calldataAt("bob", 0, actionBlob(t, use), witness)
		calldata.TxCtx = &model.TxContext{Timestamp: 1_000, LaneId: "lane-2"}
		if _, err := ApplyAction(&record, use, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrSessionKeyLane) {
			t.Fatalf("wrong lane should fail, got %v", err)
		}
	})

	t.Run("expired key", func(t *testing.T) {
		record := base()
		calldata := calldataAt("bob", 0, actionBlob(t, use), witness)
		calldata.TxCtx = &model.TxContext{Timestamp: 3_000, LaneId: lane}
		if _, err := ApplyAction(&record, use, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrSessionKeyExpired) {
			t.Fatalf("expired key should fail, got %v", err)
		}
	})

	t.Run("missing tx context", func(t *testing.T) {
		record := base()
		calldata := calldataAt("bob", 0, actionBlob(t, use), witness)
		if _, err := ApplyAction(&record, use, calldata, DefaultInviteCodePublicKey); !errors.Is(err, ErrMissingTxContext) {
			t.Fatalf("missing tx_ctx should fail, got %v", err)
		}
	})
}

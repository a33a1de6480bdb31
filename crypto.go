package factguard

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadPrivateKey parses a hex encoded secp256k1 key and derives its identity.
func LoadPrivateKey(hexkey string) (*ecdsa.PrivateKey, Identity, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexkey), "0x"))
	if err != nil {
		return nil, Identity{}, fmt.Errorf("invalid private key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignBytes signs keccak256(document) and returns a secp256k1 proof.
func SignBytes(document []byte, key *ecdsa.PrivateKey) (Proof, error) {
	sig, err := crypto.Sign(crypto.Keccak256(document), key)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Type: ProofTypeSecp256k1, Signature: hexutil.Encode(sig)}, nil
}

// RecoverSigner returns the identity whose key produced proof over document.
func RecoverSigner(document []byte, proof Proof) (Identity, error) {
	if proof.Type != ProofTypeSecp256k1 {
		return Identity{}, fmt.Errorf("unsupported proof type %q", proof.Type)
	}
	sig, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid signature encoding: %v", err)
	}
	if len(sig) != crypto.SignatureLength {
		return Identity{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(document), sig)
	if err != nil {
		return Identity{}, fmt.Errorf("signature recovery failed: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignCommand wraps value in a Command issued by key's identity and signs it.
func SignCommand[T any](schema string, value T, key *ecdsa.PrivateKey, now time.Time) (SignedDocument, error) {
	cmd := Command[T]{
		Schema:   schema,
		Signer:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		IssuedAt: now.UTC(),
		Value:    value,
	}
	document, err := json.Marshal(cmd)
	if err != nil {
		return SignedDocument{}, err
	}
	proof, err := SignBytes(document, key)
	if err != nil {
		return SignedDocument{}, err
	}
	return SignedDocument{Document: string(document), Proof: proof}, nil
}

// DocumentID is the keccak256 hash of a signed document, used as its commit log key.
func DocumentID(document []byte) string {
	return hexutil.Encode(crypto.Keccak256(document))
}

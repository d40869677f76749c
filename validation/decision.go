// Package validation provides auditable decision records: every
// terminal auction outcome can be serialized and COSE_Sign1-signed by
// the auctioneer, so fleets and downstream auditors can verify that an
// announced winner really came from the auctioneer they trust.
package validation

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// DecisionRecord is the signed form of a terminal auction outcome.
type DecisionRecord struct {
	TaskID      string    `json:"task_id" cbor:"task_id"`
	Outcome     string    `json:"outcome" cbor:"outcome"`
	WinnerFleet string    `json:"winner_fleet,omitempty" cbor:"winner_fleet,omitempty"`
	WinnerRobot string    `json:"winner_robot,omitempty" cbor:"winner_robot,omitempty"`
	Auctioneer  string    `json:"auctioneer,omitempty" cbor:"auctioneer,omitempty"`
	DecidedAt   time.Time `json:"decided_at" cbor:"decided_at"`
}

// SignDecision signs a decision record with ES256, returning the
// serialized COSE_Sign1 message with the CBOR-encoded record as its
// payload.
func SignDecision(record DecisionRecord, key *ecdsa.PrivateKey) ([]byte, error) {
	payload, err := cbor.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode decision record: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create COSE signer: %w", err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
		},
	}
	signed, err := cose.Sign1(rand.Reader, signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("sign decision record: %w", err)
	}
	return signed, nil
}

// VerifyDecision checks a COSE_Sign1 decision record against the
// auctioneer's public key and returns the embedded record.
func VerifyDecision(signed []byte, publicKey *ecdsa.PublicKey) (*DecisionRecord, error) {
	var message cose.Sign1Message
	if err := message.UnmarshalCBOR(signed); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1 message: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create COSE verifier: %w", err)
	}
	if err := message.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	var record DecisionRecord
	if err := cbor.Unmarshal(message.Payload, &record); err != nil {
		return nil, fmt.Errorf("decode decision record payload: %w", err)
	}
	return &record, nil
}

// LoadSigningKey reads a PEM-encoded EC private key from a file.
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("no EC PRIVATE KEY block in %s", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse EC private key: %w", err)
	}
	return key, nil
}

// LoadVerifyingKey reads a PEM-encoded ECDSA public key from a file.
func LoadVerifyingKey(path string) (*ecdsa.PublicKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("no PUBLIC KEY block in %s", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	publicKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %s is not ECDSA", path)
	}
	return publicKey, nil
}

// PublicKeyPEM returns the PEM encoding of the key's public half, for
// distribution to fleets.
func PublicKeyPEM(key *ecdsa.PrivateKey) (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}
	return string(pem.EncodeToMemory(pemBlock)), nil
}

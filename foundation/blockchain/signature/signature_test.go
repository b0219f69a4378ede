package signature_test

import (
	"errors"
	"testing"

	"github.com/blockj/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pkHexKey = "0xfae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	data := []byte("Bill")

	pk, err := crypto.HexToECDSA(pkHexKey[2:])
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}
	pubKey := signature.PublicKeyHex(&pk.PublicKey)

	sig, err := signature.Sign(pkHexKey, data)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if !signature.Verify(pubKey, data, sig) {
		t.Fatalf("Should be able to verify the signature.")
	}

	addr, err := signature.Address(pubKey)
	if err != nil {
		t.Fatalf("Should be able to generate an address: %s", err)
	}

	if from != addr {
		t.Logf("got: %s", addr)
		t.Logf("exp: %s", from)
		t.Fatalf("Should get back the right address.")
	}

	if signature.Verify(pubKey, []byte("Jill"), sig) {
		t.Fatalf("Should not verify the signature against different data.")
	}
}

func Test_SignErrors(t *testing.T) {
	type table struct {
		name string
		key  string
	}

	tt := []table{
		{name: "empty", key: ""},
		{name: "nothex", key: "0xzz"},
		{name: "short", key: "0x0102"},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			_, err := signature.Sign(tst.key, []byte("data"))
			if !errors.Is(err, signature.ErrCrypto) {
				t.Logf("Test %s:\tgot: %v", tst.name, err)
				t.Fatalf("Test %s:\tShould get a crypto error.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_VerifyMalformed(t *testing.T) {
	pk, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}
	pubKey := signature.PublicKeyHex(&pk.PublicKey)

	sig, err := signature.Sign(signature.PrivateKeyHex(pk), []byte("data"))
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	type table struct {
		name   string
		pubKey string
		sig    string
	}

	tt := []table{
		{name: "emptysig", pubKey: pubKey, sig: ""},
		{name: "shortsig", pubKey: pubKey, sig: sig[:20]},
		{name: "badhexsig", pubKey: pubKey, sig: "0xnothex"},
		{name: "emptykey", pubKey: "", sig: sig},
		{name: "badkey", pubKey: "0x0203", sig: sig},
		{name: "recovery", pubKey: pubKey, sig: sig[:len(sig)-2] + "00"},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if signature.Verify(tst.pubKey, []byte("data"), tst.sig) {
				t.Fatalf("Test %s:\tShould not verify a malformed input.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_SignConsistency(t *testing.T) {
	pk, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}
	privKey := signature.PrivateKeyHex(pk)
	pubKey := signature.PublicKeyHex(&pk.PublicKey)

	sig1, err := signature.Sign(privKey, []byte("Bill"))
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	sig2, err := signature.Sign(privKey, []byte("Jill"))
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	if !signature.Verify(pubKey, []byte("Bill"), sig1) || !signature.Verify(pubKey, []byte("Jill"), sig2) {
		t.Fatalf("Should verify both signatures with the same public key.")
	}

	if signature.Verify(pubKey, []byte("Bill"), sig2) {
		t.Fatalf("Should not verify a signature produced for other data.")
	}
}

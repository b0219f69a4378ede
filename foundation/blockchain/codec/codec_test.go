package codec_test

import (
	"fmt"
	"testing"

	"github.com/blockj/node/foundation/blockchain/codec"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type record struct {
	From  string
	To    string
	Value string
	Nonce uint64
}

func (r record) SignableFields() []any {
	return []any{r.From, r.To, r.Value, r.Nonce}
}

// =============================================================================

func Test_CIDDeterminism(t *testing.T) {
	r := record{From: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", To: "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32", Value: "10.5", Nonce: 1}

	t.Log("Given the need to produce the same cid for the same content.")
	{
		c1, err := codec.CID(r)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to compute a cid: %v", failed, err)
		}

		c2, err := codec.CID(r)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to compute a cid: %v", failed, err)
		}

		if !c1.Equals(c2) {
			t.Logf("\t\tgot: %s", c2)
			t.Logf("\t\texp: %s", c1)
			t.Fatalf("\t%s\tShould get the same cid twice.", failed)
		}
		t.Logf("\t%s\tShould get the same cid twice.", success)

		parsed, err := codec.Parse(c1.String())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the cid string: %v", failed, err)
		}

		if !parsed.Equals(c1) {
			t.Fatalf("\t%s\tShould get back the same cid from its string.", failed)
		}
		t.Logf("\t%s\tShould get back the same cid from its string.", success)
	}
}

func Test_CIDFieldChanges(t *testing.T) {
	base := record{From: "a", To: "b", Value: "1", Nonce: 0}

	type table struct {
		name string
		rec  record
	}

	tt := []table{
		{name: "from", rec: record{From: "x", To: "b", Value: "1", Nonce: 0}},
		{name: "to", rec: record{From: "a", To: "x", Value: "1", Nonce: 0}},
		{name: "value", rec: record{From: "a", To: "b", Value: "2", Nonce: 0}},
		{name: "nonce", rec: record{From: "a", To: "b", Value: "1", Nonce: 1}},
		{name: "shifted", rec: record{From: "ab", To: "", Value: "1", Nonce: 0}},
	}

	baseCID, err := codec.CID(base)
	if err != nil {
		t.Fatalf("Should be able to compute a cid: %v", err)
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			c, err := codec.CID(tst.rec)
			if err != nil {
				t.Fatalf("Test %s:\tShould be able to compute a cid: %v", tst.name, err)
			}

			if c.Equals(baseCID) {
				t.Fatalf("Test %s:\tShould get a different cid when a field changes.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_CIDCollisions(t *testing.T) {
	const samples = 5_000

	seen := make(map[string]int, samples)
	for i := range samples {
		r := record{From: fmt.Sprintf("from-%d", i%97), To: fmt.Sprintf("to-%d", i), Value: fmt.Sprint(i * 3), Nonce: uint64(i)}

		c, err := codec.CID(r)
		if err != nil {
			t.Fatalf("Should be able to compute a cid: %v", err)
		}

		if prev, exists := seen[c.String()]; exists {
			t.Fatalf("Should not get a collision between sample %d and %d.", prev, i)
		}
		seen[c.String()] = i
	}
}

func Test_MeetsTarget(t *testing.T) {
	c, err := codec.Sum([]byte("block"))
	if err != nil {
		t.Fatalf("Should be able to compute a cid: %v", err)
	}

	digest, err := codec.Digest(c)
	if err != nil {
		t.Fatalf("Should be able to extract the digest: %v", err)
	}

	type table struct {
		name   string
		target *uint256.Int
		exp    bool
	}

	tt := []table{
		{name: "equal", target: digest.Clone(), exp: true},
		{name: "above", target: new(uint256.Int).AddUint64(digest, 1), exp: true},
		{name: "below", target: new(uint256.Int).SubUint64(digest, 1), exp: false},
		{name: "zero", target: uint256.NewInt(0), exp: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ok, err := codec.MeetsTarget(c.String(), tst.target)
			if err != nil {
				t.Fatalf("Test %s:\tShould be able to compare against the target: %v", tst.name, err)
			}

			if ok != tst.exp {
				t.Logf("Test %s:\tgot: %v", tst.name, ok)
				t.Logf("Test %s:\texp: %v", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould get the right target result.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}

	if _, err := codec.MeetsTarget("not-a-cid", uint256.NewInt(1)); err == nil {
		t.Fatalf("Should not be able to compare a malformed cid.")
	}
}

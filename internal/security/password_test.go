package security

import (
	"strings"
	"testing"
)

var allStrategies = []string{
	StrategyPlaintext, StrategyMd5, StrategySha1, StrategySha256, StrategySha512,
	StrategySaltedMd5, StrategySaltedSha1, StrategySaltedSha256, StrategySaltedSha512,
	StrategyBcrypt,
}

func TestCompareRoundTripAllStrategies(t *testing.T) {
	for _, name := range allStrategies {
		enc, err := NewEncryption(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		hashed := enc.ComputeHashed("Passw0rd1")
		if !enc.Compare("Passw0rd1", hashed) {
			t.Fatalf("%s: correct password must compare true", name)
		}
		if enc.Compare("wrong-password", hashed) {
			t.Fatalf("%s: wrong password must compare false", name)
		}
	}
}

func TestUnknownStrategyIsError(t *testing.T) {
	if _, err := NewEncryption("rot13"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestDeprecatedStrategies(t *testing.T) {
	for _, name := range []string{StrategyPlaintext, StrategyMd5, StrategySha1} {
		if !IsDeprecated(name) {
			t.Fatalf("%s should be deprecated", name)
		}
	}
	for _, name := range []string{StrategySha256, StrategySaltedSha512, StrategyBcrypt} {
		if IsDeprecated(name) {
			t.Fatalf("%s should not be deprecated", name)
		}
	}
}

func TestSaltedSerializedForm(t *testing.T) {
	enc, err := NewEncryption(StrategySaltedSha256)
	if err != nil {
		t.Fatal(err)
	}
	hashed := enc.ComputeHashed("secret")
	fields := strings.Split(hashed.Hash, "$")
	if len(fields) != 4 {
		t.Fatalf("expected 4 $-fields, got %d: %q", len(fields), hashed.Hash)
	}
	if fields[0] != "" || fields[1] != "HASH" {
		t.Fatalf("unexpected prefix fields: %q", hashed.Hash)
	}
	if len(fields[2]) != HexLength || !IsHex(fields[2]) {
		t.Fatalf("salt must be %d hex chars, got %q", HexLength, fields[2])
	}
	if !enc.HasSeparateSalt() {
		t.Fatal("salted strategy must report a separate salt")
	}
}

func TestSaltedParseRoundTrip(t *testing.T) {
	enc, err := NewEncryption(StrategySaltedSha512)
	if err != nil {
		t.Fatal(err)
	}
	hashed := enc.ComputeHashed("Passw0rd1")
	parsed, err := enc.Parse(hashed.Hash)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Salt != hashed.Salt {
		t.Fatalf("parsed salt %q != generated salt %q", parsed.Salt, hashed.Salt)
	}
	if !enc.Compare("Passw0rd1", parsed) {
		t.Fatal("compare against parsed hash must succeed")
	}
}

func TestSaltedParseRejectsMalformed(t *testing.T) {
	enc, err := NewEncryption(StrategySaltedMd5)
	if err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"", "plain", "$HASH$abc", "$HASH$a$b$c"} {
		if _, err := enc.Parse(bad); err == nil {
			t.Fatalf("expected parse error for %q", bad)
		}
	}
}

func TestSaltedCompareIgnoresCallerSalt(t *testing.T) {
	enc, err := NewEncryption(StrategySaltedSha256)
	if err != nil {
		t.Fatal(err)
	}
	hashed := enc.ComputeHashed("secret")
	// a tampered Salt field must not influence the comparison
	hashed.Salt = "ffffffffffffffff"
	if !enc.Compare("secret", hashed) {
		t.Fatal("compare must use the salt embedded in the stored value")
	}
}

func TestUnsaltedDigestEquality(t *testing.T) {
	enc, err := NewEncryption(StrategySha256)
	if err != nil {
		t.Fatal(err)
	}
	a := enc.ComputeHashed("secret")
	b := enc.ComputeHashed("secret")
	if a.Hash != b.Hash {
		t.Fatal("unsalted digests must be deterministic")
	}
	if a.Salt != "" || enc.HasSeparateSalt() {
		t.Fatal("unsalted strategy must not carry a salt")
	}
}

func TestBcryptParse(t *testing.T) {
	enc, err := NewEncryption(StrategyBcrypt)
	if err != nil {
		t.Fatal(err)
	}
	hashed := enc.ComputeHashed("Passw0rd1")
	parsed, err := enc.Parse(hashed.Hash)
	if err != nil {
		t.Fatalf("parse stored bcrypt: %v", err)
	}
	if !enc.Compare("Passw0rd1", parsed) {
		t.Fatal("bcrypt round-trip failed")
	}
	if _, err := enc.Parse("not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected parse error for junk")
	}
}

func TestRandomHex(t *testing.T) {
	s := RandomHex(HexLength)
	if len(s) != HexLength || !IsHex(s) {
		t.Fatalf("bad random hex %q", s)
	}
	if s == RandomHex(HexLength) {
		t.Fatal("two random salts should differ")
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	if len(id) != 32 || !IsHex(id) {
		t.Fatalf("bad generated id %q", id)
	}
	parsed, err := ParseID(strings.ToUpper(id))
	if err != nil || parsed != id {
		t.Fatalf("parse: %q %v", parsed, err)
	}
	for _, bad := range []string{"", "xyz", id + "00", id[:31]} {
		if _, err := ParseID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

package ore

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/regolith-labs/ore-pool-sub000/params"
	"github.com/regolith-labs/ore-pool-sub000/pow"
)

func testAuthority() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
}

// TestAddressDerivationIsStable checks PDAs are deterministic and distinct.
func TestAddressDerivationIsStable(t *testing.T) {
	auth := testAuthority()

	pool1, bump1 := PoolAddress(auth)
	pool2, bump2 := PoolAddress(auth)
	if pool1 != pool2 || bump1 != bump2 {
		t.Fatal("pool address derivation not deterministic")
	}

	member, _ := MemberAddress(auth, pool1)
	proof, _ := ProofAddress(pool1)
	if member == pool1 || proof == pool1 || member == proof {
		t.Fatal("derived addresses collide")
	}
}

// TestAttributeInstructionRoundTrip encodes and re-parses attribute data.
func TestAttributeInstructionRoundTrip(t *testing.T) {
	ix := NewAttributeInstruction(testAuthority(), testAuthority(), 9000)
	if ix.ProgramID() != params.PoolProgramID {
		t.Fatal("wrong program id")
	}
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	total, ok := ParseAttribute(data)
	if !ok || total != 9000 {
		t.Fatalf("ParseAttribute = (%d, %v), want (9000, true)", total, ok)
	}
	if _, ok := ParseClaim(data); ok {
		t.Fatal("attribute data parsed as claim")
	}
}

// TestSubmitInstructionLayout checks tag and payload sizes.
func TestSubmitInstructionLayout(t *testing.T) {
	sol := pow.NewSolution([16]byte{1, 2, 3}, 42)
	var attestation [32]byte
	attestation[31] = 0xEE

	ix := NewSubmitInstruction(testAuthority(), sol, attestation)
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if len(data) != 1+32+pow.SolutionSize {
		t.Fatalf("data len = %d", len(data))
	}
	if data[0] != InstrSubmit {
		t.Fatalf("tag = %d, want %d", data[0], InstrSubmit)
	}
	if data[1+31] != 0xEE {
		t.Fatal("attestation not embedded at expected offset")
	}
}

// TestParseMineEvent builds a log set with noise, a foreign return line and
// two pool return lines; the last pool line must win.
func TestParseMineEvent(t *testing.T) {
	stale := MineEvent{NetReward: 1}
	want := MineEvent{
		Balance:              5,
		Difficulty:           17,
		LastHashAt:           1_700_000_000,
		Timing:               2,
		NetReward:            10_000,
		NetBaseReward:        8_000,
		NetMinerBoostReward:  1_500,
		NetStakerBoostReward: 500,
	}
	staleRaw, err := stale.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	raw, err := want.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	logs := []string{
		"Program ComputeBudget111111111111111111111111111111 invoke [1]",
		"Program return: " + params.OreProgramID.String() + " " + base64.StdEncoding.EncodeToString(staleRaw),
		"Program return: " + params.PoolProgramID.String() + " " + base64.StdEncoding.EncodeToString(staleRaw),
		"Program return: " + params.PoolProgramID.String() + " " + base64.StdEncoding.EncodeToString(raw),
		"Program success",
	}

	got, err := ParseMineEvent(logs)
	if err != nil {
		t.Fatalf("ParseMineEvent: %v", err)
	}
	if got != want {
		t.Fatalf("event mismatch: %+v != %+v", got, want)
	}
}

// TestParseMineEventErrors covers the no-data and malformed-data paths.
func TestParseMineEventErrors(t *testing.T) {
	if _, err := ParseMineEvent([]string{"Program success"}); err != ErrNoReturnData {
		t.Fatalf("want ErrNoReturnData, got %v", err)
	}
	logs := []string{"Program return: " + params.PoolProgramID.String() + " ###not-base64###"}
	if _, err := ParseMineEvent(logs); err != ErrBadReturnData {
		t.Fatalf("want ErrBadReturnData, got %v", err)
	}
}

package ore

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"

	bin "github.com/gagliardetto/binary"

	"github.com/regolith-labs/ore-pool-sub000/params"
)

// returnLogPrefix marks program return data in transaction log messages.
const returnLogPrefix = "Program return: "

var (
	// ErrNoReturnData means no pool-program return line was present in the logs.
	ErrNoReturnData = errors.New("ore: no pool program return data in logs")
	// ErrBadReturnData means the return line was present but undecodable.
	ErrBadReturnData = errors.New("ore: malformed program return data")
)

// MineEvent is the fixed-layout return data of a successful submission.
type MineEvent struct {
	Balance              uint64
	Difficulty           uint64
	LastHashAt           int64
	Timing               int64
	NetReward            uint64
	NetBaseReward        uint64
	NetMinerBoostReward  uint64
	NetStakerBoostReward uint64
}

// Bytes encodes the event in its on-chain layout. Used by tooling and tests;
// the chain is the producer in production.
func (e MineEvent) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseMineEvent scans transaction log messages for the pool program's return
// data and decodes it. When several return lines are present (inner calls),
// the last one emitted by the pool program wins.
func ParseMineEvent(logs []string) (MineEvent, error) {
	var payload string
	found := false
	for _, line := range logs {
		rest, ok := strings.CutPrefix(line, returnLogPrefix)
		if !ok {
			continue
		}
		program, b64, ok := strings.Cut(rest, " ")
		if !ok || program != params.PoolProgramID.String() {
			continue
		}
		payload = b64
		found = true
	}
	if !found {
		return MineEvent{}, ErrNoReturnData
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return MineEvent{}, ErrBadReturnData
	}
	var ev MineEvent
	if err := bin.NewBinDecoder(raw).Decode(&ev); err != nil {
		return MineEvent{}, ErrBadReturnData
	}
	return ev, nil
}

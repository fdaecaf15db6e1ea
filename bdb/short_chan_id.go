package bdb

import (
	"fmt"
	"github.com/go-errors/errors"
	"strconv"
	"strings"
)

// ChanId is the compact uint64 encoding of a short channel id.
type ChanId uint64

func (c ChanId) String() string {
	return NewShortChanIdFromInt(uint64(c)).String()
}

// MarshalText renders channel ids in their BxTxO form.
func (c ChanId) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ChanId) UnmarshalText(text []byte) error {
	id, err := ParseChanId(string(text))
	if err != nil {
		return err
	}

	*c = id

	return nil
}

// ParseChanId accepts either the BxTxO (or B:T:O) notation or the plain
// numeric encoding of a channel id.
func ParseChanId(str string) (ChanId, error) {
	if n, err := strconv.ParseUint(str, 10, 64); err == nil {
		return ChanId(n), nil
	}

	shortChanId, err := NewShortChanIdFromString(str)
	if err != nil {
		return 0, err
	}

	return ChanId(shortChanId.ToUint64()), nil
}

type ShortChanId struct {
	BlockHeight uint32
	TxIndex     uint32
	TxPosition  uint16
}

func NewShortChanIdFromString(str string) (ShortChanId, error) {
	shortChanId := ShortChanId{}
	var parts []string

	parts = strings.Split(str, "x")
	if len(parts) != 3 {
		parts = strings.Split(str, ":")
	}

	if len(parts) != 3 {
		return shortChanId, errors.Errorf("Unable to parse short channel id with format 123x45x6 or 123:45:6")
	}

	blockHeight, err := strconv.ParseUint(parts[0], 10, 24)
	if err != nil {
		return shortChanId, errors.Errorf("Could not parse block height: %v", err)
	}
	shortChanId.BlockHeight = uint32(blockHeight)

	txIndex, err := strconv.ParseUint(parts[1], 10, 24)
	if err != nil {
		return shortChanId, errors.Errorf("Could not parse tx index: %v", err)
	}
	shortChanId.TxIndex = uint32(txIndex)

	txPosition, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return shortChanId, errors.Errorf("Could not parse tx position: %v", err)
	}
	shortChanId.TxPosition = uint16(txPosition)

	return shortChanId, nil
}

func NewShortChanIdFromInt(chanID uint64) ShortChanId {
	return ShortChanId{
		BlockHeight: uint32(chanID >> 40),
		TxIndex:     uint32(chanID>>16) & 0xFFFFFF,
		TxPosition:  uint16(chanID),
	}
}

func (c ShortChanId) ToUint64() uint64 {
	return (uint64(c.BlockHeight) << 40) | (uint64(c.TxIndex) << 16) | (uint64(c.TxPosition))
}

func (c ShortChanId) String() string {
	return fmt.Sprintf("%dx%dx%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}

// Valid reports whether any component of the id is set.
func (c ShortChanId) Valid() bool {
	return c.BlockHeight != 0 || c.TxIndex != 0 || c.TxPosition != 0
}

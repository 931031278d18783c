package firmware

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Constants for Intel HEX parsing.
const (
	// MaxImageSize is the highest address + 1 a CH55x image can occupy
	MaxImageSize = 0x10000

	// GapFill is written into address ranges an Intel HEX file leaves undefined
	GapFill = 0xFF

	// recordHeaderSize is LL + AAAA + TT in bytes
	recordHeaderSize = 4

	// minimumRecordBytes is header + checksum
	minimumRecordBytes = recordHeaderSize + 1
)

// Intel HEX record types.
const (
	recordData               = 0x00
	recordEOF                = 0x01
	recordExtSegmentAddress  = 0x02
	recordStartSegment       = 0x03
	recordExtLinearAddress   = 0x04
	recordStartLinearAddress = 0x05
)

// Load reads a firmware file from disk. Files named *.hex or *.ihx are
// decoded as Intel HEX, everything else is taken as a raw binary image.
//
// Example:
//
//	img, err := firmware.Load("blink.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes\n", img.Size())
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	var img *Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihx":
		img, err = ParseIntelHex(f)
	default:
		img, err = ParseBinary(f)
	}
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	img.Path = path
	return img, nil
}

// ParseBinary reads a raw firmware image from r.
func ParseBinary(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image is %d bytes, maximum is %d", len(data), MaxImageSize)
	}
	return &Image{Format: FormatBinary, Data: data}, nil
}

// ParseIntelHex decodes an Intel HEX stream into a flat image starting at
// address 0. Undefined ranges are filled with GapFill.
//
// Record format (hex-encoded after the leading ':'):
//
//	[LEN(1)][ADDR(2, big-endian)][TYPE(1)][DATA(LEN)][CHECKSUM(1)]
func ParseIntelHex(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)

	var (
		data    []byte
		base    uint32
		lineNum int
		sawEOF  bool
	)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines
		if line == "" {
			continue
		}
		if sawEOF {
			return nil, fmt.Errorf("line %d: data after end-of-file record", lineNum)
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.kind {
		case recordData:
			start := base + uint32(rec.addr)
			end := start + uint32(len(rec.data))
			if end > MaxImageSize {
				return nil, fmt.Errorf("line %d: address 0x%X beyond 0x%X", lineNum, end-1, MaxImageSize-1)
			}
			for uint32(len(data)) < end {
				data = append(data, GapFill)
			}
			copy(data[start:end], rec.data)
		case recordEOF:
			sawEOF = true
		case recordExtSegmentAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended segment address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 4
		case recordExtLinearAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended linear address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 16
		case recordStartSegment, recordStartLinearAddress:
			// Entry points are irrelevant, the MCU always starts at 0.
		default:
			return nil, fmt.Errorf("line %d: unknown record type 0x%02X", lineNum, rec.kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if !sawEOF {
		return nil, fmt.Errorf("missing end-of-file record")
	}

	return &Image{Format: FormatIntelHex, Data: data}, nil
}

type record struct {
	kind byte
	addr uint16
	data []byte
}

// parseRecord decodes a single ':'-prefixed record and validates its checksum.
func parseRecord(line string) (*record, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("record must start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	if len(raw) < minimumRecordBytes {
		return nil, fmt.Errorf("record too short: got %d bytes, minimum is %d", len(raw), minimumRecordBytes)
	}

	dataLen := int(raw[0])
	expectedLen := recordHeaderSize + dataLen + 1
	if len(raw) != expectedLen {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d", len(raw), expectedLen)
	}

	checksum := raw[len(raw)-1]
	if calculated := calculateRecordChecksum(raw[:len(raw)-1]); calculated != checksum {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	rec := &record{
		kind: raw[3],
		addr: uint16(raw[1])<<8 | uint16(raw[2]),
		data: make([]byte, dataLen),
	}
	copy(rec.data, raw[recordHeaderSize:recordHeaderSize+dataLen])

	return rec, nil
}

// calculateRecordChecksum is the 2's complement of the byte sum.
func calculateRecordChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

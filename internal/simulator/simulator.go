// Package simulator implements an in-memory CH55x ISP bootloader.
//
// A Device answers the same bulk transfers as a real chip: every Write is
// one command, every Read returns the reply to the last command. Written
// packets are decoded into a flash array so tests can check what the chip
// would hold.
package simulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/moffa90/go-ch55x/protocol"
)

// ErrNoReply is returned by Read when the last command has no reply,
// the way a real transfer times out.
var ErrNoReply = errors.New("simulator: no reply pending")

// Device is a simulated bootloader. The zero value is not usable; use New.
type Device struct {
	mu sync.Mutex

	chipID    byte
	version   [3]byte
	keyBytes  [4]byte
	flashSize int
	flash     []byte

	// Status bytes returned for each acknowledged command. Zero is success.
	KeyStatus   byte
	EraseStatus byte
	WriteStatus byte
	EndStatus   byte

	// TruncateReply shortens the reply to the given opcode by one byte.
	TruncateReply byte

	keyAccepted  bool
	erased       bool
	reset        bool
	verifyErrors int
	commands     [][]byte
	pending      []byte
}

// Option configures a Device.
type Option func(*Device)

// WithVersion sets the bootloader version bytes (major, minor, patch).
func WithVersion(major, minor, patch byte) Option {
	return func(d *Device) {
		d.version = [3]byte{major, minor, patch}
	}
}

// WithKeyBytes sets the four configuration bytes the checksum key is
// derived from.
func WithKeyBytes(b [4]byte) Option {
	return func(d *Device) {
		d.keyBytes = b
	}
}

// WithFlashSize sets the simulated flash size. Default is 64 KiB.
func WithFlashSize(n int) Option {
	return func(d *Device) {
		d.flashSize = n
	}
}

// New creates a simulated bootloader for chipID running version V2.40.
func New(chipID byte, opts ...Option) *Device {
	d := &Device{
		chipID:    chipID,
		version:   [3]byte{2, 4, 0},
		keyBytes:  [4]byte{0x11, 0x22, 0x33, 0x44},
		flashSize: 0x10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.flash = make([]byte, d.flashSize)
	return d
}

// Write handles one command.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(p) == 0 {
		return 0, errors.New("simulator: empty command")
	}

	d.commands = append(d.commands, append([]byte(nil), p...))

	var reply []byte
	switch p[0] {
	case protocol.CmdDetect:
		reply = d.handleDetect(p)
	case protocol.CmdReadConfig:
		reply = d.handleReadConfig()
	case protocol.CmdSendKey:
		reply = d.handleKey(p)
	case protocol.CmdErase:
		reply = d.handleErase()
	case protocol.CmdWrite:
		reply = d.handleData(p, false)
	case protocol.CmdVerify:
		reply = d.handleData(p, true)
	case protocol.CmdEnd:
		reply = d.handleEnd(p)
	default:
		return 0, fmt.Errorf("simulator: unknown command 0x%02X", p[0])
	}

	if reply != nil && d.TruncateReply == p[0] {
		reply = reply[:len(reply)-1]
	}
	d.pending = reply

	return len(p), nil
}

// Read returns the reply to the last command.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return 0, ErrNoReply
	}
	n := copy(p, d.pending)
	d.pending = nil
	return n, nil
}

func (d *Device) handleDetect(p []byte) []byte {
	reply := make([]byte, protocol.DetectReplyLen)
	reply[0] = protocol.CmdDetect
	reply[2] = 0x02
	if len(p) != 21 || string(p[5:]) != "MCU ISP & WCH.CN" {
		reply[4] = 0xFF
		return reply
	}
	reply[4] = d.chipID
	reply[5] = 0x11
	return reply
}

func (d *Device) handleReadConfig() []byte {
	reply := make([]byte, protocol.ConfigReplyLen)
	reply[0] = protocol.CmdReadConfig
	copy(reply[protocol.ConfigVersionOffset:], d.version[:])
	copy(reply[protocol.ConfigKeyOffset:], d.keyBytes[:])
	return reply
}

func (d *Device) handleKey(p []byte) []byte {
	reply := make([]byte, protocol.StatusReplyLen)
	reply[0] = protocol.CmdSendKey

	ok := false
	switch d.variant() {
	case protocol.VariantOld:
		ok = len(p) == protocol.KeyCmdSizeOld
		for _, b := range p[min(3, len(p)):] {
			ok = ok && b == d.key()
		}
	case protocol.VariantNew:
		ok = len(p) == protocol.KeyCmdSizeNew
	}

	switch {
	case !ok:
		reply[protocol.AckStatusOffset] = 0xFE
	case d.KeyStatus != protocol.StatusSuccess:
		reply[protocol.AckStatusOffset] = d.KeyStatus
	default:
		d.keyAccepted = true
	}
	return reply
}

func (d *Device) handleErase() []byte {
	reply := make([]byte, protocol.StatusReplyLen)
	reply[0] = protocol.CmdErase
	if d.EraseStatus != protocol.StatusSuccess {
		reply[protocol.AckStatusOffset] = d.EraseStatus
		return reply
	}
	for i := range d.flash {
		d.flash[i] = 0xFF
	}
	d.erased = true
	return reply
}

func (d *Device) handleData(p []byte, verify bool) []byte {
	reply := make([]byte, protocol.StatusReplyLen)
	reply[0] = p[0]

	if len(p) != protocol.DataCmdSize || !d.keyAccepted {
		reply[protocol.DataStatusOffset] = 0xFE
		return reply
	}

	addr := int(binary.LittleEndian.Uint16(p[3:5]))
	var enc [protocol.ChunkSize]byte
	copy(enc[:], p[protocol.DataHeaderSize:])
	chunk := protocol.Decode(enc, d.key(), d.chipID, d.variant())

	end := min(addr+protocol.ChunkSize, len(d.flash))
	if addr >= len(d.flash) {
		reply[protocol.DataStatusOffset] = 0xFE
		return reply
	}

	if verify {
		for i := addr; i < end; i++ {
			if d.flash[i] != chunk[i-addr] {
				d.verifyErrors++
				reply[protocol.DataStatusOffset] = 0xFE
				return reply
			}
		}
		return reply
	}

	copy(d.flash[addr:end], chunk[:])
	reply[protocol.DataStatusOffset] = d.WriteStatus
	return reply
}

func (d *Device) handleEnd(p []byte) []byte {
	if len(p) >= 4 && p[3] == 0x01 {
		d.reset = true
		return nil
	}
	reply := make([]byte, protocol.StatusReplyLen)
	reply[0] = protocol.CmdEnd
	reply[protocol.DataStatusOffset] = d.EndStatus
	return reply
}

func (d *Device) key() byte {
	return protocol.ChecksumKey(d.keyBytes[:])
}

func (d *Device) variant() protocol.Variant {
	v, err := protocol.VariantForVersion(d.Version())
	if err != nil {
		return protocol.Variant(-1)
	}
	return v
}

// Version returns the version string the device reports.
func (d *Device) Version() string {
	return fmt.Sprintf("V%d.%d%d", d.version[0], d.version[1], d.version[2])
}

// Key returns the checksum key the host is expected to derive.
func (d *Device) Key() byte {
	return d.key()
}

// Flash returns a copy of the first n bytes of flash.
func (d *Device) Flash(n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.flash[:min(n, len(d.flash))]...)
}

// Erased reports whether an erase command was accepted.
func (d *Device) Erased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.erased
}

// WasReset reports whether a reset command was received.
func (d *Device) WasReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset
}

// VerifyErrors returns the number of verify packets that did not match flash.
func (d *Device) VerifyErrors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.verifyErrors
}

// Commands returns copies of every command received, in order.
func (d *Device) Commands() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.commands))
	copy(out, d.commands)
	return out
}

// CommandsWithOpcode returns the received commands starting with op.
func (d *Device) CommandsWithOpcode(op byte) [][]byte {
	var out [][]byte
	for _, c := range d.Commands() {
		if c[0] == op {
			out = append(out, c)
		}
	}
	return out
}

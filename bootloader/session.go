package bootloader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-ch55x/chip"
	"github.com/moffa90/go-ch55x/protocol"
)

// maxAddress is one past the highest address a data packet can reach.
const maxAddress = 0x10000

// DeviceInfo describes an identified bootloader.
type DeviceInfo struct {
	Chip    chip.Descriptor
	Version string
	Variant protocol.Variant
}

// Session drives one CH55x bootloader through the flashing sequence:
// detect, negotiate version and key, erase, write, verify, end and reset.
//
// Every operation checks the session state before touching the device and
// returns a StateError when called out of order. A Session is used for a
// single flashing run and is not safe for concurrent use.
type Session struct {
	device io.ReadWriter
	config Config

	state   State
	chip    *chip.Descriptor
	version string
	key     byte
	variant protocol.Variant
	address int
}

// New creates a new Session with the given device and options.
// The device must implement io.ReadWriter where each Write is one bulk OUT
// transfer and each Read one bulk IN transfer (see package usb).
//
// Example:
//
//	ch, err := usb.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//	s := bootloader.New(ch, bootloader.WithLogger(myLogger))
func New(device io.ReadWriter, opts ...Option) *Session {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		device: device,
		config: cfg,
		state:  StateDisconnected,
	}
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

// Chip returns the detected chip, if any.
func (s *Session) Chip() (chip.Descriptor, bool) {
	if s.chip == nil {
		return chip.Descriptor{}, false
	}
	return *s.chip, true
}

// Version returns the bootloader version string once negotiated.
func (s *Session) Version() string { return s.version }

// Variant returns the negotiated protocol variant. Only meaningful from
// StateVersionKnown on.
func (s *Session) Variant() protocol.Variant { return s.variant }

// ChecksumKey returns the negotiated session key. Only meaningful from
// StateVersionKnown on.
func (s *Session) ChecksumKey() byte { return s.key }

// Address returns the address following the last packet of the current or
// most recent write/verify pass.
func (s *Session) Address() int { return s.address }

// Detect identifies the chip attached to the bootloader.
// Returns a ChipNotFoundError when the chip ID is not in the catalog.
func (s *Session) Detect(ctx context.Context) (chip.Descriptor, error) {
	if err := s.require("detect", StateDisconnected); err != nil {
		return chip.Descriptor{}, err
	}

	reply, err := s.exchange(ctx, "detect", protocol.DetectCmd(), protocol.DetectReplyLen)
	if err != nil {
		return chip.Descriptor{}, err
	}

	id, err := protocol.ParseDetectResponse(reply)
	if err != nil {
		return chip.Descriptor{}, err
	}

	d, ok := chip.Lookup(id)
	if !ok {
		s.logError("unknown chip", "chip_id", fmt.Sprintf("0x%02X", id))
		return chip.Descriptor{}, &ChipNotFoundError{ID: id}
	}

	s.chip = &d
	s.state = StateDetected
	s.logDebug("chip detected", "chip", d.Name, "flash_size", d.FlashSize)

	return d, nil
}

// NegotiateVersion reads the bootloader configuration, derives the checksum
// key, selects the protocol variant and performs the key exchange.
// Returns the bootloader version string, e.g. "V2.40".
func (s *Session) NegotiateVersion(ctx context.Context) (string, error) {
	if err := s.require("negotiate version", StateDetected); err != nil {
		return "", err
	}

	reply, err := s.exchange(ctx, "read config", protocol.ReadConfigCmd(), protocol.ConfigReplyLen)
	if err != nil {
		return "", err
	}

	info, err := protocol.ParseConfigResponse(reply)
	if err != nil {
		return "", err
	}

	variant, err := protocol.VariantForVersion(info.Version)
	if err != nil {
		s.logError("unsupported bootloader", "version", info.Version)
		return "", err
	}

	s.key = info.ChecksumKey
	s.variant = variant
	s.version = info.Version
	s.state = StateVersionKnown
	s.logDebug("bootloader version",
		"version", info.Version,
		"variant", variant.String(),
		"checksum_key", fmt.Sprintf("0x%02X", info.ChecksumKey),
	)

	cmd, err := protocol.BuildKeyCmd(variant, info.ChecksumKey)
	if err != nil {
		return "", err
	}

	reply, err = s.exchange(ctx, "send key", cmd, protocol.StatusReplyLen)
	if err != nil {
		return "", err
	}
	if err := protocol.CheckStatus("send key", reply, protocol.AckStatusOffset); err != nil {
		return "", err
	}

	s.state = StateKeyExchanged
	return info.Version, nil
}

// Identify runs Detect followed by NegotiateVersion.
func (s *Session) Identify(ctx context.Context) (*DeviceInfo, error) {
	d, err := s.Detect(ctx)
	if err != nil {
		return nil, err
	}

	version, err := s.NegotiateVersion(ctx)
	if err != nil {
		return nil, err
	}

	return &DeviceInfo{Chip: d, Version: version, Variant: s.variant}, nil
}

// Erase erases the code flash.
func (s *Session) Erase(ctx context.Context) error {
	if err := s.require("erase", StateKeyExchanged); err != nil {
		return err
	}

	reply, err := s.exchange(ctx, "erase", protocol.EraseCmd(), protocol.StatusReplyLen)
	if err != nil {
		return err
	}
	if err := protocol.CheckStatus("erase", reply, protocol.AckStatusOffset); err != nil {
		return err
	}

	s.state = StateErased
	return nil
}

// Write programs the image read from r starting at address 0.
// The final packet is zero-padded to 56 bytes.
func (s *Session) Write(ctx context.Context, r io.Reader) error {
	return s.write(ctx, r, readerLen(r), newRun(s.config.ProgressCallback))
}

// Verify asks the bootloader to compare the image read from r with flash.
// It requires a prior Write.
//
// Packets the bootloader does not acknowledge are logged as warnings and do
// not fail the pass.
func (s *Session) Verify(ctx context.Context, r io.Reader) error {
	return s.verify(ctx, r, readerLen(r), newRun(s.config.ProgressCallback))
}

func (s *Session) write(ctx context.Context, r io.Reader, total int, rn *run) error {
	if err := s.require("write", StateErased, StateWritten); err != nil {
		return err
	}
	if err := s.transfer(ctx, r, false, total, rn); err != nil {
		return err
	}
	s.state = StateWritten
	return nil
}

func (s *Session) verify(ctx context.Context, r io.Reader, total int, rn *run) error {
	if err := s.require("verify", StateWritten, StateVerified); err != nil {
		return err
	}
	if err := s.transfer(ctx, r, true, total, rn); err != nil {
		return err
	}
	s.state = StateVerified
	return nil
}

// transfer streams r to the bootloader in 56-byte packets. The loop ends
// when a read returns no data.
func (s *Session) transfer(ctx context.Context, r io.Reader, verify bool, total int, rn *run) error {
	op, phase, build := "write", PhaseWriting, protocol.BuildWriteCmd
	if verify {
		op, phase, build = "verify", PhaseVerifying, protocol.BuildVerifyCmd
	}
	if s.chip == nil {
		// Guaranteed by the state machine.
		panic(op + ": no chip detected")
	}

	s.address = 0
	packets, covered := 0, 0

	for {
		var chunk [protocol.ChunkSize]byte
		n, err := io.ReadFull(r, chunk[:])
		if n == 0 {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%s: reading image: %w", op, err)
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("%s: reading image: %w", op, err)
		}

		if s.address+protocol.ChunkSize > maxAddress {
			return fmt.Errorf("%s: image exceeds 16-bit address space at 0x%X", op, s.address)
		}

		payload := protocol.Encode(chunk, s.key, s.chip.ID, s.variant)
		cmd := build(uint16(s.address), payload)

		reply, err := s.exchange(ctx, op, cmd, protocol.StatusReplyLen)
		if err != nil {
			return err
		}
		if status := reply[protocol.DataStatusOffset]; status != protocol.StatusSuccess {
			s.logWarn("packet not acknowledged",
				"op", op,
				"address", fmt.Sprintf("0x%04X", s.address),
				"status", fmt.Sprintf("0x%02X", status),
			)
		}

		s.address += protocol.ChunkSize
		packets++
		covered += n
		rn.report(phase, packets, covered, total)
	}

	if packets == 0 {
		rn.report(phase, 0, 0, total)
	}
	s.logDebug(op+" pass complete", "packets", packets, "bytes", covered)

	return nil
}

// End finishes programming. The bootloader acknowledges with status 0.
func (s *Session) End(ctx context.Context) error {
	if err := s.require("end", StateKeyExchanged, StateErased, StateWritten, StateVerified); err != nil {
		return err
	}

	reply, err := s.exchange(ctx, "end", protocol.EndCmd(), protocol.StatusReplyLen)
	if err != nil {
		return err
	}
	if err := protocol.CheckStatus("end", reply, protocol.DataStatusOffset); err != nil {
		return err
	}

	s.state = StateEnded
	return nil
}

// Restart resets the MCU into the application. The bootloader does not
// answer, so transfer errors are only logged.
func (s *Session) Restart(ctx context.Context) error {
	if s.state == StateDisconnected {
		return &StateError{Operation: "restart", State: s.state}
	}

	if err := s.send("reset", protocol.ResetCmd()); err != nil {
		s.logDebug("reset not delivered", "error", err.Error())
	}
	return nil
}

// exchange writes cmd and reads exactly replyLen bytes. Any transfer error
// or byte count mismatch is a TransportError. Failures are logged at debug
// level only; the caller reports the returned error.
func (s *Session) exchange(ctx context.Context, op string, cmd []byte, replyLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.send(op, cmd); err != nil {
		return nil, err
	}

	reply := make([]byte, replyLen)
	n, err := s.device.Read(reply)
	if err != nil || n != replyLen {
		s.logDebug("transfer failed", "op", op, "direction", "read", "want", replyLen, "got", n)
		return nil, &TransportError{Operation: op, Direction: "read", Want: replyLen, Got: n, Err: err}
	}

	return reply, nil
}

// send writes cmd without reading a reply.
func (s *Session) send(op string, cmd []byte) error {
	n, err := s.device.Write(cmd)
	if err != nil || n != len(cmd) {
		s.logDebug("transfer failed", "op", op, "direction", "write", "want", len(cmd), "got", n)
		return &TransportError{Operation: op, Direction: "write", Want: len(cmd), Got: n, Err: err}
	}
	return nil
}

// readerLen returns the unread length of r when r reports it, else 0.
func readerLen(r io.Reader) int {
	if l, ok := r.(interface{ Len() int }); ok {
		return l.Len()
	}
	return 0
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is configured.
func (s *Session) logWarn(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}

// run tracks progress reporting across the phases of one flashing run.
type run struct {
	callback ProgressCallback
	start    time.Time
}

func newRun(cb ProgressCallback) *run {
	return &run{callback: cb, start: time.Now()}
}

// phaseSpan maps each phase onto its share of the overall percentage.
var phaseSpan = map[string][2]float64{
	PhaseIdentifying: {0, 2},
	PhaseErasing:     {2, 5},
	PhaseWriting:     {5, 50},
	PhaseVerifying:   {50, 95},
	PhaseEnding:      {95, 98},
	PhaseRestarting:  {98, 100},
	PhaseComplete:    {100, 100},
}

func (rn *run) report(phase string, packets, covered, total int) {
	if rn == nil || rn.callback == nil {
		return
	}

	span := phaseSpan[phase]
	pct := span[0]
	switch {
	case total > 0:
		pct += (span[1] - span[0]) * float64(min(covered, total)) / float64(total)
	case packets > 0 || phase == PhaseWriting || phase == PhaseVerifying:
		pct = span[1]
	}

	rn.callback(Progress{
		Phase:       phase,
		Packet:      packets,
		Bytes:       covered,
		TotalBytes:  total,
		Percentage:  pct,
		ElapsedTime: time.Since(rn.start),
	})
}

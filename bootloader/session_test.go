package bootloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/moffa90/go-ch55x/internal/simulator"
	"github.com/moffa90/go-ch55x/protocol"
)

// mockDevice replays scripted replies and records every command written.
type mockDevice struct {
	writes    [][]byte
	responses [][]byte
	respIdx   int
	readErr   error
	writeErr  error
}

func (m *mockDevice) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.respIdx >= len(m.responses) {
		return 0, io.EOF
	}
	resp := m.responses[m.respIdx]
	m.respIdx++
	return copy(p, resp), nil
}

func (m *mockDevice) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (m *mockDevice) AddResponse(resp ...byte) {
	m.responses = append(m.responses, resp)
}

// MockLogger records messages per level.
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Warn(msg string, kv ...interface{}) {
	l.warnMsgs = append(l.warnMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

// erasedSession returns a session over a simulator that is ready to write.
func erasedSession(t *testing.T, dev *simulator.Device, opts ...Option) *Session {
	t.Helper()
	s := New(dev, opts...)
	ctx := context.Background()
	if _, err := s.Identify(ctx); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if err := s.Erase(ctx); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	return s
}

func testImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i*7 + 1)
	}
	return img
}

func TestNew(t *testing.T) {
	device := &mockDevice{}

	s := New(device, WithLogger(&MockLogger{}), WithRestart(false))
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.device != device {
		t.Error("device not set correctly")
	}
	if s.config.Restart {
		t.Error("WithRestart(false) not applied")
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", s.State())
	}
}

func TestNewNilDevice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil)
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name        string
		version     [3]byte
		wantVersion string
		wantVariant protocol.Variant
		wantKeyLen  int
	}{
		{"V2.30", [3]byte{2, 3, 0}, "V2.30", protocol.VariantOld, protocol.KeyCmdSizeOld},
		{"V2.31", [3]byte{2, 3, 1}, "V2.31", protocol.VariantNew, protocol.KeyCmdSizeNew},
		{"V2.40", [3]byte{2, 4, 0}, "V2.40", protocol.VariantNew, protocol.KeyCmdSizeNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := simulator.New(0x52,
				simulator.WithVersion(tt.version[0], tt.version[1], tt.version[2]),
				simulator.WithKeyBytes([4]byte{0x10, 0x20, 0x30, 0x40}),
			)
			s := New(dev)

			info, err := s.Identify(context.Background())
			if err != nil {
				t.Fatalf("Identify() error = %v", err)
			}

			if info.Chip.Name != "CH552" || info.Chip.FlashSize != 16384 {
				t.Errorf("Chip = %v, want CH552 with 16384 bytes", info.Chip)
			}
			if info.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", info.Version, tt.wantVersion)
			}
			if info.Variant != tt.wantVariant {
				t.Errorf("Variant = %v, want %v", info.Variant, tt.wantVariant)
			}
			if s.ChecksumKey() != 0xA0 {
				t.Errorf("ChecksumKey() = 0x%02X, want 0xA0", s.ChecksumKey())
			}
			if s.State() != StateKeyExchanged {
				t.Errorf("State() = %s, want key-exchanged", s.State())
			}

			keys := dev.CommandsWithOpcode(protocol.CmdSendKey)
			if len(keys) != 1 {
				t.Fatalf("key commands = %d, want 1", len(keys))
			}
			if len(keys[0]) != tt.wantKeyLen {
				t.Errorf("key command length = %d, want %d", len(keys[0]), tt.wantKeyLen)
			}
		})
	}
}

func TestDetectUnknownChip(t *testing.T) {
	device := &mockDevice{}
	device.AddResponse(0xA1, 0x00, 0x02, 0x00, 0x99, 0x11)
	logger := &MockLogger{}
	s := New(device, WithLogger(logger))

	_, err := s.Detect(context.Background())

	var cnf *ChipNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("Detect() error = %v, want *ChipNotFoundError", err)
	}
	if cnf.ID != 0x99 {
		t.Errorf("ID = 0x%02X, want 0x99", cnf.ID)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", s.State())
	}
	if _, ok := s.Chip(); ok {
		t.Error("Chip() reported a chip after failed detect")
	}
	if len(logger.errorMsgs) == 0 {
		t.Error("expected an error log entry")
	}
}

func TestNegotiateUnsupportedVersion(t *testing.T) {
	dev := simulator.New(0x52, simulator.WithVersion(2, 5, 0))
	s := New(dev)

	if _, err := s.Detect(context.Background()); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	_, err := s.NegotiateVersion(context.Background())

	var uve *protocol.UnsupportedVersionError
	if !errors.As(err, &uve) {
		t.Fatalf("NegotiateVersion() error = %v, want *UnsupportedVersionError", err)
	}
	if uve.Version != "V2.50" {
		t.Errorf("Version = %q, want V2.50", uve.Version)
	}
	if len(dev.CommandsWithOpcode(protocol.CmdSendKey)) != 0 {
		t.Error("key was sent to an unsupported bootloader")
	}
	if s.State() != StateDetected {
		t.Errorf("State() = %s, want detected", s.State())
	}
}

func TestStateErrors(t *testing.T) {
	ctx := context.Background()
	empty := func() io.Reader { return bytes.NewReader(nil) }

	tests := []struct {
		name string
		call func(s *Session) error
	}{
		{"negotiate before detect", func(s *Session) error { _, err := s.NegotiateVersion(ctx); return err }},
		{"erase before key", func(s *Session) error { return s.Erase(ctx) }},
		{"write before erase", func(s *Session) error { return s.Write(ctx, empty()) }},
		{"verify before erase", func(s *Session) error { return s.Verify(ctx, empty()) }},
		{"end before key", func(s *Session) error { return s.End(ctx) }},
		{"restart while disconnected", func(s *Session) error { return s.Restart(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &mockDevice{}
			s := New(device)

			err := tt.call(s)

			var se *StateError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StateError", err)
			}
			if se.State != StateDisconnected {
				t.Errorf("StateError.State = %s, want disconnected", se.State)
			}
			if len(device.writes) != 0 {
				t.Errorf("%d commands sent, want none", len(device.writes))
			}
		})
	}
}

func TestDetectTwice(t *testing.T) {
	dev := simulator.New(0x51)
	s := New(dev)

	if _, err := s.Detect(context.Background()); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	_, err := s.Detect(context.Background())

	var se *StateError
	if !errors.As(err, &se) || se.State != StateDetected {
		t.Errorf("second Detect() error = %v, want StateError in detected", err)
	}
}

func TestWritePacketing(t *testing.T) {
	dev := simulator.New(0x52)
	s := erasedSession(t, dev)
	img := testImage(100)

	if err := s.Write(context.Background(), bytes.NewReader(img)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	writes := dev.CommandsWithOpcode(protocol.CmdWrite)
	if len(writes) != 2 {
		t.Fatalf("write packets = %d, want 2", len(writes))
	}
	for i, cmd := range writes {
		addr := int(cmd[3]) | int(cmd[4])<<8
		if addr != i*protocol.ChunkSize {
			t.Errorf("packet %d address = %d, want %d", i, addr, i*protocol.ChunkSize)
		}
		if len(cmd) != protocol.DataCmdSize || cmd[1] != 61 || cmd[7] != 56 {
			t.Errorf("packet %d header = % X", i, cmd[:protocol.DataHeaderSize])
		}
	}

	var last [protocol.ChunkSize]byte
	copy(last[:], writes[1][protocol.DataHeaderSize:])
	plain := protocol.Decode(last, s.ChecksumKey(), 0x52, s.Variant())
	for i := 44; i < protocol.ChunkSize; i++ {
		if plain[i] != 0 {
			t.Errorf("padding byte %d = 0x%02X, want 0x00", i, plain[i])
		}
	}

	if !bytes.Equal(dev.Flash(100), img) {
		t.Error("flash does not match image")
	}
	if s.Address() != 2*protocol.ChunkSize {
		t.Errorf("Address() = %d, want %d", s.Address(), 2*protocol.ChunkSize)
	}
	if s.State() != StateWritten {
		t.Errorf("State() = %s, want written", s.State())
	}
}

func TestWriteEmptyImage(t *testing.T) {
	dev := simulator.New(0x52)
	s := erasedSession(t, dev)

	if err := s.Write(context.Background(), bytes.NewReader(nil)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if n := len(dev.CommandsWithOpcode(protocol.CmdWrite)); n != 0 {
		t.Errorf("write packets = %d, want 0", n)
	}
	if s.State() != StateWritten {
		t.Errorf("State() = %s, want written", s.State())
	}
}

func TestWriteAddressAdvance(t *testing.T) {
	for _, n := range []int{1, 56, 57, 560, 1000} {
		dev := simulator.New(0x59)
		s := erasedSession(t, dev)

		if err := s.Write(context.Background(), bytes.NewReader(testImage(n))); err != nil {
			t.Fatalf("Write(%d bytes) error = %v", n, err)
		}

		packets := len(dev.CommandsWithOpcode(protocol.CmdWrite))
		wantPackets := (n + protocol.ChunkSize - 1) / protocol.ChunkSize
		if packets != wantPackets {
			t.Errorf("%d bytes: packets = %d, want %d", n, packets, wantPackets)
		}
		if s.Address() != wantPackets*protocol.ChunkSize {
			t.Errorf("%d bytes: Address() = %d, want %d", n, s.Address(), wantPackets*protocol.ChunkSize)
		}
	}
}

func TestWriteAddressOverflow(t *testing.T) {
	dev := simulator.New(0x59)
	s := erasedSession(t, dev)

	err := s.Write(context.Background(), bytes.NewReader(make([]byte, 0x10000)))
	if err == nil || !strings.Contains(err.Error(), "address space") {
		t.Fatalf("Write() error = %v, want address space error", err)
	}
}

func TestWriteWarningsNotFatal(t *testing.T) {
	dev := simulator.New(0x52)
	dev.WriteStatus = 0x01
	logger := &MockLogger{}
	s := erasedSession(t, dev, WithLogger(logger))

	if err := s.Write(context.Background(), bytes.NewReader(testImage(100))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(logger.warnMsgs) != 2 {
		t.Errorf("warnings = %d, want 2", len(logger.warnMsgs))
	}
}

func TestVerifyMismatchNotFatal(t *testing.T) {
	dev := simulator.New(0x52)
	logger := &MockLogger{}
	s := erasedSession(t, dev, WithLogger(logger))
	ctx := context.Background()

	if err := s.Write(ctx, bytes.NewReader(testImage(112))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Verify(ctx, bytes.NewReader(make([]byte, 112))); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if dev.VerifyErrors() != 2 {
		t.Errorf("VerifyErrors() = %d, want 2", dev.VerifyErrors())
	}
	if len(logger.warnMsgs) != 2 {
		t.Errorf("warnings = %d, want 2", len(logger.warnMsgs))
	}
	if s.State() != StateVerified {
		t.Errorf("State() = %s, want verified", s.State())
	}
}

func TestShortReadIsTransportError(t *testing.T) {
	dev := simulator.New(0x52)
	dev.TruncateReply = protocol.CmdErase
	s := New(dev)

	if _, err := s.Identify(context.Background()); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	err := s.Erase(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Erase() error = %v, want *TransportError", err)
	}
	if te.Direction != "read" || te.Want != 6 || te.Got != 5 {
		t.Errorf("TransportError = %+v", te)
	}
	if s.State() != StateKeyExchanged {
		t.Errorf("State() = %s, want key-exchanged", s.State())
	}
}

func TestTransferErrors(t *testing.T) {
	cause := errors.New("pipe error")

	t.Run("read", func(t *testing.T) {
		device := &mockDevice{readErr: cause}
		_, err := New(device).Detect(context.Background())

		var te *TransportError
		if !errors.As(err, &te) || te.Direction != "read" {
			t.Fatalf("Detect() error = %v, want read TransportError", err)
		}
		if !errors.Is(err, cause) {
			t.Error("TransportError should wrap the device error")
		}
	})

	t.Run("write", func(t *testing.T) {
		device := &mockDevice{writeErr: cause}
		_, err := New(device).Detect(context.Background())

		var te *TransportError
		if !errors.As(err, &te) || te.Direction != "write" {
			t.Fatalf("Detect() error = %v, want write TransportError", err)
		}
	})
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *simulator.Device)
		call  func(s *Session) error
		op    string
	}{
		{
			name:  "key",
			setup: func(d *simulator.Device) { d.KeyStatus = 0x01 },
			call:  func(s *Session) error { _, err := s.Identify(context.Background()); return err },
			op:    "send key",
		},
		{
			name:  "erase",
			setup: func(d *simulator.Device) { d.EraseStatus = 0x02 },
			call: func(s *Session) error {
				if _, err := s.Identify(context.Background()); err != nil {
					return err
				}
				return s.Erase(context.Background())
			},
			op: "erase",
		},
		{
			name:  "end",
			setup: func(d *simulator.Device) { d.EndStatus = 0x03 },
			call: func(s *Session) error {
				if _, err := s.Identify(context.Background()); err != nil {
					return err
				}
				return s.End(context.Background())
			},
			op: "end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := simulator.New(0x52)
			tt.setup(dev)

			err := tt.call(New(dev))

			var pe *protocol.ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ProtocolError", err)
			}
			if pe.Operation != tt.op || pe.StatusCode == 0 {
				t.Errorf("ProtocolError = %+v", pe)
			}
		})
	}
}

func TestContextCancelled(t *testing.T) {
	dev := simulator.New(0x52)
	s := erasedSession(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Write(ctx, bytes.NewReader(testImage(100)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Write() error = %v, want context.Canceled", err)
	}
	if n := len(dev.CommandsWithOpcode(protocol.CmdWrite)); n != 0 {
		t.Errorf("write packets = %d, want 0", n)
	}
}

func TestRestartNeverFails(t *testing.T) {
	device := &mockDevice{}
	device.AddResponse(0xA1, 0x00, 0x02, 0x00, 0x51, 0x11)
	s := New(device)
	if _, err := s.Detect(context.Background()); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	device.writeErr = errors.New("device gone")
	if err := s.Restart(context.Background()); err != nil {
		t.Errorf("Restart() error = %v, want nil", err)
	}
}

func TestVerifyAddressAdvance(t *testing.T) {
	for _, n := range []int{1, 56, 57, 168, 1000} {
		dev := simulator.New(0x59)
		s := erasedSession(t, dev)
		ctx := context.Background()
		img := testImage(n)

		if err := s.Write(ctx, bytes.NewReader(img)); err != nil {
			t.Fatalf("Write(%d bytes) error = %v", n, err)
		}
		if err := s.Verify(ctx, bytes.NewReader(img)); err != nil {
			t.Fatalf("Verify(%d bytes) error = %v", n, err)
		}

		verifies := dev.CommandsWithOpcode(protocol.CmdVerify)
		wantPackets := (n + protocol.ChunkSize - 1) / protocol.ChunkSize
		if len(verifies) != wantPackets {
			t.Fatalf("%d bytes: verify packets = %d, want %d", n, len(verifies), wantPackets)
		}
		for i, cmd := range verifies {
			if cmd[0] != 0xA6 {
				t.Errorf("%d bytes: packet %d opcode = 0x%02X, want 0xA6", n, i, cmd[0])
			}
			addr := int(cmd[3]) | int(cmd[4])<<8
			if addr != i*protocol.ChunkSize {
				t.Errorf("%d bytes: packet %d address = %d, want %d", n, i, addr, i*protocol.ChunkSize)
			}
		}
		if s.Address() != wantPackets*protocol.ChunkSize {
			t.Errorf("%d bytes: Address() = %d, want %d", n, s.Address(), wantPackets*protocol.ChunkSize)
		}
		if dev.VerifyErrors() != 0 {
			t.Errorf("%d bytes: VerifyErrors() = %d, want 0", n, dev.VerifyErrors())
		}
	}
}

func TestVerifyRequiresWrite(t *testing.T) {
	dev := simulator.New(0x52)
	s := erasedSession(t, dev)

	err := s.Verify(context.Background(), bytes.NewReader(testImage(56)))

	var se *StateError
	if !errors.As(err, &se) || se.State != StateErased {
		t.Fatalf("Verify() error = %v, want StateError in erased", err)
	}
	if n := len(dev.CommandsWithOpcode(protocol.CmdVerify)); n != 0 {
		t.Errorf("verify packets = %d, want 0", n)
	}
}

func TestTransportFailureLoggedAtDebug(t *testing.T) {
	device := &mockDevice{readErr: errors.New("pipe error")}
	logger := &MockLogger{}

	if _, err := New(device, WithLogger(logger)).Detect(context.Background()); err == nil {
		t.Fatal("Detect() error = nil, want TransportError")
	}

	if len(logger.errorMsgs) != 0 {
		t.Errorf("error logs = %v, want none", logger.errorMsgs)
	}
	found := false
	for _, msg := range logger.debugMsgs {
		if msg == "transfer failed" {
			found = true
		}
	}
	if !found {
		t.Errorf("debug logs = %v, want a transfer failed entry", logger.debugMsgs)
	}
}

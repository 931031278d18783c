package bootloader

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// Program flashes image onto the chip. This is the main entry point of the
// package.
//
// The process:
//  1. Identify the chip and exchange the key, unless already done
//  2. Check that the image fits the chip flash
//  3. Erase the flash
//  4. Write every 56-byte packet
//  5. Verify every packet
//  6. End programming
//  7. Reset into the new firmware (see WithRestart)
//
// The context can be used to cancel between packets.
func (s *Session) Program(ctx context.Context, image []byte) error {
	rn := newRun(s.config.ProgressCallback)

	if s.state == StateDisconnected {
		rn.report(PhaseIdentifying, 0, 0, 0)
		if _, err := s.Identify(ctx); err != nil {
			return fmt.Errorf("identify: %w", err)
		}
	}
	if err := s.require("program", StateKeyExchanged); err != nil {
		return err
	}

	d := *s.chip
	if len(image) > int(d.FlashSize) {
		return &ImageTooLargeError{Chip: d.Name, Size: len(image), FlashSize: int(d.FlashSize)}
	}

	s.logInfo("programming",
		"chip", d.Name,
		"version", s.version,
		"bytes", len(image),
	)

	rn.report(PhaseErasing, 0, 0, 0)
	if err := s.Erase(ctx); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	if err := s.write(ctx, bytes.NewReader(image), len(image), rn); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := s.verify(ctx, bytes.NewReader(image), len(image), rn); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	rn.report(PhaseEnding, 0, 0, 0)
	if err := s.End(ctx); err != nil {
		return fmt.Errorf("end: %w", err)
	}

	if s.config.Restart {
		rn.report(PhaseRestarting, 0, 0, 0)
		if err := s.Restart(ctx); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
	}

	rn.report(PhaseComplete, 0, len(image), len(image))
	s.logInfo("programming complete",
		"chip", d.Name,
		"bytes", len(image),
		"elapsed", time.Since(rn.start).Round(time.Millisecond).String(),
	)

	return nil
}

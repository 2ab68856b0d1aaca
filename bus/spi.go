package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Per transfer limit of the device's receive buffer, in bytes. The
// driver never exceeds it; the worker trusts that.
const spiMaxTransfer = 2048

// xfer is one queued transfer. Command transfers go out with the D/C
// pin low, data transfers with it high.
type xfer struct {
	data    []byte
	command bool
}

// SPI is a Connector backed by a periph.io SPI port plus a
// data/command GPIO pin, wired the way the small display controllers
// are. Writes are handed to a background goroutine so the driver's
// polled state machine never blocks on the wire; ClearToSend reports
// false while a transfer is in flight.
//
// Transport errors are sticky: after the first one the connector keeps
// accepting (and discarding) writes so the driver can finish its frame,
// and the application checks Err once per frame.
type SPI struct {
	conn spi.Conn
	dc   gpio.PinOut

	ch      chan xfer
	wg      sync.WaitGroup
	pending atomic.Int32

	mu  sync.Mutex
	err error

	cmdBuf  [2]byte
	dataBuf [spiMaxTransfer]byte
}

// NewSPI connects to the device on port p. dc is the data/command pin.
// A zero frequency selects 8 MHz.
func NewSPI(p spi.Port, dc gpio.PinOut, f physic.Frequency) (*SPI, error) {
	if f == 0 {
		f = 8 * physic.MegaHertz
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("bus: couldn't connect SPI port: %w", err)
	}
	if err := dc.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("bus: couldn't configure D/C pin: %w", err)
	}

	s := &SPI{conn: c, dc: dc, ch: make(chan xfer, 2)}
	s.wg.Add(1)
	go s.worker()
	return s, nil
}

// worker performs the queued transfers in order, standing in for the
// DMA engine a memory mapped bus would have.
func (s *SPI) worker() {
	defer s.wg.Done()
	for x := range s.ch {
		level := gpio.High
		if x.command {
			level = gpio.Low
		}
		err := s.dc.Out(level)
		if err == nil {
			err = s.conn.Tx(x.data, nil)
		}
		if err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
		s.pending.Add(-1)
	}
}

func (s *SPI) ClearToSend() bool {
	return s.pending.Load() == 0
}

func (s *SPI) WriteData(p []byte) {
	if len(p) > spiMaxTransfer {
		panic(fmt.Sprintf("bus: %d byte transfer exceeds the hardware buffer", len(p)))
	}
	if s.Err() != nil {
		return
	}
	n := copy(s.dataBuf[:], p)
	s.pending.Add(1)
	s.ch <- xfer{data: s.dataBuf[:n]}
}

func (s *SPI) StartColorBufferTransfer(band uint16) {
	if s.Err() != nil {
		return
	}
	s.cmdBuf[0] = byte(band)
	s.cmdBuf[1] = byte(band >> 8)
	s.pending.Add(1)
	s.ch <- xfer{data: s.cmdBuf[:], command: true}
}

// Err returns the first transport error seen, if any.
func (s *SPI) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close drains the queue and stops the worker.
func (s *SPI) Close() error {
	close(s.ch)
	s.wg.Wait()
	return s.Err()
}

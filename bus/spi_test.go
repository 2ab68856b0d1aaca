package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// fakeConn records every transfer together with the D/C pin level at
// the time it went out.
type fakeConn struct {
	mu  sync.Mutex
	dc  *gpiotest.Pin
	txs []fakeTx
	err error
}

type fakeTx struct {
	data    []byte
	command bool
}

func (c *fakeConn) String() string { return "faketx" }

func (c *fakeConn) Duplex() conn.Duplex { return conn.Half }

func (c *fakeConn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	d := make([]byte, len(w))
	copy(d, w)
	c.txs = append(c.txs, fakeTx{data: d, command: c.dc.L == gpio.Low})
	return nil
}

func (c *fakeConn) TxPackets(p []spi.Packet) error { return errors.New("not implemented") }

func (c *fakeConn) recorded() []fakeTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeTx(nil), c.txs...)
}

type fakePort struct {
	conn *fakeConn
}

func (p *fakePort) String() string { return "fakeport" }

func (p *fakePort) Connect(f physic.Frequency, m spi.Mode, bits int) (spi.Conn, error) {
	return p.conn, nil
}

func newFakeBus(t *testing.T) (*SPI, *fakeConn) {
	t.Helper()
	dc := &gpiotest.Pin{N: "dc", Num: 25}
	fc := &fakeConn{dc: dc}
	s, err := NewSPI(&fakePort{conn: fc}, dc, 0)
	if err != nil {
		t.Fatalf("Got error %v from NewSPI", err)
	}
	return s, fc
}

// waitClear polls ClearToSend the way the driver does, with a timeout
// instead of trust.
func waitClear(t *testing.T, s *SPI) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.ClearToSend() {
		if time.Now().After(deadline) {
			t.Fatal("bus never became clear to send")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSPITransferOrderAndLevels(t *testing.T) {
	s, fc := newFakeBus(t)
	defer s.Close()

	s.StartColorBufferTransfer(3)
	s.WriteData([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	waitClear(t, s)

	txs := fc.recorded()
	if len(txs) != 2 {
		t.Fatalf("Got %d transfers, wanted 2", len(txs))
	}
	if !txs[0].command || txs[0].data[0] != 3 || txs[0].data[1] != 0 {
		t.Errorf("Got first transfer %+v, wanted band command 3", txs[0])
	}
	if txs[1].command || len(txs[1].data) != 4 || txs[1].data[0] != 0xAA {
		t.Errorf("Got second transfer %+v, wanted 4 data bytes", txs[1])
	}
}

func TestSPIWriteDataCopies(t *testing.T) {
	s, fc := newFakeBus(t)
	defer s.Close()

	buf := []byte{1, 2, 3, 4}
	s.WriteData(buf)
	buf[0] = 99 // the caller may reuse its buffer immediately
	waitClear(t, s)

	txs := fc.recorded()
	if len(txs) != 1 || txs[0].data[0] != 1 {
		t.Errorf("Got %+v, wanted the original bytes", txs)
	}
}

func TestSPIBusyWhilePending(t *testing.T) {
	s, _ := newFakeBus(t)
	defer s.Close()

	for i := 0; i < 50; i++ {
		waitClear(t, s)
		s.WriteData([]byte{byte(i)})
	}
	waitClear(t, s)
}

func TestSPIStickyError(t *testing.T) {
	s, fc := newFakeBus(t)
	defer s.Close()

	wantErr := errors.New("wire fell off")
	fc.mu.Lock()
	fc.err = wantErr
	fc.mu.Unlock()

	s.WriteData([]byte{1})
	waitClear(t, s)

	if err := s.Err(); !errors.Is(err, wantErr) {
		t.Fatalf("Got %v, wanted the transport error", err)
	}

	// Later writes are swallowed so the driver can drain its frame.
	s.WriteData([]byte{2})
	s.StartColorBufferTransfer(0)
	waitClear(t, s)
	if got := len(fc.recorded()); got != 0 {
		t.Errorf("Got %d recorded transfers after the error, wanted 0", got)
	}
}

func TestSPIRejectsOversizedWrite(t *testing.T) {
	s, _ := newFakeBus(t)
	defer s.Close()

	defer func() {
		if recover() == nil {
			t.Errorf("Got no panic for an oversized transfer")
		}
	}()
	s.WriteData(make([]byte, spiMaxTransfer+1))
}

// Package bus defines the transfer contract between the driver and the
// rasterizer hardware, plus the SPI transport used to reach a real
// device.
package bus

// Connector is the narrow DMA style channel to the device. The driver
// only calls WriteData after ClearToSend has reported true, never hands
// over more bytes than one hardware transfer buffer holds, and brackets
// every band sub list with a StartColorBufferTransfer.
type Connector interface {
	// ClearToSend reports whether a new WriteData may start. It
	// must not block.
	ClearToSend() bool

	// WriteData hands bytes to the device. The transfer may
	// complete asynchronously but must be done before ClearToSend
	// reports true again. The slice is only valid for the duration
	// of the call.
	WriteData(p []byte)

	// StartColorBufferTransfer tells the device which band the
	// following writes belong to.
	StartColorBufferTransfer(band uint16)
}

// Package display sends packed frames to UC8159 class e-paper controllers
// over SPI.
//
// The panel must already have been brought up; this package only streams
// frame data and triggers a refresh.
package display

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bodgit/epaper/pack"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// UC8159 instructions
const (
	cmdPOF  = 0x02
	cmdPON  = 0x04
	cmdDSLP = 0x07
	cmdDTM  = 0x10
	cmdDRF  = 0x12
)

const (
	chunkSize = 4096

	// deep sleep check code
	dslpCheck = 0xa5
)

// ErrHalted is returned by any operation after Halt.
var ErrHalted = errors.New("display: halted")

// Command is a single instruction with its parameters.
type Command struct {
	Cmd  byte
	Data []byte
}

// Opts is the configuration for a display.
type Opts struct {
	W            int
	H            int
	BitsPerPixel int           // default 4
	Order        pack.BitOrder // default MSBFirst

	Frequency physic.Frequency // default 3MHz

	// Init is sent once when the device is created.
	Init []Command

	// Time to wait after each step of a refresh. There's a busy pin but
	// it's not reliable on every board.
	DataDelay     time.Duration // default 1s
	PowerOnDelay  time.Duration // default 1s
	RefreshDelay  time.Duration // default 35s
	PowerOffDelay time.Duration // default 1s
}

func (o *Opts) defaults() {
	if o.BitsPerPixel == 0 {
		o.BitsPerPixel = 4
	}
	if o.Frequency == 0 {
		o.Frequency = 3 * physic.MegaHertz
	}
	if o.DataDelay == 0 {
		o.DataDelay = time.Second
	}
	if o.PowerOnDelay == 0 {
		o.PowerOnDelay = time.Second
	}
	if o.RefreshDelay == 0 {
		o.RefreshDelay = 35 * time.Second
	}
	if o.PowerOffDelay == 0 {
		o.PowerOffDelay = time.Second
	}
}

// Dev is a handle to a display.
type Dev struct {
	c    conn.Conn
	dc   gpio.PinOut
	opts Opts

	sleep func(context.Context, time.Duration) error

	halted bool
}

// NewSPI connects to a display on p, using dc as the data/command pin.
// opts must not be nil.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		return nil, errors.New("display: options required")
	}
	o := *opts
	o.defaults()

	c, err := p.Connect(o.Frequency, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}

	return New(c, dc, &o)
}

// New returns a display using an existing connection.
func New(c conn.Conn, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		return nil, errors.New("display: options required")
	}
	o := *opts
	o.defaults()

	if o.W <= 0 || o.H <= 0 {
		return nil, fmt.Errorf("display: invalid size %dx%d", o.W, o.H)
	}
	if o.BitsPerPixel < 1 || o.BitsPerPixel > pack.MaxBitsPerPixel {
		return nil, fmt.Errorf("display: invalid bits per pixel %d", o.BitsPerPixel)
	}

	d := &Dev{
		c:     c,
		dc:    dc,
		opts:  o,
		sleep: sleep,
	}

	for _, step := range o.Init {
		if err := d.command(step.Cmd, step.Data); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("display.Dev{%dx%d}", d.opts.W, d.opts.H)
}

// command sends cmd with the DC pin low, then any data with it high in
// chunks no bigger than chunkSize.
func (d *Dev) command(cmd byte, data []byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) > 0 {
		n := min(len(data), chunkSize)
		if err := d.c.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return d.dc.Out(gpio.Low)
}

// Write sends b to the panel and refreshes it. b must match the panel size,
// bit depth and bit order.
func (d *Dev) Write(ctx context.Context, b *pack.Buffer) error {
	if d.halted {
		return ErrHalted
	}
	if b == nil {
		return errors.New("display: nil buffer")
	}
	if b.Width != d.opts.W || b.Height != d.opts.H {
		return fmt.Errorf("display: buffer is %dx%d, panel is %dx%d", b.Width, b.Height, d.opts.W, d.opts.H)
	}
	if b.BitsPerPixel != d.opts.BitsPerPixel {
		return fmt.Errorf("display: buffer has %d bits per pixel, panel expects %d", b.BitsPerPixel, d.opts.BitsPerPixel)
	}
	if b.Order != d.opts.Order {
		return fmt.Errorf("display: buffer is %s first, panel expects %s first", b.Order, d.opts.Order)
	}
	if len(b.Pix) != b.Stride*b.Height {
		return fmt.Errorf("%w: %d bytes, expected %d", pack.ErrBadBuffer, len(b.Pix), b.Stride*b.Height)
	}

	for _, step := range []struct {
		cmd   byte
		data  []byte
		delay time.Duration
	}{
		{cmdDTM, b.Pix, d.opts.DataDelay},
		{cmdPON, nil, d.opts.PowerOnDelay},
		{cmdDRF, []byte{0x00}, d.opts.RefreshDelay},
		{cmdPOF, []byte{0x00}, d.opts.PowerOffDelay},
	} {
		if err := d.command(step.cmd, step.data); err != nil {
			return err
		}
		if err := d.sleep(ctx, step.delay); err != nil {
			return err
		}
	}

	return nil
}

// Halt puts the panel into deep sleep. The panel keeps showing the last
// frame.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	if err := d.command(cmdDSLP, []byte{dslpCheck}); err != nil {
		return err
	}
	d.halted = true
	return nil
}

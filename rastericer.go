// Command rastericer renders a spinning textured cube through the
// RasteriCEr host driver, either against the software simulator in an
// ebiten window (default) or against real hardware on an SPI port.
package main

import (
	"flag"
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/zjarci/rastericer/bus"
	"github.com/zjarci/rastericer/rasterizer"
	"github.com/zjarci/rastericer/renderer"
	"github.com/zjarci/rastericer/simulator"
	"github.com/zjarci/rastericer/texture"
)

var (
	useSPI  = flag.Bool("spi", false, "Drive real hardware over SPI instead of the simulator.")
	spiPort = flag.String("spi_port", "", "SPI port name; empty selects the first one registered.")
	dcPin   = flag.String("dc_pin", "GPIO25", "Data/command GPIO pin name.")
	texFile = flag.String("texture", "", "Path to a PNG used as cube texture; empty draws a checkerboard.")
)

// mat4 is a row major 4x4 matrix.
type mat4 [16]float32

func identity() mat4 {
	return mat4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func (m mat4) mul(n mat4) mat4 {
	var r mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[i*4+k] * n[k*4+j]
			}
			r[i*4+j] = sum
		}
	}
	return r
}

func (m mat4) apply(v rasterizer.Vec4) rasterizer.Vec4 {
	var r rasterizer.Vec4
	for i := 0; i < 4; i++ {
		r[i] = m[i*4]*v[0] + m[i*4+1]*v[1] + m[i*4+2]*v[2] + m[i*4+3]*v[3]
	}
	return r
}

func perspective(fovY, aspect, near, far float32) mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	m := mat4{}
	m[0] = f / aspect
	m[5] = f
	m[10] = (far + near) / (near - far)
	m[11] = 2 * far * near / (near - far)
	m[14] = -1
	return m
}

func rotateX(a float32) mat4 {
	s, c := float32(math.Sin(float64(a))), float32(math.Cos(float64(a)))
	m := identity()
	m[5], m[6] = c, -s
	m[9], m[10] = s, c
	return m
}

func rotateY(a float32) mat4 {
	s, c := float32(math.Sin(float64(a))), float32(math.Cos(float64(a)))
	m := identity()
	m[0], m[2] = c, s
	m[8], m[10] = -s, c
	return m
}

func translate(x, y, z float32) mat4 {
	m := identity()
	m[3], m[7], m[11] = x, y, z
	return m
}

var cubeCorners = [8]rasterizer.Vec4{
	{-1, -1, -1, 1}, {1, -1, -1, 1}, {1, 1, -1, 1}, {-1, 1, -1, 1},
	{-1, -1, 1, 1}, {1, -1, 1, 1}, {1, 1, 1, 1}, {-1, 1, 1, 1},
}

var cubeFaces = [6][4]int{
	{4, 5, 6, 7}, // front
	{1, 0, 3, 2}, // back
	{5, 1, 2, 6}, // right
	{0, 4, 7, 3}, // left
	{7, 6, 2, 3}, // top
	{0, 1, 5, 4}, // bottom
}

var faceColors = [6]renderer.Color{
	{255, 255, 255, 255},
	{255, 200, 200, 255},
	{200, 255, 200, 255},
	{200, 200, 255, 255},
	{255, 255, 200, 255},
	{200, 255, 255, 255},
}

type demo struct {
	rend  *renderer.Renderer
	tex   []uint16
	angle float32
}

func (d *demo) frame() error {
	d.angle += 0.02

	mvp := perspective(1.2, 1, 1, 50).
		mul(translate(0, 0, -4)).
		mul(rotateY(d.angle)).
		mul(rotateX(d.angle * 0.7))

	if err := d.rend.Clear(true, true); err != nil {
		return err
	}
	if err := d.rend.UseTexture(d.tex, 64, 64); err != nil {
		return err
	}

	corners := [4]rasterizer.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for f, face := range cubeFaces {
		var v [4]rasterizer.Vec4
		for i, ci := range face {
			v[i] = mvp.apply(cubeCorners[ci])
		}
		c := faceColors[f]
		if err := d.rend.DrawTriangle(v[0], v[1], v[2], corners[0], corners[1], corners[2], c); err != nil && err != renderer.ErrListFull {
			return err
		}
		if err := d.rend.DrawTriangle(v[0], v[2], v[3], corners[0], corners[2], corners[3], c); err != nil && err != renderer.ErrListFull {
			return err
		}
	}

	return d.rend.Commit()
}

func main() {
	flag.Parse()

	var tex []uint16
	var err error
	if *texFile != "" {
		tex, err = texture.Load(*texFile, 64)
	} else {
		tex, err = texture.Checker(64, 8,
			color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
			color.RGBA{0x20, 0x20, 0xA0, 0xFF})
	}
	if err != nil {
		log.Fatalf("Couldn't prepare texture: %v", err)
	}

	conf := renderer.Config{
		DisplayListSize: 8192,
		DisplayLines:    1,
		LineResolution:  128,
		XResolution:     128,
	}

	if *useSPI {
		runSPI(conf, tex)
		return
	}

	sim := simulator.New(simulator.Config{
		DisplayLines:   conf.DisplayLines,
		LineResolution: conf.LineResolution,
		XResolution:    conf.XResolution,
	})
	d := &demo{rend: renderer.New(conf, sim), tex: tex}
	d.rend.EnableDepthTest(true)
	d.rend.SetDepthMask(true)
	d.rend.SetClearColor(renderer.Color{16, 16, 32, 255})

	w := int(conf.XResolution)
	h := int(conf.DisplayLines) * int(conf.LineResolution)
	ebiten.SetWindowSize(w*4, h*4)
	ebiten.SetWindowTitle("RasteriCEr")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(simulator.NewDisplay(sim, d.frame)); err != nil {
		log.Fatal(err)
	}
}

// runSPI drives a real device and renders until interrupted.
func runSPI(conf renderer.Config, tex []uint16) {
	if _, err := host.Init(); err != nil {
		log.Fatalf("Couldn't init periph host: %v", err)
	}

	port, err := spireg.Open(*spiPort)
	if err != nil {
		log.Fatalf("Couldn't open SPI port %q: %v", *spiPort, err)
	}
	defer port.Close()

	dc := gpioreg.ByName(*dcPin)
	if dc == nil {
		log.Fatalf("No GPIO pin named %q", *dcPin)
	}

	conn, err := bus.NewSPI(port, dc, 0)
	if err != nil {
		log.Fatalf("Couldn't bring up the bus: %v", err)
	}
	defer conn.Close()

	d := &demo{rend: renderer.New(conf, conn), tex: tex}
	d.rend.EnableDepthTest(true)
	d.rend.SetDepthMask(true)
	d.rend.SetClearColor(renderer.Color{16, 16, 32, 255})

	for {
		if err := d.frame(); err != nil && err != renderer.ErrListFull {
			log.Fatalf("Frame failed: %v", err)
		}
		if err := conn.Err(); err != nil {
			log.Fatalf("Bus error: %v", err)
		}
	}
}

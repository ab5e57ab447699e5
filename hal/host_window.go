//go:build !tinygo && cgo

package hal

import (
	"image"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"tinygo.org/x/tinyfont"
)

const (
	padCell    = 48
	padMargin  = 8
	statusRows = 14
	canvasW    = 4*padCell + 2*padMargin
	canvasH    = statusRows + 4*padCell + 2*padMargin
)

// padKeys are the keyboard keys for key ids 0-f.
var padKeys = [16]ebiten.Key{
	ebiten.Key0, ebiten.Key1, ebiten.Key2, ebiten.Key3,
	ebiten.Key4, ebiten.Key5, ebiten.Key6, ebiten.Key7,
	ebiten.Key8, ebiten.Key9, ebiten.KeyA, ebiten.KeyB,
	ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF,
}

// WindowConfig controls the simulator window.
type WindowConfig struct {
	Title string
	Scale int
	// KeyIndex maps a key id ('0'-'9', 'a'-'f') to its pad index.
	KeyIndex func(id byte) (int, bool)
	// Status returns the line drawn above the pads.
	Status func() string
}

// RunWindow opens a window showing the simulated keypad of h and forwards
// keyboard and mouse presses to it. It blocks until the window closes.
func RunWindow(h HAL, cfg WindowConfig) error {
	hh, ok := h.(*hostHAL)
	if !ok {
		return ErrNotImplemented
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	g := &panelGame{h: hh, panel: hh.panel, cfg: cfg}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(canvasW*cfg.Scale, canvasH*cfg.Scale)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type panelGame struct {
	h     *hostHAL
	panel *SimPanel
	cfg   WindowConfig

	canvas *canvas
	img    *ebiten.Image
}

func (g *panelGame) keyID(k int) byte {
	if k < 10 {
		return byte('0' + k)
	}
	return byte('a' + k - 10)
}

func (g *panelGame) padIndex(k int) (int, bool) {
	if g.cfg.KeyIndex == nil {
		return k, true
	}
	return g.cfg.KeyIndex(g.keyID(k))
}

func padOrigin(k int) (int, int) {
	return padMargin + (k%4)*padCell, statusRows + padMargin + (k/4)*padCell
}

func (g *panelGame) Update() error {
	var mask uint16
	for k, key := range padKeys {
		if ebiten.IsKeyPressed(key) {
			if idx, ok := g.padIndex(k); ok {
				mask |= 1 << idx
			}
		}
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		for k := 0; k < 16; k++ {
			px, py := padOrigin(k)
			if x >= px && x < px+padCell && y >= py && y < py+padCell {
				if idx, ok := g.padIndex(k); ok {
					mask |= 1 << idx
				}
			}
		}
	}
	g.panel.SetPressed(mask)
	return nil
}

func (g *panelGame) Draw(screen *ebiten.Image) {
	if g.canvas == nil {
		g.canvas = newCanvas(canvasW, canvasH)
		g.img = ebiten.NewImage(canvasW, canvasH)
	}
	c := g.canvas
	c.fill(image.Rect(0, 0, canvasW, canvasH), color.RGBA{0x10, 0x10, 0x14, 0xFF})

	status := ""
	if g.cfg.Status != nil {
		status = g.cfg.Status()
	}
	ink := color.RGBA{0xC0, 0xC0, 0xC0, 0xFF}
	if strings.HasPrefix(status, "FAULT") {
		c.fill(image.Rect(0, 0, canvasW, statusRows), color.RGBA{0x80, 0x00, 0x00, 0xFF})
		ink = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	}
	tinyfont.WriteLine(c, &tinyfont.TomThumb, padMargin, 9, status, ink)

	act := color.RGBA{0x30, 0x30, 0x30, 0xFF}
	if ActivityLED(g.h) {
		act = color.RGBA{0x20, 0xE0, 0x40, 0xFF}
	}
	c.fill(image.Rect(canvasW-padMargin-6, 3, canvasW-padMargin, 9), act)

	pads := g.panel.Pads()
	for k := 0; k < 16; k++ {
		x, y := padOrigin(k)
		face := color.RGBA{0x28, 0x28, 0x28, 0xFF}
		if idx, ok := g.padIndex(k); ok && idx < len(pads) {
			p := pads[idx]
			if p.Level > 0 {
				face = color.RGBA{scaleLevel(p.R, p.Level), scaleLevel(p.G, p.Level), scaleLevel(p.B, p.Level), 0xFF}
			}
		}
		c.fill(image.Rect(x+2, y+2, x+padCell-2, y+padCell-2), face)
		tinyfont.WriteLine(c, &tinyfont.TomThumb, int16(x+6), int16(y+12), string(g.keyID(k)), color.RGBA{0xFF, 0xFF, 0xFF, 0xFF})
	}

	g.img.WritePixels(c.img.Pix)
	screen.DrawImage(g.img, nil)
}

func (g *panelGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return canvasW, canvasH
}

func scaleLevel(v, level uint8) uint8 {
	return uint8(uint16(v) * uint16(level) / 31)
}

// canvas is an RGBA image usable as a tinyfont display.
type canvas struct {
	img *image.RGBA
}

func newCanvas(w, h int) *canvas {
	return &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (c *canvas) Size() (x, y int16) {
	b := c.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (c *canvas) SetPixel(x, y int16, col color.RGBA) {
	c.img.SetRGBA(int(x), int(y), col)
}

func (c *canvas) Display() error { return nil }

func (c *canvas) fill(r image.Rectangle, col color.RGBA) {
	r = r.Intersect(c.img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.img.SetRGBA(x, y, col)
		}
	}
}

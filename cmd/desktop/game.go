package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/himanishpuri/PeakEditor/internal/ui"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
)

var (
	buttonFill  = color.RGBA{0xe8, 0xe8, 0xe8, 0xff}
	fieldFill   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	borderColor = color.RGBA{0x40, 0x40, 0x40, 0xff}
	focusColor  = color.RGBA{0x1f, 0x77, 0xb4, 0xff}
)

// debugGlyph is the advance of the debug font.
const debugGlyph = 6

var mouseButtons = []struct {
	mouse  ebiten.MouseButton
	button int
}{
	{ebiten.MouseButtonLeft, peakedit.ButtonPrimary},
	{ebiten.MouseButtonMiddle, peakedit.ButtonMiddle},
	{ebiten.MouseButtonRight, peakedit.ButtonSecondary},
}

type game struct {
	controls *ui.Controls

	plot        *ebiten.Image
	plotVersion int
	runes       []rune
}

func newGame(c *ui.Controls) *game {
	return &game{controls: c}
}

func (g *game) Update() error {
	c := g.controls

	x, y := ebiten.CursorPosition()
	for _, b := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(b.mouse) {
			c.MouseDown(b.button, x, y)
		}
	}

	if c.Focused() != nil {
		g.runes = ebiten.AppendInputChars(g.runes[:0])
		c.TypeRunes(g.runes)
		switch {
		case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
			c.Backspace()
		case inpututil.IsKeyJustPressed(ebiten.KeyEnter), inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter):
			c.Enter()
		case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
			c.Escape()
		}
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight), inpututil.IsKeyJustPressed(ebiten.KeyPageDown):
		c.Next()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft), inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		c.Prev()
	case ebiten.IsKeyPressed(ebiten.KeyControl) && inpututil.IsKeyJustPressed(ebiten.KeyS):
		c.Save()
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	c := g.controls

	// the raster only changes with the frame
	if g.plot == nil || g.plotVersion != c.Version() {
		ed := c.Editor()
		img := render.Rasterize(ed.Waveform(), c.Frame(), c.Layout.Width, c.Layout.Height)
		if g.plot != nil {
			g.plot.Deallocate()
		}
		g.plot = ebiten.NewImageFromImage(img)
		g.plotVersion = c.Version()
	}
	screen.DrawImage(g.plot, nil)

	f := c.Frame()
	d := c.Layout.Detail
	ebitenutil.DebugPrintAt(screen, f.Title, d.Min.X, 8)
	ebitenutil.DebugPrintAt(screen, "Position: "+f.Position+" s", d.Min.X, d.Max.Y+4)
	ebitenutil.DebugPrintAt(screen, "Time (s)", d.Max.X-8*debugGlyph, d.Max.Y+4)
	ebitenutil.DebugPrintAt(screen, "Full Signal Overview", c.Layout.Overview.Min.X, c.Layout.Overview.Min.Y-18)

	for _, b := range c.Buttons {
		drawBox(screen, b.Rect, buttonFill, borderColor)
		tx := b.Rect.Min.X + (b.Rect.Dx()-len(b.Label)*debugGlyph)/2
		ebitenutil.DebugPrintAt(screen, b.Label, tx, b.Rect.Min.Y+(b.Rect.Dy()-16)/2)
	}
	for _, field := range c.Fields {
		border := borderColor
		if field == c.Focused() {
			border = focusColor
		}
		drawBox(screen, field.Rect, fieldFill, border)
		ty := field.Rect.Min.Y + (field.Rect.Dy()-16)/2
		ebitenutil.DebugPrintAt(screen, field.Label, field.Rect.Min.X-(len(field.Label)+1)*debugGlyph, ty)
		ebitenutil.DebugPrintAt(screen, field.Text, field.Rect.Min.X+4, ty)
		if field == c.Focused() {
			cx := float32(field.Rect.Min.X + 5 + len([]rune(field.Text))*debugGlyph)
			vector.StrokeLine(screen, cx, float32(ty+2), cx, float32(ty+14), 1, focusColor, false)
		}
	}

	if c.Status != "" {
		ebitenutil.DebugPrintAt(screen, c.Status, d.Min.X, c.Layout.Height-20)
	}
}

func drawBox(dst *ebiten.Image, r image.Rectangle, fill, border color.Color) {
	x, y := float32(r.Min.X), float32(r.Min.Y)
	w, h := float32(r.Dx()), float32(r.Dy())
	vector.DrawFilledRect(dst, x, y, w, h, fill, false)
	vector.StrokeRect(dst, x, y, w, h, 1, border, false)
}

// Layout keeps a fixed logical size so control rectangles stay valid when
// the window is resized; ebiten scales the result.
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.controls.Layout.Width, g.controls.Layout.Height
}

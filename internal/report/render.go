package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi      = 72.0
	fontSize = 12.0

	defaultChartWidth  = 900
	defaultChartHeight = 700

	tickCount      = 5
	tickMarkLength = 5

	// Border sizes around each panel, in pixels
	topBorder    = 40
	leftBorder   = 80
	bottomBorder = 50
	rightBorder  = 30
)

var (
	signalColor   = color.RGBA{R: 0x1f, G: 0x4e, B: 0xd8, A: 0xff}
	spectrumColor = color.RGBA{R: 0xd0, G: 0x21, B: 0x21, A: 0xff}
)

// RenderConfig holds the visual options of the two-panel chart.
type RenderConfig struct {
	Width    int
	Height   int
	FontSize float64
	Title    string // drawn above the top panel when set
}

// ChartRenderer draws the processed signal and its spectrum as two stacked
// panels on a white background.
type ChartRenderer struct {
	config   RenderConfig
	context  *freetype.Context
	fontFace font.Face
}

// NewChartRenderer parses the font and prepares a renderer. The renderer is
// reusable across artifacts.
func NewChartRenderer(config RenderConfig) (*ChartRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultChartWidth
	}
	if config.Height == 0 {
		config.Height = defaultChartHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.Black)

	return &ChartRenderer{
		config:  config,
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func (r *ChartRenderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Render draws the artifact: processed signal over time on the top panel,
// magnitude spectrum on the bottom one, and a statistics line underneath.
func (r *ChartRenderer) Render(a *Artifact) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	panelHeight := r.config.Height / 2

	top := image.Rect(leftBorder, topBorder, r.config.Width-rightBorder, panelHeight-bottomBorder)
	bottom := image.Rect(leftBorder, panelHeight+topBorder, r.config.Width-rightBorder, r.config.Height-bottomBorder)

	title := r.config.Title
	if title == "" {
		title = "Processed Signal"
	}

	if err := r.drawPanel(img, top, panel{
		title:  title,
		xLabel: "Time",
		xUnit:  "s",
		xs:     a.Times,
		ys:     a.Signal,
		color:  signalColor,
	}); err != nil {
		return nil, fmt.Errorf("drawing signal panel: %w", err)
	}

	if err := r.drawPanel(img, bottom, panel{
		title:  "FFT Spectrum",
		xLabel: "Frequency",
		xUnit:  "Hz",
		xs:     a.Frequencies,
		ys:     a.Magnitudes,
		color:  spectrumColor,
	}); err != nil {
		return nil, fmt.Errorf("drawing spectrum panel: %w", err)
	}

	if err := r.drawStatsLine(img, a); err != nil {
		return nil, fmt.Errorf("drawing statistics: %w", err)
	}

	return img, nil
}

type panel struct {
	title  string
	xLabel string
	xUnit  string
	xs     []float64
	ys     []float64
	color  color.RGBA
}

func (r *ChartRenderer) drawPanel(img *image.RGBA, area image.Rectangle, p panel) error {
	drawRect(img, area, color.Black)

	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Panel title, centered above the plot area
	width := font.MeasureString(r.fontFace, p.title)
	pt := freetype.Pt(area.Min.X+(area.Dx()-width.Round())/2, area.Min.Y-fontHeight)
	if _, err := r.context.DrawString(p.title, pt); err != nil {
		return err
	}

	n := min(len(p.xs), len(p.ys))
	if n == 0 {
		label := "no data"
		width = font.MeasureString(r.fontFace, label)
		pt = freetype.Pt(area.Min.X+(area.Dx()-width.Round())/2, area.Min.Y+area.Dy()/2)
		_, err := r.context.DrawString(label, pt)
		return err
	}

	xMin, xMax := bounds(p.xs[:n])
	yMin, yMax := bounds(p.ys[:n])

	if err := r.drawXTicks(img, area, xMin, xMax, p.xUnit, fontHeight); err != nil {
		return err
	}
	if err := r.drawYTicks(img, area, yMin, yMax, metrics); err != nil {
		return err
	}

	prevX, prevY := -1, -1
	for i := 0; i < n; i++ {
		x := area.Min.X + scale(p.xs[i], xMin, xMax, area.Dx()-1)
		y := area.Max.Y - 1 - scale(p.ys[i], yMin, yMax, area.Dy()-2)
		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, p.color)
		}
		prevX, prevY = x, y
	}

	return nil
}

func (r *ChartRenderer) drawXTicks(img *image.RGBA, area image.Rectangle, xMin, xMax float64, unit string, fontHeight int) error {
	for i := 0; i < tickCount; i++ {
		v := xMin + (xMax-xMin)*float64(i)/float64(tickCount-1)
		x := area.Min.X + scale(v, xMin, xMax, area.Dx()-1)

		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := siLabel(v, unit)
		width := font.MeasureString(r.fontFace, label)
		pt := freetype.Pt(x-width.Round()/2, area.Max.Y+tickMarkLength+fontHeight)
		if _, err := r.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChartRenderer) drawYTicks(img *image.RGBA, area image.Rectangle, yMin, yMax float64, metrics font.Metrics) error {
	for i := 0; i < tickCount; i++ {
		v := yMin + (yMax-yMin)*float64(i)/float64(tickCount-1)
		y := area.Max.Y - 1 - scale(v, yMin, yMax, area.Dy()-2)

		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%0.3g", v)
		width := font.MeasureString(r.fontFace, label)
		pt := freetype.Pt(area.Min.X-tickMarkLength-width.Round()-3, y+metrics.Ascent.Round()/2)
		if _, err := r.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChartRenderer) drawStatsLine(img *image.RGBA, a *Artifact) error {
	s := a.Stats
	line := fmt.Sprintf("Max: %.4f  Min: %.4f  Mean: %.4f  Std: %.4f  Median: %.4f",
		s.Max, s.Min, s.Mean, s.Std, s.Median)

	metrics := r.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (bottomBorder-metrics.Ascent.Round())/2

	pt := freetype.Pt(leftBorder, textY)
	_, err := r.context.DrawString(line, pt)
	return err
}

func siLabel(v float64, unit string) string {
	if v == 0 {
		return "0 " + unit
	}
	fract, suffix := humanize.ComputeSI(v)
	return fmt.Sprintf("%0.2f %s%s", fract, suffix, unit)
}

// scale maps v in [lo, hi] onto [0, span] pixels.
func scale(v, lo, hi float64, span int) int {
	if hi <= lo {
		return span / 2
	}
	px := int(math.Round((v - lo) / (hi - lo) * float64(span)))
	if px < 0 {
		return 0
	}
	if px > span {
		return span
	}
	return px
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawLine rasterizes a segment with the integer Bresenham walk.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package preview

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/vector"

	"github.com/ivlev/lessonplay/internal/geometry"
)

// jointSides is the polygon resolution used for round joints and dots.
const jointSides = 12

// canvas wraps a frame with a reusable rasterizer and the page-to-frame
// scale.
type canvas struct {
	img   *image.RGBA
	z     *vector.Rasterizer
	scale float64
}

func newCanvas(img *image.RGBA, scale float64) *canvas {
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return &canvas{img: img, z: z, scale: scale}
}

func (c *canvas) fill(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *canvas) rect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r.Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

func (c *canvas) pt(p geometry.Point) (float32, float32) {
	return float32(p.X * c.scale), float32(p.Y * c.scale)
}

// polyline strokes the points with the given page-space width. Each segment
// is rasterized on its own so overlapping joints never cancel out.
func (c *canvas) polyline(points []geometry.Point, width float64, col color.Color) {
	if len(points) == 0 {
		return
	}
	half := math.Max(width*c.scale/2, 0.5)
	src := image.NewUniform(col)
	b := c.img.Bounds()

	if len(points) == 1 {
		c.dot(points[0], half, col)
		return
	}

	for i := 1; i < len(points); i++ {
		c.z.Reset(b.Dx(), b.Dy())
		ax, ay := c.pt(points[i-1])
		bx, by := c.pt(points[i])
		dx, dy := float64(bx-ax), float64(by-ay)
		length := math.Hypot(dx, dy)
		if length > 0 {
			nx, ny := float32(-dy/length*half), float32(dx/length*half)
			c.z.MoveTo(ax+nx, ay+ny)
			c.z.LineTo(bx+nx, by+ny)
			c.z.LineTo(bx-nx, by-ny)
			c.z.LineTo(ax-nx, ay-ny)
			c.z.ClosePath()
			c.z.Draw(c.img, b, src, image.Point{})
		}
		c.dot(points[i], half, col)
	}
	c.dot(points[0], half, col)
}

// dot fills a circle of radius r pixels centered on the page point p.
func (c *canvas) dot(p geometry.Point, r float64, col color.Color) {
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	cx, cy := c.pt(p)
	for i := 0; i < jointSides; i++ {
		a := 2 * math.Pi * float64(i) / jointSides
		x := cx + float32(r*math.Cos(a))
		y := cy + float32(r*math.Sin(a))
		if i == 0 {
			c.z.MoveTo(x, y)
			continue
		}
		c.z.LineTo(x, y)
	}
	c.z.ClosePath()
	c.z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

// ParseColor reads #rgb or #rrggbb. Anything else yields the fallback.
func ParseColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// withOpacity scales a color by opacity in [0, 1], keeping it premultiplied.
func withOpacity(c color.RGBA, opacity float64) color.RGBA {
	o := geometry.Clamp01(opacity)
	return color.RGBA{
		R: uint8(float64(c.R) * o),
		G: uint8(float64(c.G) * o),
		B: uint8(float64(c.B) * o),
		A: uint8(float64(c.A) * o),
	}
}

package soft

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/gekko3d/particles/device"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Encoder maps a texel to a displayable color.
type Encoder func(v mgl32.Vec4) color.RGBA

// SignedEncoder maps xyz from [-extent, extent] to RGB. Alpha is opaque.
func SignedEncoder(extent float32) Encoder {
	if extent <= 0 {
		extent = 1
	}
	return func(v mgl32.Vec4) color.RGBA {
		c := func(f float32) uint8 {
			return uint8(mgl32.Clamp((f/extent+1)*0.5, 0, 1) * 255)
		}
		return color.RGBA{R: c(v[0]), G: c(v[1]), B: c(v[2]), A: 255}
	}
}

// LifeEncoder shows life as grey, from black at -0.5 to white at +0.5.
func LifeEncoder(v mgl32.Vec4) color.RGBA {
	g := uint8(mgl32.Clamp(v[3]+0.5, 0, 1) * 255)
	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// Image converts t with enc, one pixel per texel.
func (t *Texture) Image(enc Encoder) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			img.SetRGBA(x, y, enc(t.At(x, y)))
		}
	}
	return img
}

// WritePNG encodes t as a PNG scaled up by an integer factor with nearest-neighbour
// filtering so individual particles stay visible.
func WritePNG(w io.Writer, t *Texture, enc Encoder, scale int) error {
	if t.released {
		return errors.Wrapf(device.ErrReleased, "snapshot %s", t.label)
	}
	src := t.Image(enc)
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, t.width*scale, t.height*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		src = dst
	}
	return errors.Wrap(png.Encode(w, src), "snapshot: encode png")
}

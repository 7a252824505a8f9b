// Package imaging turns uploaded image bytes into model input tensors.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode parses PNG, JPEG, GIF, BMP or WebP data and returns the format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("decode image: empty bounds %v", b)
	}
	return img, format, nil
}

// TensorLen is the number of values ToTensor writes for a height x width image.
func TensorLen(height, width int) int {
	return height * width * 3
}

// ToTensor resizes img to width x height with nearest-neighbour sampling and
// writes its RGB values scaled to [0,1] into dst in row-major HWC order.
// Output pixel (x, y) samples source (floor(x*inW/width), floor(y*inH/height)),
// the corner-anchored mapping of tf.image.resizeNearestNeighbor. Alpha is
// dropped. dst is grown when too small and the filled slice is returned.
func ToTensor(img image.Image, height, width int, dst []float32) []float32 {
	n := TensorLen(height, width)
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]

	b := img.Bounds()
	inW, inH := b.Dx(), b.Dy()
	i := 0
	for y := 0; y < height; y++ {
		sy := b.Min.Y + min(inH-1, y*inH/height)
		for x := 0; x < width; x++ {
			sx := b.Min.X + min(inW-1, x*inW/width)
			r, g, bl := rgbAt(img, sx, sy)
			dst[i] = float32(r) / 255
			dst[i+1] = float32(g) / 255
			dst[i+2] = float32(bl) / 255
			i += 3
		}
	}
	return dst
}

// rgbAt returns the non-premultiplied RGB value at (x, y).
func rgbAt(img image.Image, x, y int) (r, g, b uint8) {
	if n, ok := img.(*image.NRGBA); ok {
		p := n.Pix[n.PixOffset(x, y):]
		return p[0], p[1], p[2]
	}
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}

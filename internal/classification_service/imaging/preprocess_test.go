package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func quadrants() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{A: 255}
			switch {
			case x < 2 && y < 2:
				c.R = 255
			case x >= 2 && y < 2:
				c.G = 255
			case x < 2:
				c.B = 255
			default:
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	img, format, err := Decode(encodePNG(t, quadrants()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, quadrants()))
	_, format, err = Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
}

func TestDecode_Rejects(t *testing.T) {
	_, _, err := Decode(nil)
	assert.Error(t, err)
	_, _, err = Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestToTensor_NearestNeighbourDownscale(t *testing.T) {
	out := ToTensor(quadrants(), 2, 2, nil)
	require.Len(t, out, TensorLen(2, 2))
	assert.Equal(t, []float32{
		1, 0, 0, 0, 1, 0,
		0, 0, 1, 1, 1, 1,
	}, out)
}

func TestToTensor_UpscaleAndBufferReuse(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 51, G: 102, B: 255, A: 255})

	buf := make([]float32, 0, 1024)
	out := ToTensor(src, 8, 8, buf)
	require.Len(t, out, 8*8*3)
	assert.Equal(t, &buf[:1][0], &out[0], "buffer with enough capacity is reused")
	for i := 0; i < len(out); i += 3 {
		assert.InDelta(t, 0.2, out[i], 1e-6)
		assert.InDelta(t, 0.4, out[i+1], 1e-6)
		assert.InDelta(t, 1.0, out[i+2], 1e-6)
	}
}

func TestToTensor_SamplesCornerAlignedColumns(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for x, v := range []uint8{0, 50, 100, 150} {
		src.SetNRGBA(x, 0, color.NRGBA{R: v, A: 255})
	}

	out := ToTensor(src, 1, 2, nil)
	require.Len(t, out, 6)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 100.0/255, out[3], 1e-6)
}

func TestToTensor_VerticalGradientAndOffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 20, 11, 26))
	for y := 0; y < 6; y++ {
		src.SetNRGBA(10, 20+y, color.NRGBA{G: uint8(y * 40), A: 255})
	}

	// 6 -> 4 rows: floor(y*6/4) = 0, 1, 3, 4
	out := ToTensor(src, 4, 1, nil)
	var got []float64
	for i := 1; i < len(out); i += 3 {
		got = append(got, float64(out[i]))
	}
	assert.InDeltaSlice(t, []float64{0, 40.0 / 255, 120.0 / 255, 160.0 / 255}, got, 1e-6)
}

func TestToTensor_KeepsColourOfTranslucentPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	out := ToTensor(src, 1, 1, nil)
	assert.InDeltaSlice(t, []float64{200.0 / 255, 100.0 / 255, 50.0 / 255},
		[]float64{float64(out[0]), float64(out[1]), float64(out[2])}, 1e-6)
}

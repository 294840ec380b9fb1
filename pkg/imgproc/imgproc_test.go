package imgproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-lpr/pkg/detection"
)

func testPlate() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 60, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 60; x++ {
			c := color.RGBA{R: 230, G: 230, B: 230, A: 255}
			if x%10 < 3 && y > 4 && y < 16 {
				c = color.RGBA{R: 10, G: 10, B: 10, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	if p.BlockSize != 11 || p.C != 2 || p.ScaleFactor != 2 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"even blur", Params{BlurKernel: 2, BlockSize: 11, ScaleFactor: 2}},
		{"even block", Params{BlurKernel: 3, BlockSize: 10, ScaleFactor: 2}},
		{"tiny block", Params{BlurKernel: 3, BlockSize: 1, ScaleFactor: 2}},
		{"zero scale", Params{BlurKernel: 3, BlockSize: 11, ScaleFactor: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBinarize_UpscalesAndSingleChannel(t *testing.T) {
	bgr, err := FromImage(testPlate())
	if err != nil {
		t.Fatalf("FromImage failed: %v", err)
	}
	defer bgr.Close()

	bin := Binarize(bgr, DefaultParams())
	defer bin.Close()

	if bin.Cols() != 120 || bin.Rows() != 40 {
		t.Errorf("size = %dx%d, want 120x40", bin.Cols(), bin.Rows())
	}
	if bin.Channels() != 1 {
		t.Errorf("channels = %d, want 1", bin.Channels())
	}
}

func TestToRGB_SwapsChannels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 0, B: 0, A: 255})
		}
	}
	bgr, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage failed: %v", err)
	}
	defer bgr.Close()

	rgb := ToRGB(bgr)
	defer rgb.Close()

	v := rgb.GetVecbAt(0, 0)
	if v[0] != 200 || v[2] != 0 {
		t.Errorf("pixel = %v, want red first", v)
	}
}

func TestBinarizedPNG(t *testing.T) {
	data, err := BinarizedPNG(testPlate(), DefaultParams())
	if err != nil {
		t.Fatalf("BinarizedPNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 120 {
		t.Errorf("width = %d, want 120", img.Bounds().Dx())
	}
}

func TestFromImage_Empty(t *testing.T) {
	m, err := FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	defer m.Close()
	if err == nil {
		t.Error("expected error for empty image")
	}
}

func TestReadImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testPlate()); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 20 {
		t.Errorf("bounds = %v, want 60x20", img.Bounds())
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 230 || g>>8 != 230 || b>>8 != 230 {
		t.Errorf("pixel (0,0) = %d,%d,%d, want 230,230,230", r>>8, g>>8, b>>8)
	}
}

func TestReadImage_Missing(t *testing.T) {
	if _, err := ReadImage(filepath.Join(t.TempDir(), "absent.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

// patternFrame gives every pixel a colour derived from its coordinates.
func patternFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, patternAt(x, y))
		}
	}
	return img
}

func patternAt(x, y int) color.RGBA {
	return color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + 3*y), A: 255}
}

func TestFromImage_Crop(t *testing.T) {
	frame := patternFrame(640, 480)
	box := detection.BoundingBox{X1: 200, Y1: 100, X2: 320, Y2: 140}
	crop := detection.Crop(frame, box)
	if crop.Bounds().Min == (image.Point{}) {
		t.Fatal("crop is not a sub-image; test needs a non-zero origin")
	}

	bgr, err := FromImage(crop)
	if err != nil {
		t.Fatalf("FromImage failed: %v", err)
	}
	defer bgr.Close()

	if bgr.Cols() != 120 || bgr.Rows() != 40 {
		t.Fatalf("size = %dx%d, want 120x40", bgr.Cols(), bgr.Rows())
	}

	bad := 0
	for row := 0; row < bgr.Rows(); row++ {
		for col := 0; col < bgr.Cols(); col++ {
			want := patternAt(box.X1+col, box.Y1+row)
			v := bgr.GetVecbAt(row, col)
			if v[0] != want.B || v[1] != want.G || v[2] != want.R {
				if bad == 0 {
					t.Errorf("pixel (%d,%d) = %v, want BGR %d,%d,%d", col, row, v, want.B, want.G, want.R)
				}
				bad++
			}
		}
	}
	if bad > 0 {
		t.Errorf("%d of %d crop pixels differ from the frame", bad, bgr.Rows()*bgr.Cols())
	}
}

func TestBinarizedPNG_Crop(t *testing.T) {
	frame := patternFrame(640, 480)
	crop := detection.Crop(frame, detection.BoundingBox{X1: 10, Y1: 300, X2: 70, Y2: 320})

	data, err := BinarizedPNG(crop, DefaultParams())
	if err != nil {
		t.Fatalf("BinarizedPNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 40 {
		t.Errorf("size = %v, want 120x40", img.Bounds())
	}
}

func TestPacked(t *testing.T) {
	tight := image.NewRGBA(image.Rect(0, 0, 4, 3))
	if packed(tight) != tight {
		t.Error("tight RGBA was copied")
	}

	frame := patternFrame(64, 48)
	sub := frame.SubImage(image.Rect(10, 20, 30, 25))
	p := packed(sub)
	if p.Bounds() != image.Rect(0, 0, 20, 5) {
		t.Fatalf("bounds = %v, want 20x5 at origin", p.Bounds())
	}
	if p.Stride != 4*20 {
		t.Errorf("stride = %d, want %d", p.Stride, 4*20)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 20; x++ {
			if got, want := p.RGBAAt(x, y), patternAt(10+x, 20+y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}

	gray := image.NewGray(image.Rect(5, 5, 9, 9))
	if p := packed(gray); p.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Errorf("gray bounds = %v, want 4x4 at origin", p.Bounds())
	}
}

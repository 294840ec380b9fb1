// Package imgproc holds the OpenCV preprocessing steps applied to plate
// crops before text recognition.
package imgproc

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// Params controls the binarization pipeline.
type Params struct {
	BlurKernel  int     // Gaussian kernel size (odd)
	BlockSize   int     // Adaptive threshold window (odd)
	C           float32 // Constant subtracted from the local mean
	ScaleFactor int     // Upscale factor applied after thresholding
}

// DefaultParams returns the settings tuned for single-line plate crops.
func DefaultParams() Params {
	return Params{
		BlurKernel:  3,
		BlockSize:   11,
		C:           2,
		ScaleFactor: 2,
	}
}

// Validate checks kernel and window sizes.
func (p Params) Validate() error {
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("imgproc: blur kernel must be odd and positive, got %d", p.BlurKernel)
	}
	if p.BlockSize < 3 || p.BlockSize%2 == 0 {
		return fmt.Errorf("imgproc: block size must be odd and >= 3, got %d", p.BlockSize)
	}
	if p.ScaleFactor < 1 {
		return fmt.Errorf("imgproc: scale factor must be >= 1, got %d", p.ScaleFactor)
	}
	return nil
}

// FromImage converts img to a BGR Mat. The caller owns the returned Mat.
// Sub-images (crops sharing a parent's pixel buffer) are accepted.
func FromImage(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), fmt.Errorf("imgproc: empty image")
	}
	return gocv.ImageToMatRGB(packed(img))
}

// packed returns img as an RGBA whose Pix holds exactly its own rows,
// starting at the origin. gocv reads Pix as one contiguous block and
// ignores Stride, so a SubImage view must be copied first.
func packed(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToRGB returns an RGB copy of a BGR Mat.
func ToRGB(bgr gocv.Mat) gocv.Mat {
	rgb := gocv.NewMat()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
	return rgb
}

// Binarize converts a BGR Mat to a single-channel black/white Mat:
// grayscale, histogram equalization, Gaussian blur, adaptive Gaussian
// threshold, then upscaling with linear interpolation.
func Binarize(bgr gocv.Mat, p Params) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(equalized, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, p.BlockSize, p.C)

	if p.ScaleFactor <= 1 {
		return thresh
	}
	defer thresh.Close()

	large := gocv.NewMat()
	size := image.Pt(thresh.Cols()*p.ScaleFactor, thresh.Rows()*p.ScaleFactor)
	gocv.Resize(thresh, &large, size, 0, 0, gocv.InterpolationLinear)
	return large
}

// EncodePNG encodes m as PNG bytes.
func EncodePNG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("imgproc: encode png: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// BinarizedPNG runs the full binarization pipeline on img and returns PNG
// bytes ready for a classical OCR engine.
func BinarizedPNG(img image.Image, p Params) ([]byte, error) {
	bgr, err := FromImage(img)
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	bin := Binarize(bgr, p)
	defer bin.Close()

	return EncodePNG(bin)
}

// ReadImage loads an image file with OpenCV's codecs and returns it as an
// RGBA image.
func ReadImage(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("imgproc: cannot read image %s", path)
	}
	return mat.ToImage()
}

package rotmatch

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/rotmatch/internal/gpu"
)

// PlaneFromGray builds a Plane from a grayscale image, one DTypeUint8 sample
// per pixel in row-major order. Use this to turn a decoded image.Image (via
// image/png, image/jpeg, ...) into Texture/Kernel/mask input without
// hand-rolling the byte layout Plane expects.
func PlaneFromGray(img *image.Gray) Plane {
	return Plane{DType: DTypeUint8, Data: append([]byte(nil), img.Pix...)}
}

// PlaneFromImage converts an arbitrary image.Image to a grayscale Plane,
// resizing it to (width, height) first if its bounds don't already match.
// Resizing uses golang.org/x/image/draw's bilinear scaler, the same
// resampling quality a caller would get compositing the source into a
// differently-sized canvas.
func PlaneFromImage(img image.Image, width, height int) (Plane, error) {
	if width <= 0 || height <= 0 {
		return Plane{}, fmt.Errorf("rotmatch: invalid plane shape %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		if gray, ok := img.(*image.Gray); ok {
			return PlaneFromGray(gray), nil
		}
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return PlaneFromGray(dst), nil
}

// MaskPlaneFromImage builds a mask Plane from an image, mapping any pixel
// with luminance at or above threshold to 255 (1 once normalized as
// DTypeUint8) and everything else to 0. It resizes to (width, height) first
// via PlaneFromImage when needed; that resize is bilinear, so pixels along a
// boundary are blended before the threshold is applied.
func MaskPlaneFromImage(img image.Image, width, height int, threshold uint8) (Plane, error) {
	plane, err := PlaneFromImage(img, width, height)
	if err != nil {
		return Plane{}, err
	}
	out := make([]byte, len(plane.Data))
	for i, v := range plane.Data {
		if v >= threshold {
			out[i] = 255
		}
	}
	return Plane{DType: DTypeUint8, Data: out}, nil
}

// TextureFromImages builds a Texture from a slice of grayscale feature-map
// images, all resized to the Texture's declared (width, height).
func TextureFromImages(imgs []image.Image, width, height int) (Texture, error) {
	planes := make([]gpu.Plane, len(imgs))
	for i, im := range imgs {
		p, err := PlaneFromImage(im, width, height)
		if err != nil {
			return Texture{}, err
		}
		planes[i] = p
	}
	return Texture{Planes: planes, Width: width, Height: height}, nil
}

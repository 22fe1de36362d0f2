package rotmatch

import (
	"image"
	"image/color"
	"testing"
)

func TestPlaneFromGrayCopiesPixels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 10})
	img.SetGray(1, 0, color.Gray{Y: 20})
	img.SetGray(0, 1, color.Gray{Y: 30})
	img.SetGray(1, 1, color.Gray{Y: 40})

	p := PlaneFromGray(img)
	want := []byte{10, 20, 30, 40}
	for i, v := range want {
		if p.Data[i] != v {
			t.Errorf("Data[%d] = %d, want %d", i, p.Data[i], v)
		}
	}
	// Mutating the source image must not affect the returned Plane.
	img.Pix[0] = 255
	if p.Data[0] != 10 {
		t.Error("PlaneFromGray did not copy the backing pixel slice")
	}
}

func TestPlaneFromImageNoResizeNeeded(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	p, err := PlaneFromImage(img, 3, 3)
	if err != nil {
		t.Fatalf("PlaneFromImage: %v", err)
	}
	if len(p.Data) != 9 {
		t.Fatalf("len(Data) = %d, want 9", len(p.Data))
	}
}

func TestPlaneFromImageResizes(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	p, err := PlaneFromImage(img, 4, 5)
	if err != nil {
		t.Fatalf("PlaneFromImage: %v", err)
	}
	if len(p.Data) != 4*5 {
		t.Fatalf("len(Data) = %d, want %d", len(p.Data), 4*5)
	}
}

func TestPlaneFromImageRejectsNonPositiveShape(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	if _, err := PlaneFromImage(img, 0, 2); err == nil {
		t.Fatal("expected an error for width=0")
	}
	if _, err := PlaneFromImage(img, 2, -1); err == nil {
		t.Fatal("expected an error for negative height")
	}
}

func TestMaskPlaneFromImageThresholds(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 200})
	img.SetGray(1, 0, color.Gray{Y: 50})

	mask, err := MaskPlaneFromImage(img, 2, 1, 100)
	if err != nil {
		t.Fatalf("MaskPlaneFromImage: %v", err)
	}
	if mask.Data[0] != 255 {
		t.Errorf("mask.Data[0] = %d, want 255 (above threshold)", mask.Data[0])
	}
	if mask.Data[1] != 0 {
		t.Errorf("mask.Data[1] = %d, want 0 (below threshold)", mask.Data[1])
	}
}

func TestTextureFromImagesBuildsOnePlanePerImage(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 4, 4))
	b := image.NewGray(image.Rect(0, 0, 4, 4))
	tex, err := TextureFromImages([]image.Image{a, b}, 4, 4)
	if err != nil {
		t.Fatalf("TextureFromImages: %v", err)
	}
	if len(tex.Planes) != 2 {
		t.Fatalf("len(Planes) = %d, want 2", len(tex.Planes))
	}
	if tex.Width != 4 || tex.Height != 4 {
		t.Fatalf("Texture shape = %dx%d, want 4x4", tex.Width, tex.Height)
	}
}

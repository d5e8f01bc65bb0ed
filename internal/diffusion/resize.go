package diffusion

import (
	"bytes"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
)

// FitDimensions scales (srcWidth, srcHeight) to fit inside the target box
// while keeping the source aspect ratio. One target dimension is kept, the
// other shrinks.
func FitDimensions(srcWidth, srcHeight, targetWidth, targetHeight int) (int, int) {
	srcRatio := float64(srcWidth) / float64(srcHeight)
	targetRatio := float64(targetWidth) / float64(targetHeight)

	if srcRatio > targetRatio {
		targetHeight = int(math.Round(float64(targetWidth) / srcRatio))
	} else {
		targetWidth = int(math.Round(float64(targetHeight) * srcRatio))
	}
	return targetWidth, targetHeight
}

// PrepareInitImage decodes an init image, resizes it to fit the target box
// preserving aspect ratio, and re-encodes it as PNG. It returns the PNG
// bytes and the final dimensions, which the img2img request must also use.
func PrepareInitImage(data []byte, targetWidth, targetHeight int) ([]byte, int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("diffusion: decode init image: %w", err)
	}

	bounds := img.Bounds()
	width, height := FitDimensions(bounds.Dx(), bounds.Dy(), targetWidth, targetHeight)
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, 0, 0, fmt.Errorf("diffusion: encode init image: %w", err)
	}
	return buf.Bytes(), width, height, nil
}

package services

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// maxImageSide is the longest edge allowed for each image quality. Missing
// qualities keep the original dimensions.
var maxImageSide = map[string]int{
	"high":   2048,
	"medium": 1080,
}

// ImageService converts gallery images into the requested format and size.
type ImageService struct{}

func NewImageService() *ImageService {
	return &ImageService{}
}

// Process writes src to dir as baseName.<format>, resizing for quality. An
// empty format, or one that cannot be encoded (webp), keeps the source
// encoding and extension.
func (s *ImageService) Process(src, dir, baseName, format, quality string) (string, error) {
	srcExt := strings.ToLower(filepath.Ext(src))
	targetExt := "." + format
	if format == "jpg" && srcExt == ".jpeg" {
		srcExt = ".jpg"
	}
	limit := maxImageSide[quality]

	if format == "" || format == "webp" || (srcExt == targetExt && limit == 0) {
		dst := filepath.Join(dir, baseName+srcExt)
		return dst, copyFile(src, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	img = fitWithin(img, limit)

	dst := filepath.Join(dir, baseName+targetExt)
	err = writeFile(dst, func(w io.Writer) error {
		if format == "png" {
			return png.Encode(w, img)
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return dst, nil
}

// fitWithin scales img so that neither side exceeds limit. A limit of 0 or an
// image that already fits is returned unchanged.
func fitWithin(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if limit <= 0 || (width <= limit && height <= limit) {
		return img
	}

	if width >= height {
		height = max(1, height*limit/width)
		width = limit
	} else {
		width = max(1, width*limit/height)
		height = limit
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// findFirstImage walks root and returns the first file with an image
// extension, in lexical order.
func findFirstImage(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || found != "" {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeFile creates dst and fills it with write. On any failure, including
// the final close, dst is removed.
func writeFile(dst string, write func(io.Writer) error) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

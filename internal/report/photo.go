package report

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/http"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"

	_ "image/gif"
	_ "image/jpeg"
)

// maxPhotoWidth bounds embedded photos; anything wider is downscaled to keep
// reports lightweight and predictable for rendering.
const maxPhotoWidth = 1024

var errUndecodablePhoto = errors.New("photo bytes are not a decodable image")

// normalizePhoto decodes png/jpeg/gif/webp bytes, downscales to the width
// bound, and re-encodes as PNG so the renderer embeds a single known format.
func normalizePhoto(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errUndecodablePhoto
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// The registered stdlib decoders miss webp; camera uploads from
		// mobile browsers frequently use it.
		if mime := http.DetectContentType(raw); mime == "image/webp" {
			if decoded, decodeErr := webp.Decode(bytes.NewReader(raw)); decodeErr == nil {
				img = decoded
			} else {
				return nil, errUndecodablePhoto
			}
		} else {
			return nil, errUndecodablePhoto
		}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, errUndecodablePhoto
	}
	if width > maxPhotoWidth {
		scaled := image.NewRGBA(image.Rect(0, 0, maxPhotoWidth, height*maxPhotoWidth/width))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)
		img = scaled
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

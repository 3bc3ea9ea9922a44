package signature

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURL extracts the raster bytes from a browser data URL such as
// "data:image/png;base64,...". Bare base64 is accepted too.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty data url", ErrImageDecode)
	}
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("%w: data url has no payload", ErrImageDecode)
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: data url is not base64 encoded", ErrImageDecode)
		}
		if mediaType := strings.TrimSuffix(meta, ";base64"); mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
			return nil, fmt.Errorf("%w: unsupported media type %q", ErrImageDecode, mediaType)
		}
		s = payload
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some canvas implementations drop the padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrImageDecode, err)
	}
	return raw, nil
}

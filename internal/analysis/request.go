package analysis

// #region imports
import (
	"fmt"
	"net/http"
)

// #endregion

// #region constants

// minImageBytes rejects payloads too small to be a decodable photograph.
const minImageBytes = 128

// acceptedImageTypes are the content types the runtimes can decode.
var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// #endregion

// #region validate

// ValidateRequest checks a request before any provider is invoked.
// Failures wrap ErrInvalidRequest.
func ValidateRequest(req Request) error {
	if req.ID == "" {
		return fmt.Errorf("%w: missing request id", ErrInvalidRequest)
	}
	if len(req.Image) == 0 {
		return fmt.Errorf("%w: empty image payload", ErrInvalidRequest)
	}
	if len(req.Image) < minImageBytes {
		return fmt.Errorf("%w: image payload too small (%d bytes)", ErrInvalidRequest, len(req.Image))
	}
	if ct := http.DetectContentType(req.Image); !acceptedImageTypes[ct] {
		return fmt.Errorf("%w: unsupported image format %q", ErrInvalidRequest, ct)
	}
	switch req.Pref {
	case PrefAutomatic, PrefForceLocal, PrefForceCloud, PrefOfflineOnly:
	default:
		return fmt.Errorf("%w: unknown execution preference %q", ErrInvalidRequest, req.Pref)
	}
	return nil
}

// NormalizePref maps an empty preference to automatic.
func NormalizePref(p ExecutionPref) ExecutionPref {
	if p == "" {
		return PrefAutomatic
	}
	return p
}

// #endregion

package winfs

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrEncoding is returned when a name has no representation on the other
// side: a lone UTF-16 surrogate locally or invalid UTF-8 remotely.
var ErrEncoding = errors.New("name not representable")

const (
	localSep  = '\\'
	remoteSep = '/'

	// with translation on, spaces travel to the server as this character
	spaceSentinel = '?'
)

// NameCodec converts between local UTF-16 paths and remote UTF-8 paths.
//
// With Translate set, spaces become '?' on the way out and '?' become
// spaces on the way in. A remote name that already contains '?' therefore
// comes back with a space.
type NameCodec struct {
	Translate bool
}

// ToRemote converts a local path, optionally NUL terminated, into a
// remote path.
func (c NameCodec) ToRemote(local []uint16) (string, error) {
	for i, u := range local {
		if u == 0 {
			local = local[:i]
			break
		}
	}
	var b strings.Builder
	b.Grow(len(local))
	for i := 0; i < len(local); i++ {
		r := rune(local[i])
		if utf16.IsSurrogate(r) {
			if i+1 >= len(local) {
				return "", fmt.Errorf("%w: unpaired surrogate at %d", ErrEncoding, i)
			}
			r = utf16.DecodeRune(r, rune(local[i+1]))
			if r == utf8.RuneError {
				return "", fmt.Errorf("%w: unpaired surrogate at %d", ErrEncoding, i)
			}
			i++
		}
		switch {
		case r == localSep:
			r = remoteSep
		case r == ' ' && c.Translate:
			r = spaceSentinel
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// ToLocal converts a remote path or name into local UTF-16, without a
// terminator.
func (c NameCodec) ToLocal(remote string) ([]uint16, error) {
	if !utf8.ValidString(remote) {
		return nil, fmt.Errorf("%w: invalid utf-8 in %q", ErrEncoding, remote)
	}
	out := make([]uint16, 0, len(remote))
	for _, r := range remote {
		switch {
		case r == remoteSep:
			r = localSep
		case r == spaceSentinel && c.Translate:
			r = ' '
		}
		out = utf16.AppendRune(out, r)
	}
	return out, nil
}

// LocalPath encodes a Go string as a local path. Forward slashes are
// treated as separators so host bridges can pass their own paths.
func LocalPath(s string) []uint16 {
	return utf16.Encode([]rune(strings.ReplaceAll(s, "/", `\`)))
}

// LocalString decodes a local path or name, stopping at a terminator.
func LocalString(local []uint16) string {
	for i, u := range local {
		if u == 0 {
			local = local[:i]
			break
		}
	}
	return string(utf16.Decode(local))
}

package compress

import "github.com/pkg/errors"

// singlePage returns the only output page of a single-page engine.
func singlePage(name string, pages []Page) (*Page, error) {
	if len(pages) == 0 {
		return nil, errors.Wrapf(ErrInsufficientSpace, "%s: no output page", name)
	}
	for i := range pages {
		pages[i].Len = 0
	}
	return &pages[0], nil
}

// joinPages returns the input pages as one contiguous buffer.
func joinPages(src [][]byte) []byte {
	switch len(src) {
	case 0:
		return nil
	case 1:
		return src[0]
	}

	size := 0
	for _, p := range src {
		size += len(p)
	}
	joined := make([]byte, 0, size)
	for _, p := range src {
		joined = append(joined, p...)
	}
	return joined
}

// sameBuffer reports whether out starts at the first byte of buf, that is,
// whether an append-style encoder wrote in place.
func sameBuffer(out, buf []byte) bool {
	return len(out) == 0 || (len(buf) > 0 && &out[0] == &buf[0])
}

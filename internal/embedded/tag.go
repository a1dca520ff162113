package embedded

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dhowden/tag"
)

var errNoTagPicture = errors.New("no embedded picture found in tags")

// ParseTagged reads the picture block of FLAC and Ogg (Vorbis/Opus) files.
func ParseTagged(b []byte) ([]Picture, error) {
	m, err := tag.ReadFrom(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("unable to read tags: %w", err)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, errNoTagPicture
	}

	kind := KindOther
	if strings.Contains(strings.ToLower(pic.Type), "front") {
		kind = KindFront
	}
	return []Picture{{
		Data:      pic.Data,
		Mime:      normalizeMime(pic.MIMEType, pic.Data),
		Kind:      kind,
		Container: strings.ToLower(string(m.FileType())),
	}}, nil
}

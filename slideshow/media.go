package slideshow

import (
	"math/rand"

	"github.com/aouyang1/pckiosk/util"
)

type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// MediaRef is one playlist entry. Kind is inferred from the extension.
type MediaRef struct {
	FileName string
	Kind     Kind
}

// NewMediaRef returns false for files the slideshow cannot display.
func NewMediaRef(name string) (MediaRef, bool) {
	ext := util.Ext(name)
	switch {
	case util.VideoExt.Contains(ext):
		return MediaRef{FileName: name, Kind: KindVideo}, true
	case util.ImageExt.Contains(ext):
		return MediaRef{FileName: name, Kind: KindImage}, true
	default:
		return MediaRef{}, false
	}
}

// BuildPlaylist keeps displayable names in their given order and drops
// duplicates.
func BuildPlaylist(names []string) []MediaRef {
	seen := make(map[string]struct{}, len(names))
	playlist := make([]MediaRef, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		ref, ok := NewMediaRef(name)
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		playlist = append(playlist, ref)
	}
	return playlist
}

// reshuffle shuffles the playlist in place. When avoid is set and the
// playlist has more than one entry, avoid never lands at index 0 so a wrap
// does not show the same item twice in a row.
func reshuffle(rng *rand.Rand, playlist []MediaRef, avoid *MediaRef) {
	rng.Shuffle(len(playlist), func(i, j int) {
		playlist[i], playlist[j] = playlist[j], playlist[i]
	})
	if avoid == nil || len(playlist) < 2 || playlist[0] != *avoid {
		return
	}
	j := 1 + rng.Intn(len(playlist)-1)
	playlist[0], playlist[j] = playlist[j], playlist[0]
}

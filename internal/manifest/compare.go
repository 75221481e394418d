package manifest

import (
	"fmt"
	"sort"
)

// TrackChange is a track whose identification differs between two runs.
type TrackChange struct {
	Parent      string `json:"parent"`
	TrackNumber int    `json:"track_number"`
	Old         string `json:"old"`
	New         string `json:"new"`
}

// Diff describes how a later manifest differs from an earlier one.
type Diff struct {
	TracksChanged []TrackChange `json:"tracks_changed"`
	FilesAdded    []string      `json:"files_added"`
	FilesRemoved  []string      `json:"files_removed"`
}

// Empty reports whether the manifests are equivalent.
func (d Diff) Empty() bool {
	return len(d.TracksChanged) == 0 && len(d.FilesAdded) == 0 && len(d.FilesRemoved) == 0
}

type trackKey struct {
	parent  string
	ordinal int
}

// Compare reports track identification changes and output files added or
// removed going from before to after.
func Compare(before, after *Manifest) Diff {
	var diff Diff
	old := make(map[trackKey]Track, len(before.Tracks))
	for _, track := range before.Tracks {
		old[trackKey{track.Parent, track.TrackNumber}] = track
	}
	for _, track := range after.Tracks {
		prev, ok := old[trackKey{track.Parent, track.TrackNumber}]
		if !ok {
			continue
		}
		if prev.Artist != track.Artist || prev.Title != track.Title || prev.Album != track.Album {
			diff.TracksChanged = append(diff.TracksChanged, TrackChange{
				Parent:      track.Parent,
				TrackNumber: track.TrackNumber,
				Old:         label(prev),
				New:         label(track),
			})
		}
	}

	beforeFiles := outputSet(before)
	afterFiles := outputSet(after)
	for path := range afterFiles {
		if _, ok := beforeFiles[path]; !ok {
			diff.FilesAdded = append(diff.FilesAdded, path)
		}
	}
	for path := range beforeFiles {
		if _, ok := afterFiles[path]; !ok {
			diff.FilesRemoved = append(diff.FilesRemoved, path)
		}
	}
	sort.Strings(diff.FilesAdded)
	sort.Strings(diff.FilesRemoved)
	return diff
}

func outputSet(m *Manifest) map[string]struct{} {
	set := make(map[string]struct{}, len(m.Outputs))
	for _, output := range m.Outputs {
		set[output.Path] = struct{}{}
	}
	return set
}

func label(t Track) string {
	if t.Artist == "" && t.Title == "" {
		return "(unidentified)"
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

package lyrics

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidRange  = errors.New("range start must be before end")
	ErrOverlap       = errors.New("ranges overlap")
	ErrOutsideParent = errors.New("range not contained in parent")
	ErrTokenMismatch = errors.New("token and timestamp counts differ")
	ErrUnknownVerse  = errors.New("line references unknown verse")
)

// ValidationError describes the first sheet entry that breaks a lyric
// timing invariant.
type ValidationError struct {
	Kind string // "verse", "line" or "token"
	ID   string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Index maps a millisecond position to the verse, line and token that
// contain it.
type Index struct {
	songID  string
	verses  []Verse
	lines   []LyricLine
	byVerse map[string][]LyricLine
	byID    map[string]LyricLine
}

// NewIndex orders the sheet and validates it. Overlapping verses, lines or
// tokens are rejected rather than resolved by lookup order.
func NewIndex(sheet *Sheet) (*Index, error) {
	if sheet == nil {
		return nil, errors.New("nil lyric sheet")
	}

	verses := append([]Verse(nil), sheet.Verses...)
	sort.SliceStable(verses, func(i, j int) bool {
		return verses[i].VerseOrdering < verses[j].VerseOrdering
	})

	ordering := make(map[string]int, len(verses))
	verseByID := make(map[string]Verse, len(verses))
	for i, v := range verses {
		ordering[v.ID] = i
		verseByID[v.ID] = v
	}

	lines := append([]LyricLine(nil), sheet.Lines...)
	sort.SliceStable(lines, func(i, j int) bool {
		oi, oj := ordering[lines[i].VerseID], ordering[lines[j].VerseID]
		if oi != oj {
			return oi < oj
		}
		return lines[i].LineNumber < lines[j].LineNumber
	})

	idx := &Index{
		songID:  sheet.SongID,
		verses:  verses,
		lines:   lines,
		byVerse: make(map[string][]LyricLine, len(verses)),
		byID:    make(map[string]LyricLine, len(lines)),
	}

	for i, v := range verses {
		if v.StartMillis >= v.EndMillis {
			return nil, &ValidationError{Kind: "verse", ID: v.ID, Err: ErrInvalidRange}
		}
		if i > 0 && verses[i-1].EndMillis > v.StartMillis {
			return nil, &ValidationError{Kind: "verse", ID: v.ID, Err: ErrOverlap}
		}
	}

	for _, l := range lines {
		if err := validateLine(l, verseByID); err != nil {
			return nil, err
		}
		siblings := idx.byVerse[l.VerseID]
		if n := len(siblings); n > 0 && siblings[n-1].EndMillis > l.StartMillis {
			return nil, &ValidationError{Kind: "line", ID: l.ID, Err: ErrOverlap}
		}
		idx.byVerse[l.VerseID] = append(siblings, l)
		idx.byID[l.ID] = l
	}

	return idx, nil
}

func validateLine(l LyricLine, verses map[string]Verse) error {
	verse, ok := verses[l.VerseID]
	if !ok {
		return &ValidationError{Kind: "line", ID: l.ID, Err: ErrUnknownVerse}
	}
	if l.StartMillis >= l.EndMillis {
		return &ValidationError{Kind: "line", ID: l.ID, Err: ErrInvalidRange}
	}
	if l.StartMillis < verse.StartMillis || l.EndMillis > verse.EndMillis {
		return &ValidationError{Kind: "line", ID: l.ID, Err: ErrOutsideParent}
	}
	if len(l.Tokens) != len(l.Timestamps) {
		return &ValidationError{Kind: "line", ID: l.ID, Err: ErrTokenMismatch}
	}
	for i, ts := range l.Timestamps {
		id := fmt.Sprintf("%s#%d", l.ID, i)
		if ts.StartMillis >= ts.EndMillis {
			return &ValidationError{Kind: "token", ID: id, Err: ErrInvalidRange}
		}
		if ts.StartMillis < l.StartMillis || ts.EndMillis > l.EndMillis {
			return &ValidationError{Kind: "token", ID: id, Err: ErrOutsideParent}
		}
		if i > 0 && l.Timestamps[i-1].EndMillis > ts.StartMillis {
			return &ValidationError{Kind: "token", ID: id, Err: ErrOverlap}
		}
	}
	return nil
}

// SongID returns the id of the indexed song.
func (x *Index) SongID() string { return x.songID }

// Verses returns the verses in playback order.
func (x *Index) Verses() []Verse { return x.verses }

// Lines returns every line in playback order.
func (x *Index) Lines() []LyricLine { return x.lines }

// Line looks a line up by id.
func (x *Index) Line(id string) (LyricLine, bool) {
	l, ok := x.byID[id]
	return l, ok
}

// FirstVerseStart returns where the first verse begins, or 0 without verses.
func (x *Index) FirstVerseStart() int64 {
	if len(x.verses) == 0 {
		return 0
	}
	return x.verses[0].StartMillis
}

// LastVerseEnd returns where the last verse ends, or 0 without verses.
func (x *Index) LastVerseEnd() int64 {
	if len(x.verses) == 0 {
		return 0
	}
	return x.verses[len(x.verses)-1].EndMillis
}

// Resolve returns the most specific coordinate containing positionMillis.
// It reports false when no verse contains the position.
func (x *Index) Resolve(positionMillis int64) (TokenCoord, bool) {
	for _, verse := range x.verses {
		if !verse.Contains(positionMillis) {
			continue
		}
		for _, line := range x.byVerse[verse.ID] {
			if !line.Contains(positionMillis) {
				continue
			}
			coord := TokenCoord{VerseID: verse.ID, LineID: line.ID, Index: -1}
			for i, ts := range line.Timestamps {
				if ts.Contains(positionMillis) {
					coord.Index = i
					break
				}
			}
			return coord, true
		}
		return TokenCoord{VerseID: verse.ID, Index: -1}, true
	}
	return TokenCoord{}, false
}

// LineAt returns the first line whose range contains positionMillis,
// regardless of verse.
func (x *Index) LineAt(positionMillis int64) (LyricLine, bool) {
	for _, line := range x.lines {
		if line.Contains(positionMillis) {
			return line, true
		}
	}
	return LyricLine{}, false
}

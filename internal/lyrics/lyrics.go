package lyrics

// TimestampRange is a span of song time in milliseconds. Containment checks
// are inclusive on both ends.
type TimestampRange struct {
	StartMillis int64 `json:"start_millis"`
	EndMillis   int64 `json:"end_millis"`
}

// Contains reports whether positionMillis falls inside the range.
func (r TimestampRange) Contains(positionMillis int64) bool {
	return r.StartMillis <= positionMillis && positionMillis <= r.EndMillis
}

// DurationMillis returns the length of the range.
func (r TimestampRange) DurationMillis() int64 {
	return r.EndMillis - r.StartMillis
}

// Verse groups consecutive lyric lines of one song.
type Verse struct {
	TimestampRange
	ID            string `json:"id"`
	SongID        string `json:"song_id"`
	Title         string `json:"title,omitempty"`
	VerseOrdering int    `json:"verse_ordering"`
}

// LyricLine is one time-coded line. Timestamps holds one range per token.
type LyricLine struct {
	TimestampRange
	ID         string           `json:"id"`
	VerseID    string           `json:"verse_id"`
	SongID     string           `json:"song_id"`
	LineNumber int              `json:"line_number"`
	Lyric      string           `json:"lyric"`
	Tokens     []string         `json:"tokens"`
	Timestamps []TimestampRange `json:"timestamps"`
}

// Sheet is the lyric reference data of one song, as delivered by the
// project detail endpoint.
type Sheet struct {
	SongID string      `json:"song_id"`
	Verses []Verse     `json:"verses"`
	Lines  []LyricLine `json:"lines"`
}

// TokenCoord is a playback position resolved against the lyric sheet.
// LineID is empty between lines; Index is -1 when no token matches.
type TokenCoord struct {
	VerseID string `json:"verse_id"`
	LineID  string `json:"line_id,omitempty"`
	Index   int    `json:"index"`
}

// HasLine reports whether the coordinate points into a line.
func (c TokenCoord) HasLine() bool { return c.LineID != "" }

// HasToken reports whether the coordinate points at a token.
func (c TokenCoord) HasToken() bool { return c.LineID != "" && c.Index >= 0 }

// Package party implements the watch-party coordination core: room
// lifecycle, shared video playback state, chat and queue, voice routing
// control plane, and the screen-share relay.
package party

import "time"

// RoomCode identifies a room: 6 uppercase alphanumeric characters.
type RoomCode string

// ParticipantId identifies one connection inside one room. Stable for the
// connection's lifetime.
type ParticipantId string

// VideoType classifies a loaded video's playback source.
type VideoType string

const (
	VideoTypeNone    VideoType = "none"
	VideoTypeYoutube VideoType = "youtube"
	VideoTypeDirect  VideoType = "direct"
)

// Participant is one connection's membership record inside a Room.
type Participant struct {
	Id          ParticipantId `json:"id"`
	DisplayName string        `json:"displayName"`
	Avatar      string        `json:"avatar"`
	JoinedAt    time.Time     `json:"joinedAt"`
}

// ChatKind distinguishes user messages from dispatcher-injected notices.
type ChatKind string

const (
	ChatKindMessage ChatKind = "message"
	ChatKindSystem  ChatKind = "system"
)

// ChatMessage is one entry in a room's chat log.
type ChatMessage struct {
	Id        string    `json:"id"`
	AuthorId  string    `json:"authorId"` // "system" for dispatcher-injected notices
	Author    string    `json:"author"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	Kind      ChatKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// QueueItem is one pending video in a room's up-next queue.
type QueueItem struct {
	Id        string    `json:"id"`
	VideoId   string    `json:"videoId"` // empty for direct URLs
	VideoUrl  string    `json:"videoUrl"`
	Title     string    `json:"title"`
	AddedBy   string    `json:"addedBy"`
	AddedAt   time.Time `json:"addedAt"`
}

// VideoState is the canonical playback tuple. The effective position at any
// wall-clock instant is computed, never stored directly while playing.
type VideoState struct {
	VideoId        string    `json:"videoId"`
	VideoUrl       string    `json:"videoUrl"`
	VideoType      VideoType `json:"videoType"`
	IsPlaying      bool      `json:"isPlaying"`
	AnchorPosition float64   `json:"-"`
	AnchorWallTime time.Time `json:"-"`
	Rate           float64   `json:"rate"`
	Seq            uint64    `json:"seq"`
}

// EffectivePosition computes the canonical playback position at wall-clock t.
func (v VideoState) EffectivePosition(t time.Time) float64 {
	if !v.IsPlaying {
		return v.AnchorPosition
	}
	elapsed := t.Sub(v.AnchorWallTime).Seconds()
	return v.AnchorPosition + elapsed*v.Rate
}

// Snapshot is the wire representation of a VideoState: the effective
// position is computed once, at emission time, so clients do no clock math.
type Snapshot struct {
	VideoId     string    `json:"videoId"`
	VideoUrl    string    `json:"videoUrl"`
	VideoType   VideoType `json:"videoType"`
	IsPlaying   bool      `json:"isPlaying"`
	CurrentTime float64   `json:"currentTime"`
	Rate        float64   `json:"rate"`
	Seq         uint64    `json:"seq"`
	Timestamp   int64     `json:"timestamp"` // ms since epoch, emission time
}

// ToSnapshot stamps v at wall-clock t.
func (v VideoState) ToSnapshot(t time.Time) Snapshot {
	return Snapshot{
		VideoId:     v.VideoId,
		VideoUrl:    v.VideoUrl,
		VideoType:   v.VideoType,
		IsPlaying:   v.IsPlaying,
		CurrentTime: v.EffectivePosition(t),
		Rate:        v.Rate,
		Seq:         v.Seq,
		Timestamp:   t.UnixMilli(),
	}
}

var avatarPool = []string{
	"🦊", "🐼", "🦁", "🐸", "🐨", "🦉", "🐙", "🦄", "🐢", "🦈",
	"🐵", "🐺", "🦓", "🦝", "🐧", "🦋", "🐳", "🦩", "🐿️", "🦔",
}

// avatarFor deterministically derives an avatar emoji from a display name,
// so the same name always draws the same avatar within a process lifetime.
func avatarFor(name string) string {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return avatarPool[h%uint32(len(avatarPool))]
}

var namePool = []string{
	"Viewer", "Guest", "Popcorn", "Lurker", "Watcher", "Couchmate", "Nightowl", "Cinephile",
}

// defaultDisplayName returns a stable fallback name when a participant joins
// with an empty name, keyed by their position in the room so two anonymous
// joiners don't collide.
func defaultDisplayName(ordinal int) string {
	return namePool[ordinal%len(namePool)]
}

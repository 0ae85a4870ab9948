package party

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtube\.com/embed/|youtu\.be/|youtube\.com/shorts/)([A-Za-z0-9_-]{11})`),
}

var directExtensions = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "mkv": true, "m3u8": true, "ogg": true,
}

// classifyVideoURL extracts a YouTube video ID or recognizes a direct media
// URL. Returns InvalidInput when the URL can't be classified as either.
func classifyVideoURL(raw string) (videoType VideoType, videoId string, videoUrl string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", "", InvalidInput("video url is empty")
	}

	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return VideoTypeYoutube, m[1], raw, nil
		}
	}

	u, perr := url.Parse(raw)
	if perr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", "", InvalidInput("url is not http(s) or a recognized youtube link")
	}

	path := u.Path
	if idx := strings.LastIndex(path, "."); idx != -1 {
		ext := strings.ToLower(path[idx+1:])
		if directExtensions[ext] {
			return VideoTypeDirect, "", raw, nil
		}
	}
	// m3u8 often arrives with a query suffix (signed CDN URLs); check the
	// raw string too.
	if strings.Contains(strings.ToLower(raw), ".m3u8") {
		return VideoTypeDirect, "", raw, nil
	}

	return "", "", "", InvalidInput("url is not a recognized video format")
}

// loadVideo sets the room's video state to a freshly loaded video, starting
// playback from position 0. Returns the new snapshot.
func (r *Room) loadVideo(rawUrl string, now time.Time) (Snapshot, error) {
	vt, vid, vurl, err := classifyVideoURL(rawUrl)
	if err != nil {
		return Snapshot{}, err
	}
	r.video.VideoId = vid
	r.video.VideoUrl = vurl
	r.video.VideoType = vt
	r.video.IsPlaying = true
	r.video.AnchorPosition = 0
	r.video.AnchorWallTime = now
	r.video.Rate = 1.0
	r.video.Seq++
	return r.video.ToSnapshot(now), nil
}

// play resumes playback. Echo-suppressed when already playing.
func (r *Room) play(now time.Time) (Snapshot, bool) {
	if r.video.IsPlaying {
		return Snapshot{}, false
	}
	r.video.IsPlaying = true
	r.video.AnchorWallTime = now
	r.video.Seq++
	return r.video.ToSnapshot(now), true
}

// pause halts playback at the client-reported position. Echo-suppressed
// when already paused.
func (r *Room) pause(position float64, now time.Time) (Snapshot, bool) {
	if !r.video.IsPlaying {
		return Snapshot{}, false
	}
	r.video.IsPlaying = false
	r.video.AnchorPosition = position
	r.video.AnchorWallTime = now
	r.video.Seq++
	return r.video.ToSnapshot(now), true
}

// seek jumps to the client-reported position. Always applied: it carries
// new information regardless of current play state.
func (r *Room) seek(position float64, now time.Time) Snapshot {
	r.video.AnchorPosition = position
	r.video.AnchorWallTime = now
	r.video.Seq++
	return r.video.ToSnapshot(now)
}

// setRate changes playback speed, re-anchoring at the current effective
// position first so the instantaneous position is continuous across the
// rate change.
func (r *Room) setRate(rate float64, now time.Time) Snapshot {
	r.video.AnchorPosition = r.video.EffectivePosition(now)
	r.video.AnchorWallTime = now
	r.video.Rate = rate
	r.video.Seq++
	return r.video.ToSnapshot(now)
}

package party

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyVideoURL_Youtube(t *testing.T) {
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
	}
	for _, raw := range cases {
		vt, vid, vurl, err := classifyVideoURL(raw)
		assert.NoError(t, err)
		assert.Equal(t, VideoTypeYoutube, vt)
		assert.Equal(t, "dQw4w9WgXcQ", vid)
		assert.Equal(t, raw, vurl)
	}
}

func TestClassifyVideoURL_Direct(t *testing.T) {
	vt, vid, _, err := classifyVideoURL("https://cdn.example.com/movies/reel.mp4")
	assert.NoError(t, err)
	assert.Equal(t, VideoTypeDirect, vt)
	assert.Equal(t, "", vid)

	vt, _, _, err = classifyVideoURL("https://cdn.example.com/hls/stream.m3u8?sig=abc123")
	assert.NoError(t, err)
	assert.Equal(t, VideoTypeDirect, vt)
}

func TestClassifyVideoURL_Invalid(t *testing.T) {
	_, _, _, err := classifyVideoURL("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, _, err = classifyVideoURL("not a url at all")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, _, err = classifyVideoURL("ftp://example.com/movie.mp4")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLoadVideo_ResetsAnchorAndBumpsSeq(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	r.video.Seq = 5

	now := time.Now()
	snap, err := r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	assert.NoError(t, err)
	assert.Equal(t, uint64(6), snap.Seq)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, float64(0), snap.CurrentTime)
}

func TestPlay_EchoSuppressedWhenAlreadyPlaying(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	seqAfterLoad := r.video.Seq

	_, applied := r.play(now.Add(time.Second))
	assert.False(t, applied, "play on an already-playing room must be a no-op")
	assert.Equal(t, seqAfterLoad, r.video.Seq, "seq must not advance on a suppressed echo")
}

func TestPauseThenPause_SecondIsEchoSuppressed(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)

	snap, applied := r.pause(12.5, now.Add(2*time.Second))
	assert.True(t, applied)
	assert.Equal(t, 12.5, snap.CurrentTime)
	seqAfterPause := r.video.Seq

	_, applied = r.pause(13.0, now.Add(3*time.Second))
	assert.False(t, applied, "pausing an already-paused room must be a no-op")
	assert.Equal(t, seqAfterPause, r.video.Seq)
}

func TestPlayAfterPause_Applies(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	_, _ = r.pause(10, now.Add(time.Second))

	snap, applied := r.play(now.Add(2 * time.Second))
	assert.True(t, applied)
	assert.Equal(t, float64(10), snap.CurrentTime, "resuming must pick up exactly where it paused")
}

func TestSetRate_ContinuityAcrossRateChange(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	t0 := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", t0)

	// Play at 1x for 10s, reaching position 10.
	t1 := t0.Add(10 * time.Second)
	before := r.video.EffectivePosition(t1)
	assert.InDelta(t, 10.0, before, 0.001)

	r.setRate(2.0, t1)
	assert.Equal(t, 2.0, r.video.Rate)
	// Position must not jump at the instant of the rate change.
	assert.InDelta(t, 10.0, r.video.EffectivePosition(t1), 0.001)

	// 5s later at 2x, position should have advanced by 10 (5*2).
	t2 := t1.Add(5 * time.Second)
	assert.InDelta(t, 20.0, r.video.EffectivePosition(t2), 0.001)
}

func TestSeek_AlwaysApplies(t *testing.T) {
	r := newRoom("ABC123", &Registry{})
	now := time.Now()
	_, _ = r.loadVideo("https://youtu.be/dQw4w9WgXcQ", now)
	_, _ = r.pause(0, now)

	snap := r.seek(42, now.Add(time.Second))
	assert.Equal(t, float64(42), snap.CurrentTime)
}

package transcode

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"design_vault/internal/lib/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscoder struct {
	fn func(ctx context.Context, in Media, progress ProgressFunc) (Media, error)
}

func (s stubTranscoder) Transcode(ctx context.Context, in Media, progress ProgressFunc) (Media, error) {
	return s.fn(ctx, in, progress)
}

func TestNeedsConversion(t *testing.T) {
	assert.True(t, NeedsConversion("video/quicktime"))
	assert.True(t, NeedsConversion("video/webm"))
	assert.False(t, NeedsConversion("video/mp4"))
	assert.False(t, NeedsConversion("image/png"))
}

func TestFallback(t *testing.T) {
	log := slogdiscard.NewDiscardLogger()
	in := Media{Filename: "clip.mov", MimeType: "video/quicktime", Data: []byte("raw")}
	converted := Media{Filename: "clip.mp4", MimeType: "video/mp4", Data: []byte("mp4")}

	tests := []struct {
		name  string
		inner Transcoder
		want  Media
	}{
		{
			name: "success",
			inner: stubTranscoder{fn: func(context.Context, Media, ProgressFunc) (Media, error) {
				return converted, nil
			}},
			want: converted,
		},
		{
			name: "unsupported",
			inner: stubTranscoder{fn: func(context.Context, Media, ProgressFunc) (Media, error) {
				return Media{}, ErrUnsupported
			}},
			want: in,
		},
		{
			name: "failure",
			inner: stubTranscoder{fn: func(context.Context, Media, ProgressFunc) (Media, error) {
				return Media{}, errors.New("codec exploded")
			}},
			want: in,
		},
		{
			name: "timeout",
			inner: stubTranscoder{fn: func(ctx context.Context, _ Media, _ ProgressFunc) (Media, error) {
				time.Sleep(200 * time.Millisecond)
				return converted, nil
			}},
			want: in,
		},
		{
			name:  "no inner",
			inner: nil,
			want:  in,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := WithFallback(log, tt.inner, 20*time.Millisecond)

			got, err := fb.Transcode(context.Background(), in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallback_ProgressIgnoredAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	inner := stubTranscoder{fn: func(_ context.Context, in Media, progress ProgressFunc) (Media, error) {
		defer close(finished)
		progress(0.1)
		<-release
		progress(0.9)
		return in, nil
	}}

	var reports atomic.Int32
	fb := WithFallback(slogdiscard.NewDiscardLogger(), inner, 20*time.Millisecond)

	_, err := fb.Transcode(context.Background(), Media{MimeType: "video/webm"}, func(float64) {
		reports.Add(1)
	})
	require.NoError(t, err)

	close(release)
	<-finished

	assert.Equal(t, int32(1), reports.Load())
}

func TestFFmpeg_SkipsCompatible(t *testing.T) {
	f := NewFFmpeg(slogdiscard.NewDiscardLogger(), "ffmpeg")
	in := Media{Filename: "a.mp4", MimeType: "video/mp4", Data: []byte{1}}

	out, err := f.Transcode(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFFmpeg_MissingBinary(t *testing.T) {
	f := NewFFmpeg(slogdiscard.NewDiscardLogger(), "definitely-not-ffmpeg-binary")

	_, err := f.Transcode(context.Background(), Media{Filename: "a.mov", MimeType: "video/quicktime"}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestScanDuration(t *testing.T) {
	out := "Input #0, mov\n  Duration: 00:01:02.50, start: 0.000000, bitrate: 100 kb/s\n"
	assert.Equal(t, time.Minute+2*time.Second+500*time.Millisecond, scanDuration(strings.NewReader(out)))
}

func TestReportProgress(t *testing.T) {
	var total atomic.Int64
	total.Store(int64(10 * time.Second))

	var got []float64
	reportProgress(strings.NewReader("frame=1\nout_time_us=5000000\nout_time_us=20000000\nprogress=end\n"), &total, func(r float64) {
		got = append(got, r)
	})

	assert.Equal(t, []float64{0.5, 1}, got)
}

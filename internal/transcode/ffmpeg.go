package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var durationRe = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2})\.(\d{2})`)

// FFmpeg конвертирует видео внешним бинарником ffmpeg в H.264/AAC mp4.
type FFmpeg struct {
	log  *slog.Logger
	path string
}

func NewFFmpeg(log *slog.Logger, path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{log: log, path: path}
}

func (f *FFmpeg) Transcode(ctx context.Context, in Media, progress ProgressFunc) (Media, error) {
	const op = "transcode.FFmpeg.Transcode"

	if !NeedsConversion(in.MimeType) {
		return in, nil
	}

	bin, err := exec.LookPath(f.path)
	if err != nil {
		return in, fmt.Errorf("%s: %w", op, ErrUnsupported)
	}

	dir, err := os.MkdirTemp("", "vault-transcode-*")
	if err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input"+filepath.Ext(in.Filename))
	dst := filepath.Join(dir, "output.mp4")

	if err := os.WriteFile(src, in.Data, 0o600); err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}

	if err := cmd.Start(); err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}

	var total atomic.Int64
	var tail bytes.Buffer
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		total.Store(int64(scanDuration(io.TeeReader(stderr, &limitedWriter{buf: &tail, max: 4096}))))
	}()

	reportProgress(stdout, &total, progress)
	<-stderrDone

	if err := cmd.Wait(); err != nil {
		return in, fmt.Errorf("%s: ffmpeg: %w: %s", op, err, strings.TrimSpace(tail.String()))
	}

	out, err := os.ReadFile(dst)
	if err != nil {
		return in, fmt.Errorf("%s: %w", op, err)
	}

	if progress != nil {
		progress(1)
	}

	f.log.Debug("video transcoded",
		slog.String("op", op),
		slog.Int("input_size", len(in.Data)),
		slog.Int("output_size", len(out)),
	)

	return Media{
		Filename: strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename)) + ".mp4",
		MimeType: "video/mp4",
		Data:     out,
	}, nil
}

// scanDuration читает вывод ffmpeg до конца и возвращает длительность входа.
func scanDuration(r io.Reader) time.Duration {
	var d time.Duration
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if d > 0 {
			continue
		}
		if m := durationRe.FindStringSubmatch(sc.Text()); m != nil {
			h, _ := strconv.Atoi(m[1])
			mi, _ := strconv.Atoi(m[2])
			s, _ := strconv.Atoi(m[3])
			cs, _ := strconv.Atoi(m[4])
			d = time.Duration(h)*time.Hour +
				time.Duration(mi)*time.Minute +
				time.Duration(s)*time.Second +
				time.Duration(cs)*10*time.Millisecond
		}
	}
	return d
}

// reportProgress разбирает key=value поток -progress.
func reportProgress(r io.Reader, total *atomic.Int64, progress ProgressFunc) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok || key != "out_time_us" || progress == nil {
			continue
		}

		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}

		t := total.Load()
		if t <= 0 {
			continue
		}

		ratio := float64(time.Duration(us)*time.Microsecond) / float64(t)
		if ratio > 1 {
			ratio = 1
		}
		progress(ratio)
	}
}

type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

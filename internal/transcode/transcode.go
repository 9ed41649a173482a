// Package transcode конвертирует загружаемое видео в mp4. Конвертация
// необязательна: при любой проблеме используется исходный файл.
package transcode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"design_vault/internal/lib/logger/sl"
)

var ErrUnsupported = errors.New("transcoding is not supported in this environment")

// ProgressFunc получает долю выполненной работы от 0 до 1.
type ProgressFunc func(ratio float64)

type Media struct {
	Filename string
	MimeType string
	Data     []byte
}

type Transcoder interface {
	Transcode(ctx context.Context, in Media, progress ProgressFunc) (Media, error)
}

// NeedsConversion сообщает, что видео не в mp4 и его стоит сконвертировать.
func NeedsConversion(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return strings.HasPrefix(mimeType, "video/") && mimeType != "video/mp4"
}

// Fallback ограничивает конвертацию по времени и никогда не возвращает
// ошибку: при таймауте, ErrUnsupported или сбое отдается исходный файл.
type Fallback struct {
	log     *slog.Logger
	inner   Transcoder
	timeout time.Duration
}

func WithFallback(log *slog.Logger, inner Transcoder, timeout time.Duration) *Fallback {
	return &Fallback{log: log, inner: inner, timeout: timeout}
}

func (f *Fallback) Transcode(ctx context.Context, in Media, progress ProgressFunc) (Media, error) {
	const op = "transcode.Fallback.Transcode"

	log := f.log.With(
		slog.String("op", op),
		slog.String("filename", in.Filename),
		slog.String("mime_type", in.MimeType),
	)

	if f.inner == nil {
		return in, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// после отказа от результата прогресс больше не пробрасывается
	var abandoned atomic.Bool
	guarded := func(ratio float64) {
		if progress != nil && !abandoned.Load() {
			progress(ratio)
		}
	}

	type result struct {
		out Media
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := f.inner.Transcode(ctx, in, guarded)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, ErrUnsupported) {
				log.Info("transcoding unsupported, using original")
			} else {
				log.Warn("transcoding failed, using original", sl.Err(r.err))
			}
			return in, nil
		}
		return r.out, nil
	case <-ctx.Done():
		abandoned.Store(true)
		log.Warn("transcoding abandoned, using original", slog.Duration("timeout", f.timeout))
		return in, nil
	}
}

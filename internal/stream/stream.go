// Package stream serves remote objects over HTTP with byte-range support,
// piping bytes from the remote store into the response without ever holding
// a whole file in memory.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/remote"
)

var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digiscribe_downloads_total",
		Help: "Streaming proxy requests by outcome.",
	}, []string{"status"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digiscribe_download_bytes_total",
		Help: "Total bytes served by the streaming proxy.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digiscribe_active_downloads",
		Help: "In-progress streaming proxy requests.",
	})
)

// ErrUnsatisfiable means the requested range starts at or beyond EOF, or is
// inverted.
var ErrUnsatisfiable = errors.New("requested range not satisfiable")

// ByteRange is an inclusive byte span within an object.
type ByteRange struct {
	Start, End int64
}

// Len returns the number of bytes the range covers.
func (r ByteRange) Len() int64 { return r.End - r.Start + 1 }

// ParseRange interprets a Range header against an object of the given size.
// The "bytes=start-end" form (end optional) and the suffix form "bytes=-n"
// (the final n bytes) are recognized; an empty or malformed header returns
// nil, meaning "serve the whole object" per RFC 9110's instruction to ignore
// unintelligible ranges. Open-ended ranges run to EOF, an explicit end is
// clamped to the last byte, and an oversized suffix covers the whole object.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}

	// Suffix form: media players seek tails with "bytes=-n".
	if strings.TrimSpace(startStr) == "" {
		n, err := strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
		if err != nil || n <= 0 || size <= 0 {
			return nil, nil
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}
	if start >= size {
		return nil, ErrUnsatisfiable
	}

	end := size - 1
	if s := strings.TrimSpace(endStr); s != "" {
		e, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, nil
		}
		if e < start {
			return nil, ErrUnsatisfiable
		}
		if e < end {
			end = e
		}
	}
	return &ByteRange{Start: start, End: end}, nil
}

// CleanPath normalizes a client-supplied object path: percent-decodes it,
// collapses dot segments and strips leading traversal. This is the proxy's
// own traversal defense; it does not rely on upload-time sanitization because
// the request path comes straight from the client.
func CleanPath(requested string) string {
	if dec, err := url.PathUnescape(requested); err == nil {
		requested = dec
	}
	cleaned := path.Clean("/" + requested)
	return strings.TrimPrefix(cleaned, "/")
}

// mimeTypes maps file extensions to content types. The stored record's type
// field is not trusted here: it may be stale or absent for legacy entries.
var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain; charset=utf-8",
	".rtf":  "application/rtf",
	".zip":  "application/zip",
}

// MIMEType returns the content type for a file name by extension.
func MIMEType(name string) string {
	if mt, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Service streams remote objects into HTTP responses.
type Service struct {
	remote remote.Client
	log    zerolog.Logger
}

// NewService creates a streaming proxy over the remote store.
func NewService(rc remote.Client, log zerolog.Logger) *Service {
	return &Service{remote: rc, log: log.With().Str("component", "stream").Logger()}
}

// Serve writes the object at remotePath to w, honoring rangeHeader. With
// download set the Content-Disposition forces a save dialog instead of
// in-browser preview. A remote.ErrNotFound return means nothing was written
// and the caller should answer 404; any other return is handled here.
func (s *Service) Serve(ctx context.Context, w http.ResponseWriter, remotePath, rangeHeader string, download bool) error {
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	size, err := s.remote.Size(ctx, remotePath)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
		} else {
			downloadsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	rng, err := ParseRange(rangeHeader, size)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		downloadsTotal.WithLabelValues("unsatisfiable").Inc()
		return nil
	}

	name := path.Base(remotePath)
	w.Header().Set("Content-Type", MIMEType(name))
	w.Header().Set("Accept-Ranges", "bytes")
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))

	opts := remote.StreamOptions{}
	if rng != nil {
		opts.StartAt = rng.Start
		opts.MaxBytes = rng.Len()
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Len(), 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
	}

	// Headers are flushed from here on: a transfer failure can only be
	// logged, never turned into a second status line.
	written, err := s.remote.StreamDownload(ctx, remotePath, w, opts)
	downloadBytesTotal.Add(float64(written))
	if err != nil {
		s.log.Error().Str("path", remotePath).Int64("written", written).Err(err).Msg("stream aborted mid-transfer")
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}

	downloadsTotal.WithLabelValues("success").Inc()
	return nil
}

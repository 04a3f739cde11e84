package stream

import (
	"encoding/binary"
	"io"
	"net/http"

	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/sirupsen/logrus"
)

// openEnded is the RIFF size used for a stream with no known length.
const openEnded = 0xFFFFFFFF

// HTTPHandler serves the output as a chunked, open-ended WAV stream.
type HTTPHandler struct {
	broadcaster *Broadcaster
	log         *logrus.Entry
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster) *HTTPHandler {
	return &HTTPHandler{
		broadcaster: b,
		log:         logrus.WithField("component", "http-stream"),
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := writeWAVHeader(w, audio.OutputSampleRate, audio.Channels); err != nil {
		return
	}
	flusher.Flush()

	h.log.WithField("listeners", h.broadcaster.ListenerCount()).Info("HTTP listener connected")
	defer h.log.Info("HTTP listener disconnected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.done:
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeWAVHeader writes a 16-bit PCM WAV header whose RIFF and data sizes
// are left open so players read until the connection ends.
func writeWAVHeader(w io.Writer, sampleRate, channels int) error {
	const bitDepth = 16
	blockAlign := channels * bitDepth / 8

	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], openEnded)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // linear PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], openEnded)

	_, err := w.Write(hdr)
	return err
}

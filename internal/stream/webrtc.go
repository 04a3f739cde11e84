package stream

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/earshot/internal/audio"
	"github.com/satindergrewal/earshot/internal/recorder"
	"github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusBitrate = 128000
	// maxOpusFrame is the longest Opus frame (120ms) in samples per channel at 48kHz.
	maxOpusFrame = 5760
)

// CaptureSink receives decoded microphone audio.
type CaptureSink interface {
	WriteCapture(rate, channels int, samples []int16) error
}

// peers tracks live peer connections.
type peers struct {
	mu   sync.Mutex
	list []*webrtc.PeerConnection
}

func (p *peers) add(pc *webrtc.PeerConnection) {
	p.mu.Lock()
	p.list = append(p.list, pc)
	p.mu.Unlock()
}

func (p *peers) remove(pc *webrtc.PeerConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, q := range p.list {
		if q == pc {
			p.list = append(p.list[:i], p.list[i+1:]...)
			return
		}
	}
}

func (p *peers) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.list)
}

// WebRTCHandler serves WebRTC SDP negotiation for low-latency Opus listening.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	peers       peers
	log         *logrus.Entry
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		log:         logrus.WithField("component", "webrtc"),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	return h.peers.count()
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var audioTrack *webrtc.TrackLocalStaticSample

	pc, ok := negotiate(w, r, func(pc *webrtc.PeerConnection) error {
		var err error
		audioTrack, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio",
			"earshot",
		)
		if err != nil {
			return err
		}
		_, err = pc.AddTrack(audioTrack)
		return err
	})
	if !ok {
		return
	}

	h.peers.add(pc)
	h.log.WithField("peers", h.PeerCount()).Info("WebRTC peer connected")

	// Stream audio in background
	go h.streamToPeer(audioTrack)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if closedState(s) {
			h.peers.remove(pc)
			pc.Close()
			h.log.WithField("peers", h.PeerCount()).Info("WebRTC peer disconnected")
		}
	})

	writeAnswer(w, pc)
}

func (h *WebRTCHandler) streamToPeer(track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.OutputSampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.WithError(err).Error("Opus encoder init failed")
		return
	}
	enc.SetBitrate(opusBitrate)

	opusBuf := make([]byte, 4000)

	for {
		select {
		case <-listener.done:
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				h.log.WithError(err).Warn("Opus encode failed")
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				return
			}
		}
	}
}

// IngestHandler receives a browser microphone over WebRTC and pushes the
// decoded audio into a CaptureSink.
type IngestHandler struct {
	sink  CaptureSink
	peers peers
	log   *logrus.Entry
}

// NewIngestHandler creates a microphone ingest handler.
func NewIngestHandler(sink CaptureSink) *IngestHandler {
	return &IngestHandler{
		sink: sink,
		log:  logrus.WithField("component", "ingest"),
	}
}

// PeerCount returns the number of connected microphones.
func (h *IngestHandler) PeerCount() int {
	return h.peers.count()
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pc, ok := negotiate(w, r, func(pc *webrtc.PeerConnection) error {
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			if track.Kind() != webrtc.RTPCodecTypeAudio {
				return
			}
			h.consume(track)
		})
		_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		return err
	})
	if !ok {
		return
	}

	h.peers.add(pc)
	h.log.WithField("peers", h.PeerCount()).Info("Microphone connected")

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if closedState(s) {
			h.peers.remove(pc)
			pc.Close()
			h.log.Info("Microphone disconnected")
		}
	})

	writeAnswer(w, pc)
}

// consume decodes the remote Opus track until it ends. Audio that arrives
// while no capture is running is dropped.
func (h *IngestHandler) consume(track *webrtc.TrackRemote) {
	dec, err := opus.NewDecoder(audio.OutputSampleRate, audio.Channels)
	if err != nil {
		h.log.WithError(err).Error("Opus decoder init failed")
		return
	}
	pcm := make([]int16, maxOpusFrame*audio.Channels)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.WithError(err).Warn("Microphone track read failed")
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			h.log.WithError(err).Debug("Opus decode failed")
			continue
		}
		err = h.sink.WriteCapture(audio.OutputSampleRate, audio.Channels, pcm[:n*audio.Channels])
		if err != nil && !errors.Is(err, recorder.ErrNotRecording) {
			h.log.WithError(err).Warn("Capture write failed")
		}
	}
}

// negotiate answers an SDP offer. setup adds tracks or handlers to the new
// peer connection before the remote description is applied. On failure the
// error response is written and ok is false.
func negotiate(w http.ResponseWriter, r *http.Request, setup func(*webrtc.PeerConnection) error) (*webrtc.PeerConnection, bool) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return nil, false
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return nil, false
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return nil, false
	}

	if err := setup(pc); err != nil {
		pc.Close()
		http.Error(w, "configure peer connection failed", http.StatusInternalServerError)
		return nil, false
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return nil, false
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return nil, false
	}

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return nil, false
	}

	// Wait for ICE gathering to complete
	<-webrtc.GatheringCompletePromise(pc)
	return pc, true
}

func writeAnswer(w http.ResponseWriter, pc *webrtc.PeerConnection) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func closedState(s webrtc.PeerConnectionState) bool {
	return s == webrtc.PeerConnectionStateFailed ||
		s == webrtc.PeerConnectionStateClosed ||
		s == webrtc.PeerConnectionStateDisconnected
}

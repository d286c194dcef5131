package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/anime-shed/plant-inspector-go/internal/capture"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/internal/session"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/services"
)

// WebSocket timings
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 8 << 20
	outboundBuffer = 16
)

// Stream commands sent by the client as text messages
const (
	cmdStartCamera = "start_camera"
	cmdStopCamera  = "stop_camera"
	cmdStartScan   = "start_scan"
	cmdPauseScan   = "pause_scan"
	cmdToggleScan  = "toggle_scan"
	cmdDiagnose    = "diagnose"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type streamCommand struct {
	Type string `json:"type"`
}

type streamMessage struct {
	Type       string                  `json:"type"`
	State      string                  `json:"state,omitempty"`
	Generation uint64                  `json:"generation,omitempty"`
	FrameSeq   uint64                  `json:"frame_seq,omitempty"`
	Detections []models.Detection      `json:"detections,omitempty"`
	Summary    *models.ScanSummary     `json:"summary,omitempty"`
	OverlayPNG string                  `json:"overlay_png,omitempty"`
	Diagnosis  *models.DiagnosisResult `json:"diagnosis,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// streamConn is one WebSocket client of a session. Binary messages are
// encoded camera frames; text messages are JSON commands. Scan updates and
// command replies are written by a single goroutine.
type streamConn struct {
	conn    *websocket.Conn
	session *session.Session
	overlay bool
	timeout time.Duration

	out  chan streamMessage
	done chan struct{}
	once sync.Once
}

func (h *Handler) stream(c *gin.Context) {
	s := currentSession(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithSession(s.ID).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sc := &streamConn{
		conn:    conn,
		session: s,
		overlay: formBool(c.Query("overlay")),
		timeout: h.cfg.AnalysisTimeout,
		out:     make(chan streamMessage, outboundBuffer),
		done:    make(chan struct{}),
	}
	logger.WithSession(s.ID).Info("Stream client connected")

	updates, unsubscribe := s.Scheduler().Subscribe()
	go sc.writePump(updates)
	sc.readPump()

	unsubscribe()
	sc.close()
	s.Scheduler().StopCamera()
	logger.WithSession(s.ID).Info("Stream client disconnected")
}

func (sc *streamConn) close() {
	sc.once.Do(func() {
		close(sc.done)
		_ = sc.conn.Close()
	})
}

// send queues a reply without blocking the reader
func (sc *streamConn) send(msg streamMessage) {
	select {
	case sc.out <- msg:
	case <-sc.done:
	default:
		logger.WithSession(sc.session.ID).WithField("type", msg.Type).Warn("Dropping stream message, client too slow")
	}
}

func (sc *streamConn) readPump() {
	sc.conn.SetReadLimit(maxFrameBytes)
	_ = sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := sc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithSession(sc.session.ID).WithError(err).Warn("WebSocket read failed")
			}
			return
		}
		_ = sc.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch kind {
		case websocket.BinaryMessage:
			if _, err := sc.session.PushFrame(data); err != nil {
				sc.sendError(err)
			}
		case websocket.TextMessage:
			var cmd streamCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				sc.sendError(apperrors.NewValidationError("invalid command", err))
				continue
			}
			sc.handleCommand(cmd)
		}
	}
}

func (sc *streamConn) handleCommand(cmd streamCommand) {
	s := sc.session
	sched := s.Scheduler()
	s.Touch()

	var err error
	switch cmd.Type {
	case cmdStartCamera:
		err = sched.StartCamera(context.Background())
	case cmdStopCamera:
		sched.StopCamera()
	case cmdStartScan:
		err = sched.StartScan()
	case cmdPauseScan:
		sched.PauseScan()
	case cmdToggleScan:
		_, err = sched.ToggleScan()
	case cmdDiagnose:
		go sc.diagnose()
		return
	default:
		err = apperrors.NewValidationError("unknown command", nil).WithDetails(cmd.Type)
	}
	if err != nil {
		sc.sendError(err)
		return
	}
	sc.send(streamMessage{Type: "state", State: sched.State().String(), Generation: sched.Generation()})
}

func (sc *streamConn) diagnose() {
	ctx, cancel := context.WithTimeout(context.Background(), sc.timeout)
	defer cancel()

	result, err := sc.session.Diagnose(ctx)
	if err != nil {
		sc.sendError(err)
		return
	}
	sc.send(streamMessage{Type: "diagnosis", Generation: result.Generation, Diagnosis: result})
}

func (sc *streamConn) sendError(err error) {
	sc.send(streamMessage{Type: "error", Message: apperrors.UserMessage(err, "request failed")})
}

func (sc *streamConn) writePump(updates <-chan capture.ScanUpdate) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sc.close()
	}()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				_ = sc.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := sc.writeJSON(sc.detectionsMessage(u)); err != nil {
				return
			}
		case msg := <-sc.out:
			if err := sc.writeJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := sc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sc.done:
			return
		}
	}
}

func (sc *streamConn) detectionsMessage(u capture.ScanUpdate) streamMessage {
	summary := services.Summarize(u.Detections, u.FrameSize)
	msg := streamMessage{
		Type:       "detections",
		State:      u.State.String(),
		Generation: u.Generation,
		FrameSeq:   u.FrameSeq,
		Detections: u.Detections,
		Summary:    &summary,
	}
	// The overlay travels with its update so it always matches u.Detections
	if sc.overlay && u.Overlay != nil && len(u.Detections) > 0 {
		png, err := overlay.EncodeImage(u.Overlay)
		if err != nil {
			logger.WithSession(sc.session.ID).WithError(err).Warn("Failed to encode overlay")
		} else {
			msg.OverlayPNG = base64.StdEncoding.EncodeToString(png)
		}
	}
	return msg
}

func (sc *streamConn) writeJSON(msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return sc.write(websocket.TextMessage, data)
}

func (sc *streamConn) write(kind int, data []byte) error {
	_ = sc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sc.conn.WriteMessage(kind, data)
}

package server

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RyanBlaney/sonido-vox/logging"
)

// Control messages of the streaming endpoint
const (
	MessageEnd       = "END"
	MessageCancel    = "CANCEL"
	MessageCancelled = "CANCELLED"
)

const (
	wsWriteTimeout = 10 * time.Second
	// wsFrameOverhead allows for control words and base64 padding on top of
	// the encoded upload limit
	wsFrameOverhead = 1024
)

// handleVoiceStream accepts base64 text chunks (or raw binary frames) until
// END, then classifies the concatenated audio and replies once. CANCEL
// discards the buffered chunks. An invalid chunk is reported and the
// session continues.
func (s *Server) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r, "handleVoiceStream")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket upgrade failed", logging.Fields{"error": err})
		return
	}
	defer conn.Close()

	if s.config.MaxUploadBytes > 0 {
		conn.SetReadLimit(int64(base64.StdEncoding.EncodedLen(int(s.config.MaxUploadBytes))) + wsFrameOverhead)
	}

	session := &streamSession{conn: conn, logger: logger}

	query := r.URL.Query()
	key, present := query.Get(QueryAPIKey), query.Has(QueryAPIKey)
	if authErr := s.authenticate(key, present); authErr != nil {
		session.sendError(authErr.message)
		session.close()
		return
	}

	format := query.Get("format")
	if format == "" {
		format = "mp3"
	}

	var buf bytes.Buffer
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("WebSocket closed", logging.Fields{"error": err})
			}
			return
		}

		if kind == websocket.BinaryMessage {
			buf.Write(msg)
		} else {
			switch text := string(msg); text {
			case MessageEnd:
				s.finishStream(r, session, buf.Bytes(), format)
				return
			case MessageCancel:
				buf.Reset()
				session.sendText(MessageCancelled)
				continue
			default:
				chunk, err := base64.StdEncoding.DecodeString(text)
				if err != nil {
					session.sendError("Invalid base64 chunk")
					continue
				}
				buf.Write(chunk)
			}
		}

		if s.config.MaxUploadBytes > 0 && int64(buf.Len()) > s.config.MaxUploadBytes {
			session.sendError("Audio stream too large")
			session.close()
			return
		}
	}
}

func (s *Server) finishStream(r *http.Request, session *streamSession, audio []byte, format string) {
	defer session.close()

	res, err := s.analyzer.AnalyzeAudio(r.Context(), audio, format)
	if err != nil {
		_, message := statusFor(err)
		session.logger.Debug("Stream detection failed", logging.Fields{"error": err})
		session.sendError(message + ": " + err.Error())
		return
	}

	session.logger.Info("Voice stream classified", logging.Fields{
		"bytes":          len(audio),
		"classification": res.Classification,
		"confidence":     res.Confidence,
	})
	session.send(newVoiceResponse("", res))
}

// streamSession serializes writes to one connection
type streamSession struct {
	conn   *websocket.Conn
	logger logging.Logger
}

func (s *streamSession) send(v any) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug("WebSocket write failed", logging.Fields{"error": err})
	}
}

func (s *streamSession) sendText(text string) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		s.logger.Debug("WebSocket write failed", logging.Fields{"error": err})
	}
}

func (s *streamSession) sendError(message string) {
	s.send(ErrorResponse{Status: "error", Message: message})
}

func (s *streamSession) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

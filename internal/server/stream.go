package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/navigation"
	"github.com/odyssey-travel/odyssey/server/internal/lib/position"
	"github.com/odyssey-travel/odyssey/server/internal/services"
)

// Stream events
const (
	EventSnapshot      = "snapshot"
	EventFix           = "fix"
	EventLocationError = "location_error"
	EventCommand       = "command"
	EventCommandResult = "command_result"
	EventError         = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSMessage is the envelope of every stream frame in both directions
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSError is the payload of an error frame
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// streamConn serializes writes to one websocket connection
type streamConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *streamConn) send(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling message data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(WSMessage{Event: event, Data: raw})
}

func (c *streamConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *streamConn) sendError(code string, err error) error {
	return c.send(EventError, WSError{Code: code, Message: err.Error()})
}

// streamSession upgrades to a websocket carrying the session's events out and
// fixes, location errors and commands in
func (s *Server) streamSession(c echo.Context) error {
	sess, err := s.navigation.Get(c.Param("id"))
	if err != nil {
		return err
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := s.logger.With(zap.String("session_id", sess.ID))
	conn := &streamConn{ws: ws}
	events, unsubscribe := sess.Subscribe(services.DefaultSubscriberBuffer)
	defer unsubscribe()

	logger.Info("Stream client connected")

	if err := conn.send(EventSnapshot, sess.Snapshot()); err != nil {
		logger.Warn("Failed to send initial snapshot", zap.Error(err))
		return nil
	}

	done := make(chan struct{})
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		s.pumpEvents(conn, events, done, logger)
	}()

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Stream read failed", zap.Error(err))
			} else {
				logger.Info("Stream client disconnected")
			}
			break
		}
		if err := s.handleStreamMessage(conn, sess, msg); err != nil {
			logger.Debug("Rejected stream message", zap.String("event", msg.Event), zap.Error(err))
			if sendErr := conn.sendError(streamErrorCode(err), err); sendErr != nil {
				break
			}
		}
	}

	close(done)
	<-pumped
	return nil
}

func (s *Server) pumpEvents(conn *streamConn, events <-chan navigation.Event, done <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// session closed
				conn.mu.Lock()
				_ = conn.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				conn.mu.Unlock()
				return
			}
			if err := conn.send(string(ev.Kind), ev); err != nil {
				logger.Debug("Stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) handleStreamMessage(conn *streamConn, sess *services.Session, msg WSMessage) error {
	switch msg.Event {
	case EventFix:
		var req FixRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errInvalidPayload
		}
		fix, err := req.fix()
		if err != nil {
			return err
		}
		return sess.PushFix(fix)
	case EventLocationError:
		var req LocationErrorRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errInvalidPayload
		}
		if err := req.validate(); err != nil {
			return err
		}
		return sess.PushLocationError(position.Code(req.Code), req.Message)
	case EventCommand:
		var req CommandRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return errInvalidPayload
		}
		result, err := sess.Execute(req.Command)
		if err != nil {
			return err
		}
		return conn.send(EventCommandResult, result)
	case EventSnapshot:
		return conn.send(EventSnapshot, sess.Snapshot())
	default:
		return fmt.Errorf("%w: %q", errUnknownEvent, msg.Event)
	}
}

var (
	errInvalidPayload = errors.New("invalid message payload")
	errUnknownEvent   = errors.New("unknown event")
)

func streamErrorCode(err error) string {
	switch {
	case errors.Is(err, errInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, errUnknownEvent):
		return "unknown_event"
	}
	return fmt.Sprintf("http_%d", httpError(err).Code)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/pvbridge/internal/eventbus"
	"github.com/matthewbaird/pvbridge/internal/forms"
	"github.com/matthewbaird/pvbridge/internal/uistate"
)

const (
	// outboxSize bounds the pushed events queued for one connection.
	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

// serveWS upgrades to WebSocket and runs the message loop. State changes and
// notifications are pushed to the client as they happen.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error(err, "Websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := s.sessions.Create()
	defer s.sessions.Remove(sess.ID)
	log := s.logger.WithValues("session", sess.ID)
	log.V(1).Info("Session opened")

	if s.Bus != nil {
		outbox := make(chan uistate.Event, outboxSize)
		s.Bus.Subscribe(sess.ID, eventbus.HandlerFunc(func(_ context.Context, evt uistate.Event) error {
			select {
			case outbox <- evt:
				return nil
			default:
				return fmt.Errorf("session %s outbox full, dropping %s", sess.ID, evt.Name)
			}
		}))
		defer s.Bus.Unsubscribe(sess.ID)
		go s.push(ctx, conn, outbox)
	}

	var advanced bool
	if err := s.Loop.Do(ctx, func() error {
		advanced, _ = s.State.Get(uistate.UIAdvanced).(bool)
		return nil
	}); err != nil {
		log.Error(err, "Reading session state failed")
		return
	}
	s.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: sess.ID, Advanced: advanced},
	})

	for {
		var msg ClientMessage
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.V(1).Info("Connection closed", "status", websocket.CloseStatus(err))
			}
			return
		}
		sess.Touch()

		switch msg.Type {
		case "get":
			s.handleGet(ctx, conn, msg)
		case "state":
			s.reply(ctx, conn, msg, "state", s.snapshotState)
		case "set":
			s.handleSet(ctx, conn, msg)
		case "commit":
			s.handleCommit(ctx, conn, msg)
		case "reset":
			s.handleReset(ctx, conn, msg)
		case "delete":
			s.handleDelete(ctx, conn, msg)
		case "refresh":
			s.reply(ctx, conn, msg, "state", func() (any, error) {
				if err := s.Controller.Trigger(uistate.RefreshActiveProxies); err != nil {
					return nil, err
				}
				return s.snapshotState()
			})
		case "advanced":
			s.handleAdvanced(ctx, conn, msg)
		case "definition":
			s.handleDefinition(ctx, conn, msg)
		case "ping":
			s.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			s.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

// push forwards bus events to the client until ctx is done.
func (s *Server) push(ctx context.Context, conn *websocket.Conn, outbox <-chan uistate.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-outbox:
			msg := ServerMessage{Type: "notify", Data: NotifyData{Name: evt.Name}}
			if evt.Kind == uistate.StateEvent {
				msg = ServerMessage{Type: "state_change", Data: StateChangeData{Name: evt.Name, Value: evt.Value}}
			}
			s.send(ctx, conn, msg)
		}
	}
}

func (s *Server) handleGet(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data ProxyData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "proxy", func() (any, error) {
		return s.snapshotProxy(data.ProxyID)
	})
}

func (s *Server) handleSet(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data SetData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "proxy", func() (any, error) {
		if err := s.Forms.Set(data.ProxyID, data.Name, data.Value); err != nil {
			return nil, err
		}
		if data.Preview {
			if err := s.Forms.Update(data.ProxyID, data.Name); err != nil {
				return nil, err
			}
		}
		return s.snapshotProxy(data.ProxyID)
	})
}

func (s *Server) handleCommit(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data ProxyData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "committed", func() (any, error) {
		changes, err := s.Forms.Commit(data.ProxyID)
		if err != nil {
			return nil, err
		}
		snap, err := s.snapshotProxy(data.ProxyID)
		if err != nil {
			return nil, err
		}
		return CommittedData{ProxyID: data.ProxyID, Changes: changes, Proxy: snap}, nil
	})
}

func (s *Server) handleReset(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data ProxyData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "proxy", func() (any, error) {
		if err := s.Forms.Reset(data.ProxyID); err != nil {
			return nil, err
		}
		return s.snapshotProxy(data.ProxyID)
	})
}

func (s *Server) handleDelete(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data DeleteData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	if data.NativeID == "" {
		s.sendError(ctx, conn, msg.ID, "invalid_data", "native_id is required")
		return
	}
	s.reply(ctx, conn, msg, "state", func() (any, error) {
		if err := s.Bridge.OnDelete(data.NativeID); err != nil {
			return nil, err
		}
		return s.snapshotState()
	})
}

func (s *Server) handleAdvanced(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data AdvancedData
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "state", func() (any, error) {
		s.State.Set(uistate.UIAdvanced, data.Enabled)
		return s.snapshotState()
	})
}

func (s *Server) handleDefinition(ctx context.Context, conn *websocket.Conn, msg ClientMessage) {
	var data DefinitionRequest
	if !s.decode(ctx, conn, msg, &data) {
		return
	}
	s.reply(ctx, conn, msg, "definition", func() (any, error) {
		return s.definition(data.Type)
	})
}

func (s *Server) snapshotState() (any, error) {
	return s.State.Snapshot(), nil
}

func (s *Server) snapshotProxy(id forms.ID) (forms.Snapshot, error) {
	p := s.Forms.Get(id)
	if p == nil {
		return forms.Snapshot{}, fmt.Errorf("%w: %d", forms.ErrNotFound, id)
	}
	return p.Snapshot(), nil
}

// reply runs fn on the loop and sends its result as a typ message, or the
// error it returned.
func (s *Server) reply(ctx context.Context, conn *websocket.Conn, msg ClientMessage, typ string, fn func() (any, error)) {
	var out any
	err := s.Loop.Do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		code, status := errorCode(err)
		if status == http.StatusInternalServerError {
			s.logger.Error(err, "Message failed", "type", msg.Type)
		}
		s.sendError(ctx, conn, msg.ID, code, err.Error())
		return
	}
	s.send(ctx, conn, ServerMessage{Type: typ, RequestID: msg.ID, Data: out})
}

func (s *Server) decode(ctx context.Context, conn *websocket.Conn, msg ClientMessage, v any) bool {
	if len(msg.Data) == 0 {
		s.sendError(ctx, conn, msg.ID, "invalid_data", fmt.Sprintf("missing %s data", msg.Type))
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		s.sendError(ctx, conn, msg.ID, "invalid_data", fmt.Sprintf("invalid %s data", msg.Type))
		return false
	}
	return true
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		s.logger.V(1).Info("Websocket write failed", "type", msg.Type, "err", err.Error())
	}
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	s.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}

package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	natsadapter "github.com/samirrijal/geowire/internal/adapters/nats"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to layers.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Layer  string `json:"layer"`  // "" = all layers
}

// wsEvent is a feature event as relayed to WebSocket clients, with the
// geometry rendered as GeoJSON.
type wsEvent struct {
	Kind       domain.EventKind `json:"kind"`
	FeatureID  string           `json:"feature_id"`
	Layer      string           `json:"layer"`
	Geometry   json.RawMessage  `json:"geometry,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func toWSEvent(data []byte) (*wsEvent, error) {
	ev, err := natsadapter.DecodeEvent(data)
	if err != nil {
		return nil, err
	}
	out := &wsEvent{
		Kind:       ev.Kind,
		FeatureID:  ev.FeatureID,
		Layer:      ev.Layer,
		OccurredAt: ev.OccurredAt,
	}
	if len(ev.Geometry) > 0 {
		g, err := ewkb.Decode(ev.Geometry)
		if err != nil {
			return nil, err
		}
		if out.Geometry, err = (geojson.Codec{}).Marshal(g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WebSocketHandler returns a handler that relays feature events from NATS
// to connected clients. Clients start subscribed to every layer and send
// {"action":"subscribe","layer":"roads"} to narrow or widen that.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote", remoteAddr)
		if nc == nil {
			log.Warn("ws client rejected, nats not configured")
			return
		}
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			ev, err := toWSEvent(msg.Data)
			if err != nil {
				log.Warn("ws dropping undecodable event", "subject", msg.Subject, "error", err)
				return
			}
			_ = writeJSON(ev)
		}

		defaultSubject := natsadapter.LayerSubject("")
		sub, err := nc.Subscribe(defaultSubject, relay)
		if err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[defaultSubject] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Layer != "" && !domain.ValidLayer(m.Layer) {
				_ = writeJSON(map[string]string{"error": "invalid layer: " + m.Layer})
				continue
			}
			subject := natsadapter.LayerSubject(m.Layer)

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}

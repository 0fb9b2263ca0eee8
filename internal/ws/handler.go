package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/thanhtam3704/joynet/internal/domain"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// MakeHandler returns the HTTP handler for the /ws endpoint. The handshake is
// authenticated before the upgrade; an authenticated connection is registered
// with the hub, marked present, and then serves the inbound event loop until
// the transport drops.
func MakeHandler(
	hub *Hub,
	auth *Authenticator,
	presence *PresenceTracker,
	calls *CallManager,
	participants domain.ParticipantRepository,
	allowedOrigins []string,
	log *slog.Logger,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		user, err := auth.Authenticate(r.Context(), r)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.Msg, authErr.Status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(user, conn)
		first := hub.Register(client)
		presence.HandleConnect(user.ID, first)
		log.Info("ws connected", "user_id", user.ID, "conn_id", client.ID)

		defer func() {
			uid, last := hub.Unregister(client.ID)
			if last {
				presence.HandleDisconnect(uid)
			}
			log.Info("ws disconnected", "user_id", user.ID, "conn_id", client.ID)
		}()

		ctx := r.Context()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var ev InboundEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Warn("ws malformed event", "user_id", user.ID, "err", err)
				continue
			}

			switch ev.Type {

			case EvtJoinConversation:
				if ev.ConversationID == 0 {
					continue
				}
				ok, err := participants.IsParticipant(ctx, ev.ConversationID, user.ID)
				if err != nil || !ok {
					client.Send(Event{Type: EvtError, Data: map[string]any{
						"message": "not allowed for this conversation",
					}})
					continue
				}
				hub.Join(client.ID, ConversationRoom(ev.ConversationID))

			case EvtLeaveConversation:
				if ev.ConversationID == 0 {
					continue
				}
				hub.Leave(client.ID, ConversationRoom(ev.ConversationID))

			case EvtTypingStart:
				if ev.ConversationID == 0 {
					continue
				}
				hub.BroadcastToRoomExcept(ConversationRoom(ev.ConversationID), client.ID, Event{
					Type: EvtUserTyping,
					Data: map[string]any{
						"conversation_id": ev.ConversationID,
						"user_id":         user.ID,
						"user_name":       user.DisplayName,
					},
				})

			case EvtTypingStop:
				if ev.ConversationID == 0 {
					continue
				}
				hub.BroadcastToRoomExcept(ConversationRoom(ev.ConversationID), client.ID, Event{
					Type: EvtUserStopTyping,
					Data: map[string]any{
						"conversation_id": ev.ConversationID,
						"user_id":         user.ID,
					},
				})

			case EvtUserActivity:
				presence.Touch(user.ID)

			case EvtCallStart:
				if ev.ConversationID == 0 || len(ev.Participants) == 0 {
					client.Send(Event{Type: EvtError, Data: map[string]any{
						"message": "call start requires conversation_id and participants",
					}})
					continue
				}
				if err := calls.Start(client, ev.ConversationID, ev.Participants, ev.IsGroupCall); err != nil {
					client.Send(Event{Type: EvtError, Data: map[string]any{
						"message": err.Error(),
					}})
				}

			case EvtCallAccept:
				calls.Accept(client, ev.ConversationID)

			case EvtCallJoin:
				calls.Join(client, ev.ConversationID)

			case EvtCallReject:
				calls.Reject(ctx, client, ev.ConversationID)

			case EvtCallCancel:
				calls.Cancel(ctx, client, ev.ConversationID)

			case EvtCallEnd:
				calls.End(ctx, client, ev.ConversationID, ev.Duration, ev.CreateSystemMessage)

			case EvtCallToggleMedia:
				calls.ToggleMedia(client, ev.ConversationID, ev.MediaType, ev.Enabled)

			case EvtCallOffer, EvtCallAnswer, EvtCallICE:
				if ev.To == 0 || ev.ConversationID == 0 {
					client.Send(Event{Type: EvtError, Data: map[string]any{
						"message": "call signaling requires to and conversation_id",
					}})
					continue
				}
				calls.Relay(client, ev.Type, ev.To, ev.ConversationID, ev.Payload)

			default:
				log.Warn("ws unknown event type", "type", ev.Type, "user_id", user.ID)
			}
		}
	}
}

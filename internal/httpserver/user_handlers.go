package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thanhtam3704/joynet/internal/domain"
)

type onlineUserResponse struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// makeOnlineUsersHandler reports who is online. The durable flag is the
// source here; the presence tracker keeps it in sync with the live registry,
// including the offline grace window.
func makeOnlineUsersHandler(users domain.UserRepository, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		online, err := users.ListOnline(r.Context())
		if err != nil {
			log.Error("online users: list failed", "err", err)
			http.Error(w, "failed to list online users", http.StatusInternalServerError)
			return
		}

		out := make([]onlineUserResponse, 0, len(online))
		for _, u := range online {
			out = append(out, onlineUserResponse{
				ID:          u.ID,
				Username:    u.Username,
				DisplayName: u.DisplayName,
				AvatarURL:   u.AvatarURL,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"count": len(out),
			"users": out,
		}); err != nil {
			log.Error("online users: encode failed", "err", err)
		}
	}
}

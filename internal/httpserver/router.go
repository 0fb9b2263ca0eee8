package httpserver

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/thanhtam3704/joynet/internal/config"
	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/security"
	"github.com/thanhtam3704/joynet/internal/service"
	"github.com/thanhtam3704/joynet/internal/store/postgres"
	"github.com/thanhtam3704/joynet/internal/store/sqlite"
	"github.com/thanhtam3704/joynet/internal/ws"
)

type repositories struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	participants  domain.ParticipantRepository
}

func buildRepositories(cfg *config.Config, db *sql.DB) repositories {
	if cfg.DatabaseDriver == "sqlite" {
		return repositories{
			users:         sqlite.NewUserRepo(db),
			conversations: sqlite.NewConversationRepo(db),
			messages:      sqlite.NewMessageRepo(db),
			participants:  sqlite.NewParticipantRepo(db),
		}
	}
	return repositories{
		users:         postgres.NewUserRepo(db),
		conversations: postgres.NewConversationRepo(db),
		messages:      postgres.NewMessageRepo(db),
		participants:  postgres.NewParticipantRepo(db),
	}
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	encryptor *security.Encryptor,
	log *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	repos := buildRepositories(cfg, db)

	msgSvc := service.NewMessageService(
		repos.conversations,
		repos.participants,
		repos.messages,
		repos.users,
		encryptor,
		cfg.MaxMessagesPerConversation,
	)

	clock := ws.NewClock()
	auth := ws.NewAuthenticator(tokenSvc, repos.users)
	presence := ws.NewPresenceTracker(hub, repos.users, clock, cfg.PresenceOfflineGrace, log)
	calls := ws.NewCallManager(hub, msgSvc, clock, cfg.CallRingTimeout, log)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"JoyNet Realtime API","version":"1.0.0"}`))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/users/online", makeOnlineUsersHandler(repos.users, log))

	r.Get("/ws", ws.MakeHandler(hub, auth, presence, calls, repos.participants, cfg.CORSOrigins, log))

	return r
}

// Package httpapi HTTP-интерфейс движка. Аутентификация внешняя: актор приходит в заголовках.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/clock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
	"github.com/Freeeeeet/tutoring_scheduler/internal/meeting"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

const requestTimeout = 30 * time.Second

// ChatReader чтение чатов и их сообщений
type ChatReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.ChatMessage, error)
}

// Deps зависимости API
type Deps struct {
	Requests  *service.RequestService
	Slots     *service.SlotService
	Templates *service.RecurringSlotService
	Proposals *service.ProposalService
	Contacts  *service.ContactService
	Chats     ChatReader
	Meetings  *meeting.Issuer
	Clock     clock.Clock
	Policy    model.Policy
	Logger    *zap.Logger
}

type Handler struct {
	requests  *service.RequestService
	slots     *service.SlotService
	templates *service.RecurringSlotService
	proposals *service.ProposalService
	contacts  *service.ContactService
	chats     ChatReader
	meetings  *meeting.Issuer
	clock     clock.Clock
	policy    model.Policy
	logger    *zap.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		requests:  deps.Requests,
		slots:     deps.Slots,
		templates: deps.Templates,
		proposals: deps.Proposals,
		contacts:  deps.Contacts,
		chats:     deps.Chats,
		meetings:  deps.Meetings,
		clock:     deps.Clock,
		policy:    deps.Policy,
		logger:    deps.Logger,
	}
}

// Routes собирает роутер API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(actorMiddleware)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Get("/mine", h.ListMyRequests)
			r.Get("/open", h.ListOpenRequests)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/accept", h.AcceptRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
			r.Post("/{id}/extend", h.ExtendRequest)
		})

		r.Route("/slots", func(r chi.Router) {
			r.Post("/", h.CreateSlot)
			r.Get("/", h.ListAvailableSlots)
			r.Get("/mine", h.ListMySlots)
			r.Get("/{id}", h.GetSlot)
			r.Delete("/{id}", h.DeleteSlot)
			r.Post("/{id}/book", h.BookSlot)
			r.Post("/{id}/complete", h.CompleteSlot)
			r.Post("/{id}/cancel", h.CancelSlot)
			r.Post("/{id}/join", h.JoinInterview)
		})

		r.Route("/slot-templates", func(r chi.Router) {
			r.Post("/", h.CreateTemplate)
			r.Get("/", h.ListTemplates)
			r.Post("/{id}/deactivate", h.DeactivateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/messages", h.ListChatMessages)
			r.Post("/proposals", h.Propose)
			r.Get("/proposals", h.ListChatProposals)
		})

		r.Route("/proposals/{id}", func(r chi.Router) {
			r.Get("/", h.GetProposal)
			r.Post("/accept", h.AcceptProposal)
			r.Post("/reject", h.RejectProposal)
			r.Post("/counter", h.CounterPropose)
			r.Post("/cancel", h.CancelProposal)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/mine", h.ListMySessions)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/cancel", h.CancelSession)
			r.Post("/{id}/complete", h.CompleteSession)
			r.Post("/{id}/no-show", h.MarkNoShow)
			r.Post("/{id}/review", h.SubmitReview)
			r.Post("/{id}/join", h.JoinSession)
		})

		r.Route("/contacts/me", func(r chi.Router) {
			r.Get("/", h.GetMyContact)
			r.Put("/", h.RegisterContact)
			r.Put("/muted", h.SetMuted)
		})
	})

	return r
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.clock.Now(),
	})
}

// actor достаёт актора; маршруты /v1 всегда проходят через actorMiddleware
func actor(r *http.Request) model.Actor {
	a, _ := ActorFromContext(r.Context())
	return a
}

// pathID разбирает UUID из параметра пути
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errs.Validation("invalid " + name)
	}
	return id, nil
}

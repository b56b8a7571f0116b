package http

import (
	"net/http"
	"time"

	httpmw "github.com/giglink/chat-service/internal/transport/http/middleware"
	"github.com/giglink/chat-service/internal/transport/ws"
	"github.com/giglink/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, stream *StreamHandler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	// WS endpoint: auth через query-параметры (браузерный WebSocket
	// не умеет заголовки)
	r.Get("/ws/conversations/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware)

		// stream — без Timeout: соединение живёт до disconnect
		pr.Get("/conversations/{id}/stream", stream.HandleStream)

		pr.Group(func(rr chi.Router) {
			rr.Use(middlewareChi.Timeout(30 * time.Second))

			rr.Route("/conversations", func(cv chi.Router) {
				cv.Post("/", h.StartConversation)
				cv.Get("/", h.ListConversations)

				cv.Route("/{id}", func(c chi.Router) {
					c.Get("/", h.GetConversation)
					c.Get("/messages", h.GetHistory)
					c.Post("/messages", h.SendMessage)
					c.Post("/typing", h.PostTyping)
					c.Get("/typing", h.GetTyping)
				})
			})

			rr.Put("/messages/{id}/read", h.MarkMessageRead)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

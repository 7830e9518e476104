package handlers

import (
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
)

// Routes holds everything needed to mount the HTTP surface. Nil handlers are
// skipped, so tests can mount a subset.
type Routes struct {
	JWTSecret         string
	AllowedOrigins    []string
	PlatformRateLimit int

	Users   middleware.UserLoader
	Clients middleware.ClientAuthenticator

	Messages      *MessageHandler
	Conversations *ConversationHandler
	Platform      *PlatformHandler
	Admin         *AdminHandler
	Media         *MediaHandler
	Health        *HealthHandler
	WebSocket     *WebSocketHandler
	Metrics       fiber.Handler
}

func (r Routes) Register(app *fiber.App) {
	api := app.Group("/api", middleware.OriginAllowed(r.AllowedOrigins))

	// Platform routes first: the protected group below applies to every /api path.
	if r.Platform != nil {
		rateLimit := r.PlatformRateLimit
		if rateLimit < 1 {
			rateLimit = 120
		}
		platform := api.Group("/platform",
			middleware.PlatformAuth(r.Clients),
			limiter.New(limiter.Config{
				Max:          rateLimit,
				Expiration:   time.Minute,
				KeyGenerator: middleware.PlatformClientKey,
			}),
		)
		platform.Post("/messages/send-to-phone", r.Platform.SendToPhone)
		platform.Post("/conversations/:id/messages", r.Platform.SendToConversation)
	}

	protected := api.Group("/", middleware.AuthRequired(r.JWTSecret), middleware.LoadUser(r.Users))
	if r.Messages != nil {
		protected.Post("/messages/send-to-phone", r.Messages.SendToPhone)
		protected.Get("/messages/:id", r.Messages.GetMessage)
		protected.Post("/messages/:id/read", r.Messages.MarkRead)
		protected.Post("/messages/:id/delivered", r.Messages.MarkDelivered)
		protected.Delete("/messages/:id", r.Messages.DeleteMessage)
		protected.Get("/messages/:id/receipts", r.Messages.Receipts)
		protected.Post("/conversations/:id/messages", r.Messages.SendToConversation)
	}
	if r.Media != nil {
		protected.Get("/messages/:id/attachments", r.Media.GetAttachments)
	}
	if r.Conversations != nil {
		protected.Get("/conversations/with/:user_id", r.Conversations.WithUser)
		protected.Get("/conversations/:id", r.Conversations.GetConversation)
	}
	if r.Admin != nil {
		admin := protected.Group("/admin", middleware.RequireAdmin())
		admin.Post("/conversations/:id/system-messages", r.Admin.SendSystemMessage)
	}

	if r.WebSocket != nil {
		app.Use(
			"/ws",
			middleware.OriginAllowed(r.AllowedOrigins),
			middleware.AuthRequired(r.JWTSecret),
			middleware.LoadUser(r.Users),
			func(c *fiber.Ctx) error {
				if websocket.IsWebSocketUpgrade(c) {
					return c.Next()
				}
				return fiber.ErrUpgradeRequired
			},
		)
		app.Get("/ws", websocket.New(r.WebSocket.HandleWebSocket))
	}

	if r.Health != nil {
		app.Get("/health", r.Health.Health)
	}
	if r.Metrics != nil {
		app.Get("/metrics", r.Metrics)
	}
}

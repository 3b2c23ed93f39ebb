package handler

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/resolver"
	"github.com/fraglink-io/fraglink/internal/http/clientinfo"
	"github.com/fraglink-io/fraglink/internal/http/view"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger    *zap.Logger
	Resolver  *resolver.Resolver
	PageTitle string
}

// RedirectHandler serves the shell page and the redirect hop.
type RedirectHandler struct {
	logger    *zap.Logger
	resolver  *resolver.Resolver
	pageTitle string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:    logger,
		resolver:  deps.Resolver,
		pageTitle: deps.PageTitle,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Shell)
	router.Get("/health", h.Health)
	router.Get("/r/:code", h.Resolve)
}

// Shell serves the landing page whose inline script turns "#/r/<code>"
// fragments into /r/<code> requests.
func (h *RedirectHandler) Shell(c *fiber.Ctx) error {
	html, err := view.RenderShellPage(view.ShellPageData{Title: h.pageTitle})
	if err != nil {
		h.logger.Error("failed to render shell page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}
	return c.Type("html", "utf-8").SendString(html)
}

// Health is a simple endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "fraglink",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /r/:code. A hit answers with a 302, which replaces
// the fragment hop in browser history; a miss renders the unknown-link page.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if unescaped, err := url.PathUnescape(code); err == nil {
		code = unescaped
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := h.resolver.Resolve(ctx, "#/r/"+code, clientinfo.FromCtx(c))
	if err != nil {
		h.logger.Error("failed to resolve short link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if res.Outcome == resolver.OutcomeResolved {
		return c.Redirect(res.Location, fiber.StatusFound)
	}

	html, err := view.RenderNotFoundPage(view.NotFoundPageData{Code: code})
	if err != nil {
		h.logger.Error("failed to render not-found page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}
	return c.Status(fiber.StatusNotFound).Type("html", "utf-8").SendString(html)
}

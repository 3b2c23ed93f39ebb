package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/internal/app/model"
	"github.com/fraglink-io/fraglink/internal/app/service"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// APIDeps groups dependencies required by API handlers. Redis is optional;
// without it the stream tally is simply absent from stats.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Redis       *redis.Client
	BaseURL     string
	Now         func() int64
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	rdb         *redis.Client
	baseURL     string
	now         func() int64
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = model.NowMS
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		rdb:         deps.Redis,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
		now:         now,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/stats", h.Stats)

		links := api.Group("/links")
		{
			links.Post("/", h.CreateLinks)
			links.Get("/", h.ListLinks)
			links.Get("/:code", h.GetLink)
			links.Get("/:code/qr", h.GetLinkQR)
		}
	}
}

// CreateLinksRequest represents the request body for creating links.
type CreateLinksRequest struct {
	Items []service.CreateItem `json:"items"`
}

// LinkResponse represents one link record in API responses.
type LinkResponse struct {
	Code      string `json:"code"`
	LongURL   string `json:"longUrl"`
	ShortURL  string `json:"shortUrl"`
	CreatedAt int64  `json:"createdAt"`
	ExpiryTS  *int64 `json:"expiryTs"`
	Active    bool   `json:"active"`
	Visits    int    `json:"visits"`
}

// LinkDetailResponse adds the full visit ledger to LinkResponse.
type LinkDetailResponse struct {
	LinkResponse
	VisitLog []model.VisitRecord `json:"visitLog"`
}

func (h *APIHandler) linkResponse(record *model.LinkRecord, nowMS int64) LinkResponse {
	return LinkResponse{
		Code:      record.Code,
		LongURL:   record.LongURL,
		ShortURL:  h.shortURL(record.Code),
		CreatedAt: record.CreatedAt,
		ExpiryTS:  record.ExpiryTS,
		Active:    record.ActiveAt(nowMS),
		Visits:    len(record.Visits),
	}
}

func (h *APIHandler) shortURL(code string) string {
	return h.baseURL + "/r/" + code
}

// CreateLinks handles POST /api/links. The batch is all-or-nothing: any
// invalid item rejects the whole request with per-item errors.
func (h *APIHandler) CreateLinks(c *fiber.Ctx) error {
	var req CreateLinksRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	created, err := h.linkService.CreateBatch(ctx, req.Items)
	if err != nil {
		var batchErr *service.BatchError
		switch {
		case errors.As(err, &batchErr):
			items := make([]fiber.Map, len(batchErr.Items))
			for i, item := range batchErr.Items {
				items[i] = fiber.Map{
					"index":   item.Index,
					"field":   item.Field,
					"message": item.Err.Error(),
				}
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": batchErr.Error(),
				"items": items,
			})
		case errors.Is(err, service.ErrEmptyBatch):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "batch has no items",
			})
		default:
			h.logger.Error("failed to create links", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create links",
			})
		}
	}

	nowMS := h.now()
	response := make([]LinkResponse, len(created))
	for i := range created {
		response[i] = h.linkResponse(&created[i], nowMS)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"links": response,
		"count": len(response),
	})
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	offset := 0

	if c.Query("limit") != "" {
		if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if c.Query("offset") != "" {
		if parsed := c.QueryInt("offset"); parsed >= 0 {
			offset = parsed
		}
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	links, err := h.linkService.ListLinks(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	nowMS := h.now()
	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i], nowMS)
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	link, err := h.linkService.GetLink(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	return c.JSON(LinkDetailResponse{
		LinkResponse: h.linkResponse(link, h.now()),
		VisitLog:     link.Visits,
	})
}

// GetLinkQR handles GET /api/links/:code/qr and answers with a PNG encoding
// of the short URL.
func (h *APIHandler) GetLinkQR(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	link, err := h.linkService.GetLink(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	size := c.QueryInt("size", defaultQRSize)
	if size < minQRSize {
		size = minQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(h.shortURL(link.Code), qrcode.Medium, size)
	if err != nil {
		h.logger.Error("failed to encode qr code", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to encode qr code",
		})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// StatsResponse represents the aggregate view of the store. TalliedVisits
// is the stream consumer's Redis counter and is only present when Redis is
// configured.
type StatsResponse struct {
	service.Stats
	TalliedVisits *int64 `json:"talliedVisits,omitempty"`
}

// Stats handles GET /api/stats
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := h.linkService.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to compute stats",
		})
	}

	response := StatsResponse{Stats: stats}
	if h.rdb != nil {
		if tally, err := service.TotalVisitTally(ctx, h.rdb); err == nil {
			response.TalliedVisits = &tally
		} else {
			h.logger.Warn("failed to read visit tally", zap.Error(err))
		}
	}

	return c.JSON(response)
}

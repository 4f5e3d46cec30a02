package handler

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"formvault/internal/model"
	"formvault/internal/service"
)

// Services groups everything the HTTP surface depends on.
type Services struct {
	Documents service.DocumentService
	Versions  service.VersionService
	Orders    service.OrderService
	Outbox    service.OutboxService
}

type saveDocumentRequest struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	TemplateID string         `json:"template_id"`
	State      model.FieldMap `json:"state"`
	Status     string         `json:"status"`
	SavedBy    string         `json:"saved_by"`
}

type createVersionRequest struct {
	Label     string `json:"label"`
	CreatedBy string `json:"created_by"`
}

type restoreVersionRequest struct {
	RestoredBy string `json:"restored_by"`
}

type createOrderRequest struct {
	OwnerID string `json:"owner_id"`
	Items   []struct {
		TemplateID string `json:"template_id"`
		Title      string `json:"title"`
		PriceCents int64  `json:"price_cents"`
	} `json:"items"`
}

type completePaymentRequest struct {
	PaymentRef string         `json:"payment_ref"`
	Method     string         `json:"method"`
	Details    map[string]any `json:"details"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// parse parameters and delegate; all business rules live in the services.
func RegisterRoutes(app *fiber.App, db *sql.DB, svcs Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	registerDocumentRoutes(app, svcs)
	registerVersionRoutes(app, svcs)
	registerOrderRoutes(app, svcs)
	registerOutboxRoutes(app, svcs)
}

func registerDocumentRoutes(app *fiber.App, svcs Services) {
	app.Get("/documents", func(c *fiber.Ctx) error {
		ownerID := c.Query("owner_id")
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svcs.Documents.List(c.UserContext(), ownerID, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/documents", func(c *fiber.Ctx) error {
		var req saveDocumentRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := svcs.Documents.Save(c.UserContext(), service.SaveDocumentInput{
			ID:         req.ID,
			OwnerID:    req.OwnerID,
			TemplateID: req.TemplateID,
			State:      req.State,
			Status:     model.DocumentStatus(req.Status),
			SavedBy:    req.SavedBy,
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		status := fiber.StatusCreated
		if req.ID != "" {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(doc)
	})

	app.Get("/documents/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svcs.Documents.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})
}

func registerVersionRoutes(app *fiber.App, svcs Services) {
	app.Get("/documents/:id/versions", func(c *fiber.Ctx) error {
		summaries, err := svcs.Versions.ListVersions(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": summaries})
	})

	app.Post("/documents/:id/versions", func(c *fiber.Ctx) error {
		var req createVersionRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		v, err := svcs.Versions.CreateVersion(c.UserContext(), c.Params("id"), req.Label, req.CreatedBy)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	})

	app.Post("/documents/:id/versions/:number/restore", func(c *fiber.Ctx) error {
		number, err := strconv.Atoi(c.Params("number"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
		}
		var req restoreVersionRequest
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := svcs.Versions.RestoreVersion(c.UserContext(), c.Params("id"), number, req.RestoredBy)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})

	app.Get("/documents/:id/versions/diff", func(c *fiber.Ctx) error {
		from, err := strconv.Atoi(c.Query("from"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid from version")
		}
		to, err := strconv.Atoi(c.Query("to"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid to version")
		}

		diff, err := svcs.Versions.CompareVersions(c.UserContext(), c.Params("id"), from, to)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": diff})
	})

	app.Post("/documents/:id/versions/cleanup", func(c *fiber.Ctx) error {
		keep, err := strconv.Atoi(c.Query("keep", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEEP", "invalid keep count")
		}

		deleted, err := svcs.Versions.CleanupOldVersions(c.UserContext(), c.Params("id"), keep)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"deleted_count": deleted})
	})
}

func registerOrderRoutes(app *fiber.App, svcs Services) {
	app.Post("/orders", func(c *fiber.Ctx) error {
		var req createOrderRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		items := make([]service.OrderItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, service.OrderItemInput{
				TemplateID: item.TemplateID,
				Title:      item.Title,
				PriceCents: item.PriceCents,
			})
		}

		order, err := svcs.Orders.CreateOrder(c.UserContext(), req.OwnerID, items)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	})

	app.Post("/orders/:id/payment", func(c *fiber.Ctx) error {
		var req completePaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		order, err := svcs.Orders.CompletePayment(c.UserContext(), c.Params("id"), req.PaymentRef, req.Method, req.Details)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(order)
	})
}

func registerOutboxRoutes(app *fiber.App, svcs Services) {
	app.Get("/outbox/failed", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "50"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		failed, err := svcs.Outbox.ListFailedEvents(c.UserContext(), limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": failed})
	})

	app.Post("/outbox/:id/requeue", func(c *fiber.Ctx) error {
		if err := svcs.Outbox.RequeueEvent(c.UserContext(), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})
}

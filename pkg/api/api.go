// Package api exposes the assessment system over REST.
package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/user/scanforge/pkg/agents"
	"github.com/user/scanforge/pkg/engine"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/pipeline"
	"github.com/user/scanforge/pkg/store"
)

// Server wires the HTTP surface to the core.
type Server struct {
	Store    store.Store
	Runner   *pipeline.Runner
	Analyzer *engine.Analyzer
}

// NewFiberApp creates and configures the Fiber app with all routes.
func NewFiberApp(s *Server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "scanforge API v1.0",
		ReadTimeout: 60 * time.Second,
	})

	app.Use(fiberrecover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, HEAD, OPTIONS",
	}))
	app.Use(logger.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/targets", s.createTarget)
	v1.Get("/targets", s.listTargets)
	v1.Post("/sessions", s.createSession)
	v1.Get("/sessions", s.listSessions)
	v1.Get("/sessions/:id", s.getSession)
	v1.Post("/sessions/:id/stop", s.stopSession)
	v1.Get("/sessions/:id/findings", s.sessionFindings)
	v1.Get("/sessions/:id/report", s.sessionReport)
	v1.Get("/inventory", s.listInventory)
	v1.Get("/inventory/:address", s.getAsset)
	v1.Get("/actions", s.listActions)
	v1.Post("/analyze", s.runAnalysis)

	return app
}

type createTargetRequest struct {
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	Criticality string `json:"criticality"`
}

func (s *Server) createTarget(c *fiber.Ctx) error {
	var req createTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.BaseURL == "" {
		return badRequest(c, "name and base_url are required")
	}
	criticality := model.Criticality(req.Criticality)
	if criticality == "" {
		criticality = model.CriticalityMedium
	}
	target := model.Target{
		ID:          uuid.NewString(),
		Name:        req.Name,
		BaseURL:     req.BaseURL,
		Source:      "manual",
		Criticality: criticality,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Store.PutTarget(c.Context(), &target); err != nil {
		return serverError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(target)
}

func (s *Server) listTargets(c *fiber.Ctx) error {
	targets, err := s.Store.ListTargets(c.Context())
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(targets)
}

type createSessionRequest struct {
	TargetID string `json:"target_id"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if _, err := s.Store.GetTarget(c.Context(), req.TargetID); err != nil {
		return notFoundOr(c, err)
	}

	session := model.Session{
		ID:        uuid.NewString(),
		TargetID:  req.TargetID,
		Status:    model.SessionQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.PutSession(c.Context(), &session); err != nil {
		return serverError(c, err)
	}
	if err := s.Runner.Launch(session.ID); err != nil {
		return serverError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": session.ID, "status": session.Status})
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	sessions, err := s.Store.ListSessions(c.Context())
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(sessions)
}

func (s *Server) getSession(c *fiber.Ctx) error {
	session, err := s.Store.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return notFoundOr(c, err)
	}
	return c.JSON(session)
}

// stopSession requests cooperative cancellation: the running stage
// finishes, later stages do not start.
func (s *Server) stopSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.Store.GetSession(c.Context(), id); err != nil {
		return notFoundOr(c, err)
	}
	if !s.Runner.Stop(id) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session is not running"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id, "stopping": true})
}

func (s *Server) sessionFindings(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.Store.GetSession(c.Context(), id); err != nil {
		return notFoundOr(c, err)
	}
	findings, err := s.Store.FindingsBySession(c.Context(), id)
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(findings)
}

func (s *Server) sessionReport(c *fiber.Ctx) error {
	session, err := s.Store.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return notFoundOr(c, err)
	}
	if session.Status != model.SessionCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "report is available once the session completes"})
	}
	target, err := s.Store.GetTarget(c.Context(), session.TargetID)
	if err != nil {
		return serverError(c, err)
	}
	findings, err := s.Store.FindingsBySession(c.Context(), session.ID)
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(agents.BuildReport(session, target, findings))
}

func (s *Server) listInventory(c *fiber.Ctx) error {
	assets, err := s.Store.ListAssets(c.Context())
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(assets)
}

func (s *Server) getAsset(c *fiber.Ctx) error {
	asset, err := s.Store.GetAsset(c.Context(), c.Params("address"))
	if err != nil {
		return notFoundOr(c, err)
	}
	return c.JSON(asset)
}

func (s *Server) listActions(c *fiber.Ctx) error {
	actions, err := s.Store.OpenActions(c.Context())
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(actions)
}

func (s *Server) runAnalysis(c *fiber.Ctx) error {
	if err := s.Analyzer.RunAnalysis(c.Context()); err != nil {
		return serverError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "analysis completed"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFoundOr(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	return serverError(c, err)
}

func serverError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

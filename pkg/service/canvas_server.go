package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/gorilla/websocket"

	"github.com/0xArtex/excalidraw-mcp/pkg/broadcast"
	"github.com/0xArtex/excalidraw-mcp/pkg/errors"
)

/*
CanvasServer exposes the REST write surface and the real-time channel over a
single fiber app. It is a thin caller: every mutation goes through the
SceneManager, never the element tables directly.
*/
type CanvasServer struct {
	app       *fiber.App
	scenes    *SceneManager
	exportDir string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// sessions are capability URLs, any origin may connect
	CheckOrigin: func(*http.Request) bool { return true },
}

func NewCanvasServer(scenes *SceneManager, exportDir string) *CanvasServer {
	srv := &CanvasServer{
		app: fiber.New(fiber.Config{
			AppName:      "Excalidraw Canvas",
			ServerHeader: "Excalidraw-Canvas-Server",
		}),
		scenes:    scenes,
		exportDir: exportDir,
	}
	srv.routes()
	return srv
}

func (srv *CanvasServer) routes() {
	srv.app.Use(logger.New(logger.Config{
		// the websocket endpoint logs through the bus instead
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
	}))

	srv.app.Get("/health", srv.handleHealth)
	srv.app.Get("/ws", srv.handleWebsocket)

	srv.app.Post("/sessions", srv.handleCreateSession)
	srv.app.Get("/sessions/:id", srv.handleGetSession)
	srv.app.Delete("/sessions/:id", srv.handleDeleteSession)

	srv.app.Get("/sessions/:id/elements", srv.handleListElements)
	srv.app.Post("/sessions/:id/elements", srv.handleCreateElement)
	srv.app.Put("/sessions/:id/elements/:elementId", srv.handleUpdateElement)
	srv.app.Delete("/sessions/:id/elements/:elementId", srv.handleDeleteElement)
	srv.app.Post("/sessions/:id/elements/batch", srv.handleBatchCreate)
	srv.app.Post("/sessions/:id/elements/from-mermaid", srv.handleFromMermaid)
	srv.app.Post("/sessions/:id/elements/sync", srv.handleSync)
	srv.app.Post("/sessions/:id/export", srv.handleExport)

	if srv.exportDir != "" {
		srv.app.Get("/exports/*", static.New(srv.exportDir))
	}
}

// App exposes the fiber app for tests.
func (srv *CanvasServer) App() *fiber.App { return srv.app }

func (srv *CanvasServer) Start(addr string) error {
	log.Info("canvas server listening", "addr", addr)
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *CanvasServer) Shutdown() error {
	return srv.app.Shutdown()
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (srv *CanvasServer) handleHealth(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":    "ok",
		"sessions":  srv.scenes.Registry().Stats(),
		"observers": srv.scenes.Bus().ObserverCount(),
		"timestamp": time.Now(),
	})
}

func (srv *CanvasServer) handleCreateSession(ctx fiber.Ctx) error {
	var body struct {
		ID string `json:"id,omitempty"`
	}
	if len(ctx.Body()) > 0 {
		if err := json.Unmarshal(ctx.Body(), &body); err != nil {
			return srv.fail(ctx, errors.NewValidation("", "invalid session payload: %v", err))
		}
	}

	session := srv.scenes.CreateSession(body.ID)
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        session.ID,
		"createdAt": session.CreatedAt,
		"canvasUrl": srv.scenes.CanvasURL(session.ID),
		"apiUrl":    "/sessions/" + session.ID,
	})
}

func (srv *CanvasServer) handleGetSession(ctx fiber.Ctx) error {
	session, err := srv.scenes.Session(ctx.Params("id"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"id":           session.ID,
		"createdAt":    session.CreatedAt,
		"lastActivity": session.LastActivity(),
		"title":        session.Title(),
		"isFinalized":  session.IsFinalized(),
		"imageUrl":     session.ImageURL(),
		"elementCount": session.Count(),
	})
}

func (srv *CanvasServer) handleDeleteSession(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if !srv.scenes.DeleteSession(id) {
		return srv.fail(ctx, errors.NewSessionNotFound(id))
	}
	return ctx.JSON(fiber.Map{"deleted": true, "id": id})
}

func (srv *CanvasServer) handleListElements(ctx fiber.Ctx) error {
	session, err := srv.scenes.Session(ctx.Params("id"))
	if err != nil {
		return srv.fail(ctx, err)
	}

	elements := session.Snapshot()
	return ctx.JSON(fiber.Map{"elements": elements, "count": len(elements)})
}

func (srv *CanvasServer) handleCreateElement(ctx fiber.Ctx) error {
	el, err := srv.scenes.CreateElement(ctx.Params("id"), ctx.Body())
	if err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(el)
}

func (srv *CanvasServer) handleUpdateElement(ctx fiber.Ctx) error {
	el, err := srv.scenes.UpdateElement(ctx.Params("id"), ctx.Params("elementId"), ctx.Body())
	if err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.JSON(el)
}

func (srv *CanvasServer) handleDeleteElement(ctx fiber.Ctx) error {
	elementID := ctx.Params("elementId")
	if err := srv.scenes.DeleteElement(ctx.Params("id"), elementID); err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"deleted": true, "id": elementID})
}

func (srv *CanvasServer) handleBatchCreate(ctx fiber.Ctx) error {
	created, err := srv.scenes.BatchCreate(ctx.Params("id"), ctx.Body())
	if err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (srv *CanvasServer) handleFromMermaid(ctx fiber.Ctx) error {
	var body struct {
		DiagramText string          `json:"diagramText"`
		Config      json.RawMessage `json:"config,omitempty"`
	}
	if err := json.Unmarshal(ctx.Body(), &body); err != nil {
		return srv.fail(ctx, errors.NewValidation("", "invalid mermaid payload: %v", err))
	}

	sessionID := ctx.Params("id")
	if err := srv.scenes.ConvertMermaid(sessionID, body.DiagramText, body.Config); err != nil {
		return srv.fail(ctx, err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":    "converting",
		"observers": srv.scenes.Bus().SessionObserverCount(sessionID),
	})
}

func (srv *CanvasServer) handleSync(ctx fiber.Ctx) error {
	var body struct {
		Elements json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(ctx.Body(), &body); err != nil {
		return srv.fail(ctx, errors.NewValidation("", "invalid sync payload: %v", err))
	}

	count, err := srv.scenes.SyncElements(ctx.Params("id"), body.Elements)
	if err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"count": count, "syncedAt": time.Now()})
}

func (srv *CanvasServer) handleExport(ctx fiber.Ctx) error {
	var body struct {
		Title string `json:"title,omitempty"`
	}
	if len(ctx.Body()) > 0 {
		if err := json.Unmarshal(ctx.Body(), &body); err != nil {
			return srv.fail(ctx, errors.NewValidation("", "invalid export payload: %v", err))
		}
	}

	canvasURL, imageURL, err := srv.scenes.FinishDiagram(ctx.RequestCtx(), ctx.Params("id"), body.Title)
	if err != nil {
		return srv.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"canvasUrl": canvasURL, "imageUrl": imageURL})
}

/*
handleWebsocket attaches one observer to a session's broadcast membership.
The session id arrives as a query parameter at connect time; the session is
created on first reference so a browser can open the canvas before any
element exists.
*/
func (srv *CanvasServer) handleWebsocket(ctx fiber.Ctx) error {
	sessionID := ctx.Query("sessionId")
	if sessionID == "" {
		return srv.fail(ctx, errors.NewValidation("sessionId", "query parameter is required"))
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", "session_id", sessionID, "error", err)
			return
		}

		client := broadcast.NewClient(sessionID, conn)
		srv.scenes.Attach(sessionID, client)

		go client.WritePump()
		client.ReadPump(func() {
			srv.scenes.Detach(sessionID, client)
		})
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

// fail maps the error taxonomy onto HTTP statuses; validation and not-found
// are client errors, a collaborator failure is a server error on the
// triggering call only.
func (srv *CanvasServer) fail(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = fiber.StatusBadRequest
	case errors.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.IsCollaboratorUnavailable(err):
		status = fiber.StatusBadGateway
	default:
		log.Error("unexpected error", "error", err)
	}
	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}

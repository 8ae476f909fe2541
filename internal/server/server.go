// Package server exposes a workflow over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"sceneaoi/internal/export"
	"sceneaoi/internal/geom"
	"sceneaoi/internal/lookup"
	"sceneaoi/internal/query"
	"sceneaoi/internal/selection"
	"sceneaoi/internal/workflow"
)

// Server serialises every request touching the workflow, so the machine
// sees one event at a time.
type Server struct {
	mu     sync.Mutex
	wf     *workflow.Workflow
	ledger *export.Ledger
	log    *slog.Logger
	app    *fiber.App
}

// New builds the fiber app. ledger may be nil, in which case /exports is
// empty.
func New(wf *workflow.Workflow, ledger *export.Ledger, log *slog.Logger, requestLog bool) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{wf: wf, ledger: ledger, log: log.With("component", "server")}

	app := fiber.New(fiber.Config{AppName: "sceneaoi"})
	app.Use(recover.New())
	if requestLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/state", s.getState)
	app.Post("/events", s.postEvent)
	app.Post("/gestures", s.postGesture)
	app.Post("/layers/:id", s.postLayer)
	app.Post("/scene/reload", s.postReload)
	app.Post("/export", s.postExport)
	app.Get("/exports", s.getExports)
	s.app = app
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

// Locked runs fn with the workflow lock held, for callers outside HTTP
// such as the scene watcher.
func (s *Server) Locked(fn func(wf *workflow.Workflow)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.wf)
}

type lookupView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stale  bool   `json:"stale"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

type featureView struct {
	ID    string `json:"id"`
	Layer string `json:"layer"`
	Title string `json:"title"`
}

type stateResponse struct {
	State   selection.StateName `json:"state"`
	Store   selection.Snapshot  `json:"store"`
	Lookups []lookupView        `json:"lookups"`
}

func (s *Server) state() stateResponse {
	lk := s.wf.Lookups()
	return stateResponse{
		State: s.wf.Machine().State().Name(),
		Store: s.wf.Store().Snapshot(),
		Lookups: []lookupView{
			newLookupView("features", lk.Features.Snapshot(), func(fs lookup.FeatureSet) any {
				out := make([]featureView, 0, fs.Count())
				for _, f := range fs.All() {
					out = append(out, featureView{ID: f.ID, Layer: f.LayerID, Title: f.Title()})
				}
				return fiber.Map{"features": out, "failedLayers": fs.Failed}
			}),
			newLookupView("corners", lk.Corners.Snapshot(), func(ce lookup.CornerElevations) any {
				return fiber.Map{"corners": ce.Corners, "min": ce.Min, "max": ce.Max, "mean": ce.Mean}
			}),
			newLookupView("origin", lk.Origin.Snapshot(), func(p geom.Point) any { return p }),
			newLookupView("footprint", lk.Footprint.Snapshot(), func(fp lookup.Footprint) any {
				if !fp.Found() {
					return fiber.Map{"found": false}
				}
				return fiber.Map{"found": true, "id": fp.Feature.ID, "layer": fp.Feature.LayerID, "area": fp.Area}
			}),
		},
	}
}

// newLookupView renders one coordinator snapshot, so status, staleness and
// result always describe the same moment.
func newLookupView[In, Out any](name string, snap query.Snapshot[In, Out], result func(Out) any) lookupView {
	v := lookupView{Name: name, Status: snap.Status.String(), Stale: snap.Stale}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	if snap.HasResult {
		v.Result = result(snap.Result)
	}
	return v
}

func (s *Server) getState(c fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(s.state())
}

func (s *Server) postEvent(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty body"})
	}
	e, err := selection.DecodeEvent(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	handled := s.wf.Dispatch(e)
	return c.JSON(fiber.Map{"handled": handled, "state": s.state()})
}

func (s *Server) postGesture(c fiber.Ctx) error {
	var wg selection.WireGesture
	if err := json.Unmarshal(c.Body(), &wg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	g, err := wg.Gesture()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, handled := s.wf.Gesture(g)
	resp := fiber.Map{"handled": handled, "state": s.state()}
	if e != nil {
		resp["event"] = e.Kind()
	}
	return c.JSON(resp)
}

func (s *Server) postLayer(c fiber.Ctx) error {
	var body struct {
		Visible bool `json:"visible"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Params("id")
	if sc := s.wf.Scene(); sc == nil || sc.Layer(id) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "layer not found"})
	}
	s.wf.Lookups().SetLayerVisible(id, body.Visible)
	return c.JSON(s.state())
}

func (s *Server) postReload(c fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wf.Reload(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, workflow.ErrNoScene) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.state())
}

func (s *Server) postExport(c fiber.Ctx) error {
	s.mu.Lock()
	req, err := s.wf.BeginExport()
	s.mu.Unlock()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := s.wf.RunExport(context.Background(), req)

	s.mu.Lock()
	s.wf.EndExport(req.ID, err)
	s.mu.Unlock()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (s *Server) getExports(c fiber.Ctx) error {
	if s.ledger == nil {
		return c.JSON([]export.Record{})
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit"})
		}
		limit = n
	}
	recs, err := s.ledger.List(context.Background(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if recs == nil {
		recs = []export.Record{}
	}
	return c.JSON(recs)
}

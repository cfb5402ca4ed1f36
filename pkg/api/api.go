// Package api implements the REST API for evaluating expressions and batches.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lemonberrylabs/infixcalc/pkg/batch"
	"github.com/lemonberrylabs/infixcalc/pkg/expr"
	"github.com/lemonberrylabs/infixcalc/pkg/store"
)

// Server is the REST API server.
type Server struct {
	app     *fiber.App
	store   *store.Store
	log     zerolog.Logger
	workers int
}

// New creates a new API server.
func New(s *store.Store, logger zerolog.Logger) *Server {
	srv := &Server{
		store: s,
		log:   logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	app.Use(srv.logRequests)

	app.Get("/healthz", srv.healthz)

	// Evaluations API
	app.Post("/v1/evaluations", srv.createEvaluation)
	app.Get("/v1/evaluations", srv.listEvaluations)
	app.Get("/v1/evaluations/:evaluation", srv.getEvaluation)

	// Batches API
	app.Post("/v1/batches", srv.createBatch)
	app.Get("/v1/batches", srv.listBatches)
	app.Get("/v1/batches/:batch", srv.getBatch)
	app.Delete("/v1/batches/:batch", srv.deleteBatch)
	app.Get("/v1/batches/:batch/evaluations", srv.listBatchEvaluations)
	app.Get("/v1/batches/:batch/evaluations/:evaluation", srv.getBatchEvaluation)

	srv.app = app
	return srv
}

// SetWorkers sets how many expressions of a batch are evaluated at once.
// Zero means GOMAXPROCS.
func (s *Server) SetWorkers(n int) {
	s.workers = n
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// --- Evaluation Handlers ---

type createEvaluationRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) createEvaluation(c *fiber.Ctx) error {
	var req createEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Expression == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "expression is required")
	}

	result, evalErr := expr.Evaluate(req.Expression)
	ev, err := s.store.RecordEvaluation("", req.Expression, result, evalErr)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}

	if evalErr != nil {
		s.log.Debug().Str("evaluation", ev.Name).Err(evalErr).Msg("evaluation failed")
	}
	return c.JSON(evaluationToJSON(ev))
}

func (s *Server) getEvaluation(c *fiber.Ctx) error {
	ev, err := s.store.GetEvaluation("evaluations/" + c.Params("evaluation"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(evaluationToJSON(ev))
}

func (s *Server) listEvaluations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"evaluations": evaluationsToJSON(s.store.ListEvaluations("")),
	})
}

// --- Batch Handlers ---

type createBatchRequest struct {
	SourceContents string `json:"sourceContents"`
	Description    string `json:"description"`
}

func (s *Server) createBatch(c *fiber.Ctx) error {
	batchID := c.Query("batchId")
	if batchID == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "batchId query parameter is required")
	}
	if !batch.ValidID(batchID) {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid batchId %q", batchID))
	}

	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "sourceContents is required")
	}

	b, evs, err := s.RunBatch(c.UserContext(), batchID, req.Description, req.SourceContents)
	if err != nil {
		var pe *batch.ParseError
		if errors.As(err, &pe) {
			return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid batch definition: %v", err))
		}
		return storeError(c, err)
	}

	resp := batchToJSON(b)
	resp["evaluations"] = evaluationsToJSON(evs)
	return c.JSON(resp)
}

func (s *Server) getBatch(c *fiber.Ctx) error {
	b, err := s.store.GetBatch(store.BatchName(c.Params("batch")))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(batchToJSON(b))
}

func (s *Server) listBatches(c *fiber.Ctx) error {
	batches := s.store.ListBatches()

	items := make([]fiber.Map, len(batches))
	for i, b := range batches {
		items[i] = batchToJSON(b)
	}

	return c.JSON(fiber.Map{
		"batches": items,
	})
}

func (s *Server) deleteBatch(c *fiber.Ctx) error {
	name := store.BatchName(c.Params("batch"))
	if err := s.store.DeleteBatch(name); err != nil {
		return storeError(c, err)
	}
	s.log.Info().Str("batch", name).Msg("batch deleted")
	return c.JSON(fiber.Map{})
}

func (s *Server) listBatchEvaluations(c *fiber.Ctx) error {
	name := store.BatchName(c.Params("batch"))
	if _, err := s.store.GetBatch(name); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"evaluations": evaluationsToJSON(s.store.ListEvaluations(name)),
	})
}

func (s *Server) getBatchEvaluation(c *fiber.Ctx) error {
	name := store.BatchName(c.Params("batch")) + "/evaluations/" + c.Params("evaluation")
	ev, err := s.store.GetEvaluation(name)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(evaluationToJSON(ev))
}

// RunBatch parses source, stores it as batch batchID, evaluates every entry
// and records the outcomes. description overrides the document's own
// description when set.
func (s *Server) RunBatch(ctx context.Context, batchID, description, source string) (*store.Batch, []*store.Evaluation, error) {
	parsed, err := batch.Parse([]byte(source))
	if err != nil {
		return nil, nil, err
	}
	if description == "" {
		description = parsed.Description
	}

	b, err := s.store.CreateBatch(batchID, description, source)
	if err != nil {
		return nil, nil, err
	}

	evs, failed, err := s.evaluateBatch(ctx, b.Name, parsed)
	if err == nil {
		b, err = s.store.CompleteBatch(b.Name, failed > 0)
	}
	if err != nil {
		// Release the id so the batch can be submitted again.
		if derr := s.store.DeleteBatch(store.BatchName(batchID)); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			s.log.Warn().Err(derr).Str("batch", batchID).Msg("failed to discard incomplete batch")
		}
		return nil, nil, err
	}

	s.log.Info().
		Str("batch", b.Name).
		Int("expressions", len(evs)).
		Int("failed", failed).
		Msg("batch evaluated")
	return b, evs, nil
}

// evaluateBatch runs every entry of parsed and records the outcomes under
// batchName. It returns the recorded evaluations and the number of entries
// that failed or missed their expectation.
func (s *Server) evaluateBatch(ctx context.Context, batchName string, parsed *batch.Batch) ([]*store.Evaluation, int, error) {
	results, err := batch.Run(ctx, parsed, s.workers)
	if err != nil {
		return nil, 0, err
	}

	failed := 0
	evs := make([]*store.Evaluation, 0, len(results))
	for _, r := range results {
		ev, err := s.store.RecordBatchEntry(batchName, store.BatchEntry{
			ID:         r.Entry.ID,
			Expression: r.Entry.Expression,
			Expect:     r.Entry.Expect,
			Result:     r.Result,
			Err:        r.Err,
			Matched:    r.Matched,
		})
		if err != nil {
			return nil, 0, err
		}
		if r.Failed() {
			failed++
		}
		evs = append(evs, ev)
	}
	return evs, failed, nil
}

// --- Directory Loading ---

// LoadDir loads all .yaml, .yml and .json batch files from the given
// directory and runs them. File name (sans extension) becomes the batch ID.
func (s *Server) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading batches directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		base := strings.TrimSuffix(name, ext)
		batchID := strings.ToLower(base)
		if batchID != base {
			s.log.Warn().Str("file", name).Str("batch", batchID).Msg("lowercased batch ID")
		}
		if !batch.ValidID(batchID) {
			s.log.Warn().Str("file", name).Str("batch", batchID).Msg("skipping file with invalid batch ID")
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.log.Warn().Str("file", name).Err(err).Msg("could not read batch file")
			continue
		}

		if _, _, err := s.RunBatch(context.Background(), batchID, "", string(data)); err != nil {
			s.log.Warn().Str("file", name).Err(err).Msg("could not load batch")
			continue
		}
		loaded++
	}

	s.log.Info().Int("count", loaded).Str("dir", dir).Msg("loaded batches")
	return nil
}

// --- Helpers ---

func apiError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return apiError(c, fiber.StatusConflict, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apiError(c, fiber.StatusServiceUnavailable, "CANCELLED", err.Error())
	default:
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func evaluationToJSON(ev *store.Evaluation) fiber.Map {
	result := fiber.Map{
		"name":       ev.Name,
		"expression": ev.Expression,
		"state":      ev.State,
		"createTime": ev.CreateTime.Format(time.RFC3339),
	}

	if ev.State == store.EvaluationSucceeded {
		result["result"] = ev.Result
	}
	if ev.Error != nil {
		result["error"] = fiber.Map{
			"tag":     ev.Error.Tag,
			"message": ev.Error.Message,
			"pos":     ev.Error.Pos,
		}
	}
	if ev.Batch != "" {
		result["batch"] = ev.Batch
		result["entryId"] = ev.EntryID
	}
	if ev.Matched != nil {
		result["expect"] = ev.Expect
		result["matched"] = *ev.Matched
	}

	return result
}

func evaluationsToJSON(evs []*store.Evaluation) []fiber.Map {
	items := make([]fiber.Map, len(evs))
	for i, ev := range evs {
		items[i] = evaluationToJSON(ev)
	}
	return items
}

func batchToJSON(b *store.Batch) fiber.Map {
	result := fiber.Map{
		"name":           b.Name,
		"description":    b.Description,
		"state":          b.State,
		"createTime":     b.CreateTime.Format(time.RFC3339),
		"sourceContents": b.SourceContents,
	}
	if b.EndTime != nil {
		result["endTime"] = b.EndTime.Format(time.RFC3339)
	}
	return result
}

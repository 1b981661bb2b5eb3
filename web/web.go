// Package web exposes the rewrite engine over HTTP as a small JSON API,
// for playgrounds and integrations that cannot spawn the CLI.
package web

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/slotlang/slotc/compiler"
)

// Server is the HTTP front end of the rewrite engine.
type Server struct {
	app *fiber.App
}

// New creates the API server and its routes.
func New() *Server {
	s := &Server{}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Get("/healthz", s.health)
	app.Post("/v1/rewrite", s.rewrite)

	s.app = app
	return s
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

// rewriteRequest is the POST /v1/rewrite body. DisableSharing rejects the
// cross-class constructs the way a manifest with allow-sharing = false does.
type rewriteRequest struct {
	Path           string `json:"path"`
	Source         string `json:"source"`
	DisableSharing bool   `json:"disableSharing"`
}

// diagJSON is one engine rejection in API form. Line and column are 1-based.
type diagJSON struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"engine": compiler.EngineVersion,
	})
}

func (s *Server) rewrite(c *fiber.Ctx) error {
	var req rewriteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    400,
				"message": fmt.Sprintf("invalid request body: %v", err),
				"status":  "INVALID_ARGUMENT",
			},
		})
	}

	if req.Source == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    400,
				"message": "source is required",
				"status":  "INVALID_ARGUMENT",
			},
		})
	}

	path := req.Path
	if path == "" {
		path = "playground.sjs"
	}

	output, diags := rewriteUnit(path, req.Source, !req.DisableSharing)
	if len(diags) > 0 {
		return c.Status(422).JSON(fiber.Map{
			"engine":      compiler.EngineVersion,
			"diagnostics": diagsJSON(diags),
		})
	}

	return c.JSON(fiber.Map{
		"engine": compiler.EngineVersion,
		"output": output,
	})
}

// rewriteUnit runs the pipeline on one unit and renders the output tree.
func rewriteUnit(path, src string, allowSharing bool) (string, compiler.DiagnosticList) {
	f, diags := compiler.Parse(path, src)
	if len(diags) > 0 {
		return "", diags
	}
	if diags := compiler.Resolve(f); len(diags) > 0 {
		return "", diags
	}
	if !allowSharing {
		if diags := compiler.CheckSharing(f); len(diags) > 0 {
			return "", diags
		}
	}
	out, diags := compiler.Rewrite(f)
	if len(diags) > 0 {
		return "", diags
	}
	return compiler.Print(out), nil
}

func diagsJSON(diags compiler.DiagnosticList) []diagJSON {
	out := make([]diagJSON, len(diags))
	for i, d := range diags {
		out[i] = diagJSON{
			Line:    d.Pos.Line,
			Column:  d.Pos.Column,
			Kind:    d.Kind.String(),
			Message: d.Msg,
		}
	}
	return out
}

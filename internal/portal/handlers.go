package portal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/session"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/utils"
	"github.com/pratikwayal01/bore-interactive-inputs/templates"
)

type configResp struct {
	Title   string     `json:"title"`
	Fields  fields.Set `json:"fields"`
	Timeout int        `json:"timeout"`
}

type submitResp struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Error       string            `json:"error,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

type uploadResp struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Checksum string `json:"sha256,omitempty"`
	Error    string `json:"error,omitempty"`
}

// formHandler renders the form document. Reloads before submission
// are idempotent.
func (srv *Server) formHandler(c *fiber.Ctx) error {
	return c.Render(templates.FormTemp, fiber.Map{
		"Title": srv.sess.Title(),
	})
}

func (srv *Server) configHandler(c *fiber.Ctx) error {
	return c.JSON(&configResp{
		Title:   srv.sess.Title(),
		Fields:  srv.sess.Fields(),
		Timeout: int(srv.sess.Remaining().Seconds()),
	})
}

// uploadHandler streams one uploaded file into the session staging
// area, under a subdirectory named after the field.
func (srv *Server) uploadHandler(c *fiber.Ctx) error {
	if srv.sess.Closed() {
		return c.Status(fiber.StatusConflict).JSON(&uploadResp{Error: "session already closed"})
	}

	fieldName := c.FormValue("field")
	if fieldName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(&uploadResp{Error: "no field name provided"})
	}

	def, ok := srv.sess.Fields().Get(fieldName)
	if !ok || !def.Kind.IsFile() {
		return c.Status(fiber.StatusBadRequest).JSON(&uploadResp{Error: "not an upload field"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&uploadResp{Error: "no file provided"})
	}

	dir := filepath.Join(srv.sess.StagingDir(), fieldName)

	// A single-file field keeps at most one staged upload, so a retry
	// replaces the previous file instead of wedging validation.
	if def.Kind == fields.KindFile {
		if err := os.RemoveAll(dir); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(&uploadResp{Error: "staging unavailable"})
		}
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(&uploadResp{Error: "staging unavailable"})
	}

	// Base strips any path components a hostile client sends along.
	filename := filepath.Base(fh.Filename)
	saveAs := filepath.Join(dir, filename)
	if err := c.SaveFile(fh, saveAs); err != nil {
		slog.Error("Upload error", "field", fieldName, "file", filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(&uploadResp{Error: "save failed"})
	}

	checksum, err := utils.SHA256ofFile(saveAs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(&uploadResp{Error: "checksum failed"})
	}

	slog.Info("Staged upload", "field", fieldName, "file", filename, "size", fh.Size, "sha256", checksum)

	return c.JSON(&uploadResp{
		Success:  true,
		Filename: filename,
		Path:     saveAs,
		Checksum: checksum,
	})
}

// submitHandler hands the raw submission to the session controller.
// Validation failures keep the session open so the operator can fix
// and resubmit; a closed session rejects everything.
func (srv *Server) submitHandler(c *fiber.Ctx) error {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&submitResp{Error: "invalid body"})
	}

	err := srv.sess.Submit(raw)
	if err == nil {
		return c.JSON(&submitResp{
			Success:     true,
			Message:     "Inputs submitted successfully",
			RedirectURL: srv.sess.RedirectURL(),
		})
	}

	if errors.Is(err, session.ErrSessionClosed) {
		return c.Status(fiber.StatusConflict).JSON(&submitResp{Error: "session already closed"})
	}
	if errors.Is(err, session.ErrNotReady) {
		return c.Status(fiber.StatusTooEarly).JSON(&submitResp{Error: "session not ready yet"})
	}

	var verr *fields.ValidationError
	if errors.As(err, &verr) {
		fieldErrs := make(map[string]string, len(verr.Fields))
		for _, fe := range verr.Fields {
			fieldErrs[fe.Name] = fe.Reason
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(&submitResp{
			Error:  "validation failed",
			Errors: fieldErrs,
		})
	}

	slog.Error("Submit error", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(&submitResp{Error: "internal error"})
}

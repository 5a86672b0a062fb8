package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/facecrop"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/utils"
)

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, healthPayload())
}

// stylesHandler handles GET /styles: the active strategy, its styles, and the
// available pendant templates.
func (s *Server) stylesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, InfoResponse{
		Pipeline:  s.proc.Info(),
		Templates: compositor.TemplateNames(),
	})
}

// processForm carries the optional multipart fields of POST /process.
type processForm struct {
	PetName      string `validate:"omitempty,max=64"`
	LastModified time.Time
	CustomBox    *facecrop.BoundingBox
}

// processHandler handles POST /process: one photo in, engraving styles and
// pendant previews out.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	if err := r.ParseMultipartForm(s.maxUploadMB << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing image file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read image file")
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	form, err := s.parseProcessForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res := s.proc.Process(ctx, pipeline.Request{
		Filename:     header.Filename,
		Data:         data,
		Size:         int64(len(data)),
		LastModified: form.LastModified,
		PetName:      form.PetName,
		CustomBox:    form.CustomBox,
	})
	recordRun("http", res)

	status := http.StatusOK
	if !res.Success {
		if res.RequiresNewImage {
			status = http.StatusUnprocessableEntity
		} else {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, res)
}

// parseProcessForm extracts and validates the optional form fields. Custom
// coordinates are all-or-nothing: either all four are present or none.
func (s *Server) parseProcessForm(r *http.Request) (processForm, error) {
	form := processForm{PetName: r.FormValue("petName")}

	if raw := r.FormValue("lastModified"); raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return form, fmt.Errorf("invalid lastModified value %q", raw)
		}
		form.LastModified = time.UnixMilli(millis)
	}

	coords := [4]string{"centerX", "centerY", "width", "height"}
	var values [4]float64
	provided := 0
	for i, name := range coords {
		raw := r.FormValue(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return form, fmt.Errorf("invalid %s value %q", name, raw)
		}
		values[i] = v
		provided++
	}
	switch provided {
	case 0:
	case len(coords):
		box := facecrop.BoundingBox{
			CenterX: values[0],
			CenterY: values[1],
			Width:   values[2],
			Height:  values[3],
		}
		if !box.Valid() {
			return form, fmt.Errorf("custom coordinates must have positive width and height")
		}
		form.CustomBox = &box
	default:
		return form, fmt.Errorf("custom coordinates require all of centerX, centerY, width, height")
	}

	if err := s.validate.Struct(form); err != nil {
		return form, fmt.Errorf("invalid form fields: %w", err)
	}
	return form, nil
}

// compositeForm carries the fields of POST /composite.
type compositeForm struct {
	Template string `validate:"required,max=32"`
}

// compositeHandler handles POST /composite: one or more engraving images are
// placed into a pendant template and the rendered PNG is returned directly.
func (s *Server) compositeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	if s.comp == nil {
		writeError(w, http.StatusServiceUnavailable, "compositing_disabled", "no compositor configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	if err := r.ParseMultipartForm(s.maxUploadMB << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form: "+err.Error())
		return
	}

	form := compositeForm{Template: r.FormValue("template")}
	if form.Template == "" {
		form.Template = "locket"
	}
	if err := s.validate.Struct(form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form fields: "+err.Error())
		return
	}

	art, ok := s.templates[form.Template]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_template",
			fmt.Sprintf("no artwork configured for template %q", form.Template))
		return
	}

	files := r.MultipartForm.File["engravings"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing engravings files")
		return
	}
	names := r.MultipartForm.Value["names"]

	pets := make([]compositor.PetEngraving, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "failed to open engraving file")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "failed to read engraving file")
			return
		}
		img, _, err := utils.DecodeImage(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("engraving %d is not a decodable image", i))
			return
		}
		pet := compositor.PetEngraving{Image: img}
		if i < len(names) {
			pet.Name = names[i]
		}
		pets = append(pets, pet)
	}

	composited, err := s.comp.Composite(art, form.Template, pets)
	if err != nil {
		writeError(w, http.StatusBadRequest, "composite_failed", err.Error())
		return
	}
	encoded, err := utils.EncodePNG(composited)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded); err != nil {
		s.logger.Error("failed to write composite response", "error", err)
	}
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing to do but log.
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

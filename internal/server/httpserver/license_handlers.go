package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/dmitrijs2005/rentdesk/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipart framing allowance on top of the image itself
const multipartOverhead = 1 << 20

type uploadResponse struct {
	ID          string `json:"id"`
	FileURL     string `json:"file_url"`
	LicenseType string `json:"license_type"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

func (s *Server) uploadLicense(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, common.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(common.MaxUploadSize + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeServiceError(w, r, common.ErrPayloadTooLarge)
			return
		}
		s.writeServiceError(w, r, &validationError{msg: "malformed multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeServiceError(w, r, &validationError{msg: "file is required"})
		return
	}
	defer file.Close()

	// one byte past the ceiling is enough for the size check
	data, err := io.ReadAll(io.LimitReader(file, common.MaxUploadSize+1))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	license, err := s.licenses.Upload(r.Context(), sessionOf(r).Email, services.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		LicenseType: r.FormValue("license_type"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, uploadResponse{
		ID:          license.ID,
		FileURL:     license.FileURL,
		LicenseType: license.LicenseType,
		Status:      string(license.Status),
		Message:     "license uploaded successfully",
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByEmail(r.Context(), sessionOf(r).Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) myLicenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.licenses.MyLicenses(r.Context(), sessionOf(r).Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	obj, err := s.licenses.OpenFile(r.Context(), chi.URLParam(r, "bucket"), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	if err := writeFile(w, name, obj); err != nil {
		s.logger.Warn(r.Context(), "failed to stream file", "file", name, "error", err)
	}
}

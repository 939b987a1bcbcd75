package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
)

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.properties.List(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, props, s.logger)
}

// handleGetProperty returns the property with its current channel
// membership and per-channel values.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	prop, err := s.properties.Get(r.Context(), chi.URLParam(r, "name"), true)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, prop, s.logger)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Property](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.properties.Create(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithProperty(w, r, name)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Property](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.properties.Update(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithProperty(w, r, payload.Name)
}

func (s *Server) handleCreateProperties(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Property](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.properties.CreateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleUpdateProperties(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Property](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.properties.UpdateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.properties.Delete(r.Context(), user, chi.URLParam(r, "name")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleAddPropertyToChannel attaches the property to one channel; the
// request body is a property payload carrying the value to set.
func (s *Server) handleAddPropertyToChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Property](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	err = s.properties.AddSingle(r.Context(), user, name, chi.URLParam(r, "channel"), payload.Value)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithProperty(w, r, name)
}

func (s *Server) handleRemovePropertyFromChannel(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	err := s.properties.RemoveSingle(r.Context(), user, chi.URLParam(r, "name"), chi.URLParam(r, "channel"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) respondWithProperty(w http.ResponseWriter, r *http.Request, name string) {
	prop, err := s.properties.Get(r.Context(), name, false)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, prop, s.logger)
}

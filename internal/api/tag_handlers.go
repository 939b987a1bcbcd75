package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tags, s.logger)
}

// handleGetTag returns the tag with its current channel membership.
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	tag, err := s.tags.Get(r.Context(), chi.URLParam(r, "name"), true)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tag, s.logger)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Tag](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.tags.Create(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithTag(w, r, name)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Tag](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.tags.Update(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithTag(w, r, payload.Name)
}

func (s *Server) handleCreateTags(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Tag](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.tags.CreateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Tag](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.tags.UpdateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.tags.Delete(r.Context(), user, chi.URLParam(r, "name")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleAddTagToChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	user := auth.UserFromContext(r.Context())
	if err := s.tags.AddSingle(r.Context(), user, name, chi.URLParam(r, "channel")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithTag(w, r, name)
}

func (s *Server) handleRemoveTagFromChannel(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	err := s.tags.RemoveSingle(r.Context(), user, chi.URLParam(r, "name"), chi.URLParam(r, "channel"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) respondWithTag(w http.ResponseWriter, r *http.Request, name string) {
	tag, err := s.tags.Get(r.Context(), name, false)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tag, s.logger)
}

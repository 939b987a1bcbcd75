package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/domain"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
)

// handleSearchChannels runs a directory query built from the URL parameters.
func (s *Server) handleSearchChannels(w http.ResponseWriter, r *http.Request) {
	chans, err := s.channels.Search(r.Context(), r.URL.Query())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, chans, s.logger)
}

// handleCombinedChannels returns matching channels together with the total
// match count.
func (s *Server) handleCombinedChannels(w http.ResponseWriter, r *http.Request) {
	result, err := s.channels.Combined(r.Context(), r.URL.Query())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleCountChannels returns only the match count of a query.
func (s *Server) handleCountChannels(w http.ResponseWriter, r *http.Request) {
	count, err := s.channels.Count(r.Context(), r.URL.Query())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, count, s.logger)
}

// handleScrollChannels serves one scroll page; the cursor URL parameter is
// empty on the first page.
func (s *Server) handleScrollChannels(w http.ResponseWriter, r *http.Request) {
	page, err := s.channels.Scroll(r.Context(), r.URL.Query(), chi.URLParam(r, "cursor"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, page, s.logger)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.channels.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, ch, s.logger)
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Channel](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.channels.Create(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.respondWithChannel(w, r, name)
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := decode[domain.Channel](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.channels.Update(r.Context(), user, name, payload); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	// An update may have renamed the channel.
	s.respondWithChannel(w, r, payload.Name)
}

func (s *Server) handleCreateChannels(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Channel](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.channels.CreateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleUpdateChannels(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodeList[domain.Channel](r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.channels.UpdateAll(r.Context(), user, payloads); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.channels.Delete(r.Context(), user, chi.URLParam(r, "name")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// respondWithChannel returns the stored record so clients see the
// canonicalized owners, not their own payload echoed back.
func (s *Server) respondWithChannel(w http.ResponseWriter, r *http.Request, name string) {
	ch, err := s.channels.Get(r.Context(), name)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, ch, s.logger)
}

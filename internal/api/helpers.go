package api

import (
	"encoding/json/v2"
	"net/http"

	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
)

// decode reads a JSON request body into a fresh T.
func decode[T any](r *http.Request) (*T, error) {
	var v T
	if err := json.UnmarshalRead(r.Body, &v); err != nil {
		return nil, domainerrors.Validationf("malformed request body: %v", err)
	}
	return &v, nil
}

// decodeList reads a JSON array request body.
func decodeList[T any](r *http.Request) ([]*T, error) {
	var v []*T
	if err := json.UnmarshalRead(r.Body, &v); err != nil {
		return nil, domainerrors.Validationf("malformed request body: %v", err)
	}
	return v, nil
}

package service

import (
	"errors"

	domainerrors "github.com/fitcoach/fitcoach-server/internal/errors"
	"github.com/fitcoach/fitcoach-server/internal/store"
)

// translate maps store errors onto domain errors. Other errors pass through.
func translate(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(notFound)
	case errors.Is(err, store.ErrInvalidInput):
		var se *store.Error
		errors.As(err, &se)
		return domainerrors.Validation(se.Message)
	case store.IsUnavailable(err):
		return domainerrors.StorageUnavailable(err)
	default:
		return err
	}
}

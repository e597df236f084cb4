package httptransport

import (
	"errors"

	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/ports/errcode"
)

func FromServiceError(err error) errcode.Code {
	switch {
	case errors.Is(err, errs.ErrCoinNotFound):
		return errcode.NotFoundCoin
	case errors.Is(err, errs.ErrNoSnapshot):
		return errcode.NotFoundCache
	case errors.Is(err, errs.ErrInvalidSymbol):
		return errcode.BadRequest
	case errors.Is(err, errs.ErrFavoritesIO):
		return errcode.FavoritesIO
	default:
		return errcode.Internal
	}
}

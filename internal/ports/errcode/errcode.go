package errcode

type Code string

const (
	NotFoundCoin  Code = "NOT_FOUND_COIN"
	NotFoundCache Code = "NOT_FOUND_CACHE"

	FavoritesIO Code = "FAVORITES_IO"

	BadRequest Code = "BAD_REQUEST"
	Internal   Code = "INTERNAL_ERROR"
)

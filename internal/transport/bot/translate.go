package bot

import "github.com/NastyaGoryachaya/coin-dashboard/internal/ports/errcode"

func translateBotError(code errcode.Code) string {
	switch code {
	case errcode.NotFoundCoin:
		return "Валюта не найдена"
	case errcode.BadRequest:
		return "Некорректный символ монеты"
	case errcode.FavoritesIO:
		return "Не удалось сохранить избранное"
	default:
		return "Внутренняя ошибка сервиса, попробуйте позже"
	}
}

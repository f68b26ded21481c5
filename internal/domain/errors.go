package domain

import "errors"

var (
	// ErrItemNotFound возвращается, когда по ссылке на сообщение
	// не найден отслеживаемый пункт дайджеста.
	ErrItemNotFound = errors.New("digest item not found")

	// ErrDuplicateFeedback возвращается при повторном отзыве той же пары
	// пользователь/пункт.
	ErrDuplicateFeedback = errors.New("duplicate feedback")

	// ErrRefConflict возвращается, когда ссылка на сообщение уже занята
	// другим пунктом дайджеста.
	ErrRefConflict = errors.New("message ref already bound")

	// ErrStoreUnavailable помечает инфраструктурный отказ хранилища.
	ErrStoreUnavailable = errors.New("feedback store unavailable")

	// ErrNoChannelConfigured возвращается, когда для шага рассылки
	// не настроен канал назначения.
	ErrNoChannelConfigured = errors.New("no channel configured")
)

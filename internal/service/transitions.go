package service

import (
	"fmt"

	"github.com/shenikar/waste_incident_sync/internal/models"
)

type transitionKey struct {
	from models.Status
	to   models.Status
}

// TransitionRule - разрешенный переход и его требования
type TransitionRule struct {
	RequiresProof bool
}

// transitions - полная таблица разрешенных переходов статуса.
// Пары, которых нет в таблице, запрещены.
var transitions = map[transitionKey]TransitionRule{
	{models.StatusReported, models.StatusInProgress}: {},
	{models.StatusReported, models.StatusRejected}:   {},
	{models.StatusInProgress, models.StatusRejected}: {},
	{models.StatusReported, models.StatusResolved}:   {RequiresProof: true},
	{models.StatusInProgress, models.StatusResolved}: {RequiresProof: true},
}

// CheckTransition ищет правило для перехода from -> to.
// Переход в тот же статус не проверяется здесь: это no-op.
func CheckTransition(from, to models.Status) (TransitionRule, error) {
	if from.IsTerminal() {
		return TransitionRule{}, &models.TransitionError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("%s is terminal", from),
			Err:    models.ErrInvalidTransition,
		}
	}
	rule, ok := transitions[transitionKey{from, to}]
	if !ok {
		return TransitionRule{}, &models.TransitionError{
			From:   from,
			To:     to,
			Reason: "transition is not allowed",
			Err:    models.ErrInvalidTransition,
		}
	}
	return rule, nil
}

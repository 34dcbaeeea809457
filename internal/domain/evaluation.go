package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is a 1..5 rating one trip participant leaves for another.
type Evaluation struct {
	ID          uuid.UUID `json:"id"`
	TripID      uuid.UUID `json:"trip_id"`
	EvaluatorID uuid.UUID `json:"evaluator_id"`
	EvaluatedID uuid.UUID `json:"evaluated_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EvaluationFilter narrows an evaluation listing. Nil fields are ignored.
type EvaluationFilter struct {
	TripID      *uuid.UUID
	EvaluatorID *uuid.UUID
	EvaluatedID *uuid.UUID
}

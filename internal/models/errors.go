package models

import "errors"

// Application-wide standard errors
var (
	// Scene / chronicle errors
	ErrSceneNotFound      = errors.New("scene not found")
	ErrChronicleConcluded = errors.New("chronicle has concluded and no longer accepts turns")
	ErrTurnInProgress     = errors.New("a turn for this scene is already being resolved")
	ErrBudgetExceeded     = errors.New("submitted actions exceed the per-turn action point budget")

	// Oracle errors
	ErrOracleFailure   = errors.New("oracle request failed")
	ErrOracleMalformed = errors.New("oracle returned malformed output")

	// Persistence errors
	ErrPersistenceFailure = errors.New("failed to persist scene state")

	// General request errors
	ErrInvalidInput = errors.New("invalid input data")
)

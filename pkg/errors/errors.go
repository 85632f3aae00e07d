package errors

import "errors"

// Engine
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Games & sessions
var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameFinished    = errors.New("game already finished")
	ErrGameNotFinished = errors.New("game not finished")
	ErrNoCardWinners   = errors.New("card winners required to finish game")
	ErrSessionNotFound = errors.New("session not found")
	ErrLockBusy        = errors.New("game is busy, retry later")
)

// Speech & transcription
var (
	ErrUnsupportedAudio = errors.New("unsupported audio content type")
	ErrEmptyAudio       = errors.New("empty_audio_payload")
)

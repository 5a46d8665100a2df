package domain

import "errors"

// ErrValidation marca entradas rechazadas antes de tocar la red.
var ErrValidation = errors.New("validation failed")

package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

var ErrInvalidInput = errors.New("invalid input")

var ErrInsufficientFunds = errors.New("insufficient funds")

var ErrInsufficientHoldings = errors.New("insufficient holdings")

var ErrInvalidToken = errors.New("invalid token")

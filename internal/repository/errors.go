package repository

import "errors"

var (
	// ErrNotFound se devuelve cuando el id (o email) no existe en el store.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken se devuelve cuando el email ya pertenece a otro registro.
	ErrEmailTaken = errors.New("email already registered")
)

package storage

import "errors"

// Ошибки таблицы files.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
)

// Ошибки хранилища объектов.
var (
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrInvalidKey   = errors.New("invalid storage key")
)

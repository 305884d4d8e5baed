package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotASequencingPath = errors.New("not a sequencing path")
	ErrNotALaneletName    = errors.New("not a lanelet name")
	ErrNotAReference      = errors.New("not a reference file")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
)

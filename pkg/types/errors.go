package types

import "errors"

// Domain errors for source classification
var (
	ErrUnsupportedSource = errors.New("unsupported source type")
	ErrUnknownConverter  = errors.New("unknown docx converter")
)

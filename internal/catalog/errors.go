package catalog

import "errors"

var (
	// ErrProductIDRequired is returned when an update has no product id.
	ErrProductIDRequired = errors.New("catalog: product id required")
	// ErrInvalidPresentation flags an unknown presentation type.
	ErrInvalidPresentation = errors.New("catalog: invalid presentation type")
	// ErrNegativeValue flags a negative quantity or price.
	ErrNegativeValue = errors.New("catalog: negative value")
	// ErrImageRecordInvalid flags an image record without a path or product.
	ErrImageRecordInvalid = errors.New("catalog: invalid image record")
)

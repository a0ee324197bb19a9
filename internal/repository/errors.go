// Package repository implements message persistence on top of sqlx.
package repository

import "errors"

var ErrInvalidPagination = errors.New("limit must be within [1,100] and offset must not be negative")

// Package repository contains the persistence layer: GORM-backed stores over the
// embedded sqlite database plus the file-backed uptime target catalog.
package repository

import "errors"

// ErrStorage is the single storage failure variant surfaced to callers; the
// underlying driver error is wrapped alongside it.
var ErrStorage = errors.New("storage error")

// ErrNotFound indicates the requested entity row does not exist.
var ErrNotFound = errors.New("not found")

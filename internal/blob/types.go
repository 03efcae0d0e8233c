// Package blob exposes the artifact store used for plan exports and selects a
// backend from configuration.
package blob

import (
	"mvpplanner/internal/blob/core"
)

type (
	// Driver identifies an artifact store backend.
	Driver = core.Driver
	// PutOptions describes an artifact being written.
	PutOptions = core.PutOptions
	// SignedURLOptions configures a download link.
	SignedURLOptions = core.SignedURLOptions
	// Info describes a stored artifact.
	Info = core.Info
	// Store is the artifact store interface.
	Store = core.Store
)

const (
	// DriverFilesystem is the local directory driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-process driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrUnsupported indicates a driver lacks an optional capability.
	ErrUnsupported = core.ErrUnsupported
	// ErrNotFound indicates a missing artifact.
	ErrNotFound = core.ErrNotFound
	// ErrExists indicates a Put to an existing key.
	ErrExists = core.ErrExists
	// ErrInvalidKey indicates a key the driver cannot address.
	ErrInvalidKey = core.ErrInvalidKey
)

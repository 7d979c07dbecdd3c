package domain

import "errors"

var (
	// ErrManifestMissing is returned when the dependency manifest is absent from the source tree.
	ErrManifestMissing = errors.New("dependency manifest not found")
	// ErrSourceMissing is returned when the application source tree cannot be found.
	ErrSourceMissing = errors.New("application source not found")
	// ErrInvalidRequirement is returned for a manifest line that is not a valid specifier.
	ErrInvalidRequirement = errors.New("invalid requirement")
	// ErrDependencyConflict is returned when two manifest entries cannot both be satisfied.
	ErrDependencyConflict = errors.New("dependency conflict")
	// ErrBuildFailed is returned when the image build reports an error. No image is produced.
	ErrBuildFailed = errors.New("image build failed")

	// ErrPortMismatch is returned when the exposed port and the launch port differ.
	ErrPortMismatch = errors.New("exposed port does not match launch port")
	// ErrLoopbackBind is returned when the launch command binds a loopback address only.
	ErrLoopbackBind = errors.New("launch command binds loopback only")
	// ErrInvalidRecipe is returned when a recipe fails validation.
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrInvalidTransition is returned for a lifecycle transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrNotReady is returned when an instance does not accept connections in time.
	ErrNotReady = errors.New("instance not ready")
)

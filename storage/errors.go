package storage

import "fmt"

// Make sure the error types satisfy the error interface.
var (
	_ error = (*ProvisioningError)(nil)
	_ error = (*ConnectionConfigurationError)(nil)
	_ error = (*ResourceCreationError)(nil)
	_ error = (*UploadError)(nil)
	_ error = (*ResourceNotFoundError)(nil)
	_ error = (*CacheRestoreError)(nil)
)

// ProvisioningError is returned when launching a self-hosted storage resource
// fails (daemon unreachable, port bound, image pull failure). It is fatal and
// never retried automatically.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("starting storage failed: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ConnectionConfigurationError is returned when the running resource's network
// address cannot be resolved. Fatal.
type ConnectionConfigurationError struct {
	InstanceID string
}

func (e *ConnectionConfigurationError) Error() string {
	return fmt.Sprintf("could not detect an address for storage instance %q", e.InstanceID)
}

// ResourceCreationError is returned when bucket creation fails, either because
// the backend reports the generated name already exists under different
// ownership or because a transient error survived the retry budget.
type ResourceCreationError struct {
	Bucket string
	Err    error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("creating bucket %q failed: %v", e.Bucket, e.Err)
}

func (e *ResourceCreationError) Unwrap() error { return e.Err }

// UploadError wraps a failed object upload, carrying the underlying transport
// error unmodified.
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %q to bucket %q failed: %v", e.Key, e.Bucket, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ResourceNotFoundError is returned when an operation targets a bucket that
// does not exist.
type ResourceNotFoundError struct {
	Bucket string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("attempting to access a non-existing bucket %q", e.Bucket)
}

// CacheRestoreError is returned when a cached backend's underlying resource no
// longer exists. The caller must treat it as fatal, silently re-provisioning
// would orphan the cache entry's view of reality.
type CacheRestoreError struct {
	Type       string
	InstanceID string
}

func (e *CacheRestoreError) Error() string {
	return fmt.Sprintf("cached %s storage %q is not available anymore", e.Type, e.InstanceID)
}

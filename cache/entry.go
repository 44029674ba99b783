package cache

// Entry is a serialized snapshot of a provisioned storage backend. It carries
// everything needed to reconstruct a live handle without re-provisioning: the
// connection parameters, the compute-resource handle for self-hosted backends,
// and the ordered lists of owned buckets.
type Entry struct {
	// Discriminator identifying which backend implementation produced the entry.
	Type string `json:"type"`

	// InstanceID is the compute-resource handle (e.g. a container ID). Empty for
	// backends that are not self-hosted.
	InstanceID string `json:"instance_id,omitempty"`

	Address   string `json:"address"`
	Port      int    `json:"port"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`

	// Owned bucket names by role, in allocation order.
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

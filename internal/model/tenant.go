package model

// ProvisionResult is what the control plane reports after a create request.
type ProvisionResult struct {
	Success  bool
	Metadata TenantMetadata
}

// TenantMetadata describes a tenant database as the control plane sees it.
type TenantMetadata struct {
	DBID     string `json:"DbId"`
	Hostname string `json:"Hostname"`
	Name     string `json:"Name"`
}

package kinds

// Payload shapes for the bridged MAAS resources. Validator tags define the
// minimum shape a backend payload must satisfy before it is cached or
// served; fields the bridge never inspects stay untagged and tolerant.

// Zone is a physical availability zone.
type Zone struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Pool is a machine resource pool.
type Pool struct {
	Name string `json:"name"`
}

// Machine is a deployable machine known to the region controller.
type Machine struct {
	SystemID     string   `json:"system_id" validate:"required"`
	Hostname     string   `json:"hostname" validate:"required"`
	FQDN         string   `json:"fqdn"`
	Architecture string   `json:"architecture"`
	StatusName   string   `json:"status_name"`
	PowerState   string   `json:"power_state" validate:"omitempty,oneof=on off error unknown"`
	CPUCount     int      `json:"cpu_count" validate:"gte=0"`
	MemoryMB     int      `json:"memory" validate:"gte=0"`
	Zone         Zone     `json:"zone"`
	Pool         Pool     `json:"pool"`
	TagNames     []string `json:"tag_names"`
	IPAddresses  []string `json:"ip_addresses" validate:"dive,ip"`
}

// Device is a non-deployable network device.
type Device struct {
	SystemID string `json:"system_id" validate:"required"`
	Hostname string `json:"hostname" validate:"required"`
	Parent   string `json:"parent"`
}

// Subnet is an addressable network segment.
type Subnet struct {
	ID        int    `json:"id" validate:"required"`
	Name      string `json:"name"`
	CIDR      string `json:"cidr" validate:"required,cidr"`
	GatewayIP string `json:"gateway_ip" validate:"omitempty,ip"`
	Space     string `json:"space"`
	Managed   bool   `json:"managed"`
}

// Domain is a DNS domain served by the region.
type Domain struct {
	ID            int    `json:"id"`
	Name          string `json:"name" validate:"required"`
	Authoritative bool   `json:"authoritative"`
	TTL           int    `json:"ttl" validate:"gte=0"`
}

// Tag is a machine tag.
type Tag struct {
	Name       string `json:"name" validate:"required"`
	Comment    string `json:"comment"`
	Definition string `json:"definition"`
}

package pairing

// Descriptor is the endpoint and optional bearer token decoded from a scanned
// QR code or deep link. It is never mutated; a new scan replaces it wholesale.
type Descriptor struct {
	Endpoint  string `json:"endpoint"`
	AuthToken string `json:"authToken,omitempty"`
}

// HasToken reports whether the descriptor carries a bearer credential.
func (d Descriptor) HasToken() bool {
	return d.AuthToken != ""
}

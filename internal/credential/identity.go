package credential

import "fmt"

// Identity is who this device claims to be. It is immutable after construction.
type Identity struct {
	projectID  string
	location   string
	registryID string
	deviceID   string
}

// NewIdentity creates a device identity. All fields are required.
func NewIdentity(projectID, location, registryID, deviceID string) (Identity, error) {
	switch {
	case projectID == "":
		return Identity{}, fmt.Errorf("%w: project id is empty", ErrInvalidIdentity)
	case location == "":
		return Identity{}, fmt.Errorf("%w: location is empty", ErrInvalidIdentity)
	case registryID == "":
		return Identity{}, fmt.Errorf("%w: registry id is empty", ErrInvalidIdentity)
	case deviceID == "":
		return Identity{}, fmt.Errorf("%w: device id is empty", ErrInvalidIdentity)
	}
	return Identity{
		projectID:  projectID,
		location:   location,
		registryID: registryID,
		deviceID:   deviceID,
	}, nil
}

func (i Identity) ProjectID() string  { return i.projectID }
func (i Identity) Location() string   { return i.location }
func (i Identity) RegistryID() string { return i.registryID }
func (i Identity) DeviceID() string   { return i.deviceID }

// ClientID returns the fully qualified device path the broker expects as
// the MQTT client identifier.
//
// Example: projects/p/locations/europe-west1/registries/r/devices/hp-01
func (i Identity) ClientID() string {
	return fmt.Sprintf("projects/%s/locations/%s/registries/%s/devices/%s",
		i.projectID, i.location, i.registryID, i.deviceID)
}

// Issuer returns the token issuer claim derived from the device id.
func (i Identity) Issuer() string {
	return i.deviceID
}

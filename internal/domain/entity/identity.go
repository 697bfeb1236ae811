package entity

const (
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

// Identity is the resolved participant identity: an opaque user id plus a
// role tag. It is produced by the external identity provider and treated as
// an immutable value everywhere in this service.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

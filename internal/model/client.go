package model

import "time"

// Client is a customer of the rental business.
type Client struct {
	ID        uint64    `json:"id"`
	Prenom    string    `json:"prenom"`
	Nom       string    `json:"nom"`
	Email     string    `json:"email"`
	Telephone string    `json:"telephone"`
	Adresse   string    `json:"adresse"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName is "prenom nom", as copied onto reservations and deliveries.
func (c Client) FullName() string {
	switch {
	case c.Prenom == "":
		return c.Nom
	case c.Nom == "":
		return c.Prenom
	}
	return c.Prenom + " " + c.Nom
}

package mmodel

import "time"

// User is the minimal identity projection the coherency core needs; identity
// management itself lives behind the SSO collaborator.
type User struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	GivenName  string     `json:"givenName"`
	FamilyName string     `json:"familyName"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
}

package domain

import "time"

type Client struct {
	ID        string
	CompanyID string

	FirstName string
	LastName  string
	Email     string
	Phone     string

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func (c *Client) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

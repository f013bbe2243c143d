package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ngo-fms/fms/internal/users"
)

// RegistryCLI runs registry maintenance outside the HTTP surface.
type RegistryCLI struct {
	service *users.Service
}

// NewRegistryCLI constructs a RegistryCLI.
func NewRegistryCLI(service *users.Service) *RegistryCLI {
	return &RegistryCLI{service: service}
}

// Seed fills an empty registry with the bootstrap accounts.
func (c *RegistryCLI) Seed(ctx context.Context) error {
	if c == nil || c.service == nil {
		return errors.New("registry cli: service not configured")
	}
	return c.service.Bootstrap(ctx, users.SeedAccounts())
}

// Pending writes the entries awaiting approval as a table.
func (c *RegistryCLI) Pending(ctx context.Context, out io.Writer) (int, error) {
	if c == nil || c.service == nil {
		return 0, errors.New("registry cli: service not configured")
	}
	pending, err := c.service.List(ctx, users.ListFilter{Status: users.StatusPending})
	if err != nil {
		return 0, err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tREGISTERED")
	for _, u := range pending {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Email, u.FullName, u.Role, u.CreatedAt.Format("2006-01-02"))
	}
	return len(pending), tw.Flush()
}

// Approve approves one pending entry.
func (c *RegistryCLI) Approve(ctx context.Context, email string) (users.User, error) {
	if c == nil || c.service == nil {
		return users.User{}, errors.New("registry cli: service not configured")
	}
	return c.service.Approve(ctx, email)
}

// Package seed loads contact fixtures into the contacts table.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/phone"
)

type ContactWriter interface {
	Create(ctx context.Context, c *model.Contact) error
}

// ReadContacts parses a CSV with a header row. Recognised columns are
// phone, first_name, last_name, email, brokerage_name and tags ("|" separated).
func ReadContacts(r io.Reader, region string) ([]model.Contact, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["phone"]; !ok {
		return nil, errors.New("missing phone column")
	}
	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var contacts []model.Contact
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c := model.Contact{
			FirstName:     get(rec, "first_name"),
			LastName:      get(rec, "last_name"),
			Email:         get(rec, "email"),
			BrokerageName: get(rec, "brokerage_name"),
			Tags:          []string{},
		}
		if raw := get(rec, "phone"); raw != "" {
			if c.Phone, err = phone.Normalize(raw, region); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		for _, tag := range strings.Split(get(rec, "tags"), "|") {
			if tag = strings.TrimSpace(tag); tag != "" {
				c.Tags = append(c.Tags, tag)
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

// Contacts writes every contact and returns how many were stored.
func Contacts(ctx context.Context, w ContactWriter, contacts []model.Contact, log zerolog.Logger) (int, error) {
	for i := range contacts {
		if err := w.Create(ctx, &contacts[i]); err != nil {
			return i, fmt.Errorf("seed contact %q: %w", contacts[i].Phone, err)
		}
		log.Debug().Str("contact_id", contacts[i].ID).Str("phone", contacts[i].Phone).Msg("seeded contact")
	}
	return len(contacts), nil
}

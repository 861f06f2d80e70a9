package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/tmcarr/heimdall/models"
)

// Directory is the process-wide read-only cache of department, talkgroup, and
// sending-identity configuration. The secret blob is fetched once behind a
// single-flight guard; concurrent cold-start readers share one fetch, and the
// parsed blob is never mutated afterwards.
type Directory struct {
	source          SecretSource
	defaultIdentity string

	once sync.Once
	blob *models.DirectoryBlob
	err  error

	byNumber map[string]*models.SendingIdentity
}

// NewDirectory creates a directory backed by the given secret source
func NewDirectory(source SecretSource, defaultIdentity string) *Directory {
	return &Directory{
		source:          source,
		defaultIdentity: defaultIdentity,
	}
}

func (d *Directory) ensure(ctx context.Context) error {
	d.once.Do(func() {
		data, err := d.source.Fetch(ctx)
		if err != nil {
			d.err = fmt.Errorf("failed to fetch directory secret: %w", err)
			return
		}
		var blob models.DirectoryBlob
		if err := json.Unmarshal(data, &blob); err != nil {
			d.err = fmt.Errorf("failed to parse directory secret: %w", err)
			return
		}
		d.blob = &blob

		d.byNumber = make(map[string]*models.SendingIdentity, len(blob.Identities))
		for name, id := range blob.Identities {
			id := id
			if id.Name == "" {
				id.Name = name
			}
			d.byNumber[id.Number] = &id
		}
	})
	return d.err
}

// Department returns the configuration for a department ID, nil when unknown
func (d *Directory) Department(ctx context.Context, id string) (*models.Department, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	dept, ok := d.blob.Departments[id]
	if !ok {
		return nil, nil
	}
	return &dept, nil
}

// Departments returns all configured departments keyed by ID
func (d *Directory) Departments(ctx context.Context) (map[string]models.Department, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.blob.Departments, nil
}

// Talkgroup returns the configuration for a talkgroup ID, nil when unknown
func (d *Directory) Talkgroup(ctx context.Context, id int64) (*models.Talkgroup, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	tg, ok := d.blob.Talkgroups[strconv.FormatInt(id, 10)]
	if !ok {
		return nil, nil
	}
	return &tg, nil
}

// Identity resolves a logical identity name to its number and credentials,
// nil when the name is not configured
func (d *Directory) Identity(ctx context.Context, name string) (*models.SendingIdentity, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	id, ok := d.blob.Identities[name]
	if !ok {
		return nil, nil
	}
	if id.Name == "" {
		id.Name = name
	}
	return &id, nil
}

// IdentityByNumber finds the identity configured for an inbound destination
// number, nil when no channel is configured for it
func (d *Directory) IdentityByNumber(ctx context.Context, number string) (*models.SendingIdentity, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.byNumber[number], nil
}

// DefaultIdentity returns the global fallback identity
func (d *Directory) DefaultIdentity(ctx context.Context) (*models.SendingIdentity, error) {
	return d.Identity(ctx, d.defaultIdentity)
}

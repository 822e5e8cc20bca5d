package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/louisbranch/personql/internal/services/person/storage"
)

// Resolver is the Query root. Each exported method backs the Query field of
// the same name; parsing fails if a field has no method.
type Resolver struct {
	store storage.PersonStore
}

// GetAllPerson resolves Query.getAllPerson.
func (r *Resolver) GetAllPerson(ctx context.Context) ([]*personResolver, error) {
	persons, err := r.store.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	resolved := make([]*personResolver, 0, len(persons))
	for _, person := range persons {
		resolved = append(resolved, &personResolver{person: person})
	}
	return resolved, nil
}

type findPersonArgs struct {
	Email string
}

// FindPerson resolves Query.findPerson. A miss yields null.
func (r *Resolver) FindPerson(ctx context.Context, args findPersonArgs) (*personResolver, error) {
	person, ok, err := r.store.FindPersonByEmail(ctx, args.Email)
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &personResolver{person: person}, nil
}

type personResolver struct {
	person storage.Person
}

func (p *personResolver) ID() (int32, error) {
	if p.person.ID > math.MaxInt32 || p.person.ID < math.MinInt32 {
		return 0, fmt.Errorf("person id %d overflows Int", p.person.ID)
	}
	return int32(p.person.ID), nil
}

func (p *personResolver) Name() string {
	return p.person.Name
}

func (p *personResolver) Email() string {
	return p.person.Email
}

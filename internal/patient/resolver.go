package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Resolver turns a caller-supplied patient identifier into a canonical
// patient row. Callers may pass either a patient code or a raw numeric id;
// the code lookup always runs first so a numeric-looking code still wins.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Patient, error) {
	p, err := r.repo.GetPatientByCode(ctx, identifier)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("lookup patient by code: %w", err)
	}

	id, convErr := strconv.ParseInt(identifier, 10, 64)
	if convErr != nil {
		return nil, ErrPatientNotFound
	}

	p, err = r.repo.GetPatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("lookup patient by id: %w", err)
	}

	return p, nil
}

// ResolveDoctor validates a doctor reference. id 0 means "no doctor" and
// resolves to nil.
func (r *Resolver) ResolveDoctor(ctx context.Context, id int64) (*Doctor, error) {
	if id == 0 {
		return nil, nil
	}

	d, err := r.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("lookup doctor: %w", err)
	}

	return d, nil
}

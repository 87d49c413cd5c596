package patient

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound = errors.New("patient not found for provided patient code or id")
	ErrDoctorNotFound  = errors.New("doctor not found")
)

// Repository is the contract against the identity stores. The rest of the
// clinic application owns patient and doctor CRUD; this service only reads.
type Repository interface {
	GetPatientByCode(ctx context.Context, code string) (*Patient, error)
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
}

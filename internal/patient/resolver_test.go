package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byCode  map[string]*Patient
	byID    map[int64]*Patient
	doctors map[int64]*Doctor
}

func (f *fakeRepo) GetPatientByCode(_ context.Context, code string) (*Patient, error) {
	if p, ok := f.byCode[code]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		return d, nil
	}
	return nil, ErrDoctorNotFound
}

func TestResolveByCode(t *testing.T) {
	repo := &fakeRepo{
		byCode: map[string]*Patient{"PT-000042": {ID: 42, Code: "PT-000042"}},
		byID:   map[int64]*Patient{42: {ID: 42, Code: "PT-000042"}},
	}
	r := NewResolver(repo)

	p, err := r.Resolve(context.Background(), "PT-000042")
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.ID)
}

func TestResolveNumericFallsBackToID(t *testing.T) {
	repo := &fakeRepo{
		byCode: map[string]*Patient{},
		byID:   map[int64]*Patient{7: {ID: 7, Code: "PT-000007"}},
	}
	r := NewResolver(repo)

	p, err := r.Resolve(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
}

// A purely numeric code must win over an identity with the same number.
func TestResolveNumericCodeTriedAsCodeFirst(t *testing.T) {
	repo := &fakeRepo{
		byCode: map[string]*Patient{"7": {ID: 99, Code: "7"}},
		byID:   map[int64]*Patient{7: {ID: 7, Code: "PT-000007"}},
	}
	r := NewResolver(repo)

	p, err := r.Resolve(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, int64(99), p.ID)
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver(&fakeRepo{byCode: map[string]*Patient{}, byID: map[int64]*Patient{}})

	_, err := r.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	_, err = r.Resolve(context.Background(), "123")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestResolveDoctor(t *testing.T) {
	repo := &fakeRepo{doctors: map[int64]*Doctor{5: {ID: 5, FullName: "Dr. Grey"}}}
	r := NewResolver(repo)

	d, err := r.ResolveDoctor(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Grey", d.FullName)

	d, err = r.ResolveDoctor(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = r.ResolveDoctor(context.Background(), 6)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

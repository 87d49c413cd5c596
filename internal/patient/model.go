package patient

import "time"

type Patient struct {
	ID        int64
	Code      string
	FullName  string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        int64
	FullName  string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

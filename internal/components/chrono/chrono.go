package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	Location() *time.Location
}

// StandardImpl is the standard implementation of API using the standard library.
type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl creates a clock reporting times in the given IANA location,
// an empty name means UTC.
func NewStandardImpl(name string) (StandardImpl, error) {
	if name == "" {
		return StandardImpl{location: time.UTC}, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.Location())
}

func (s StandardImpl) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Fixed is an API that always returns the same time.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

func (f Fixed) Location() *time.Location {
	return time.Time(f).Location()
}

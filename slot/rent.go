package slot

// Rent prices persistent storage: the balance a slot of size bytes must
// hold to stay stored.
type Rent interface {
	MinimumBalance(size int) uint64
}

// RentFunc adapts a function to Rent.
type RentFunc func(size int) uint64

func (f RentFunc) MinimumBalance(size int) uint64 { return f(size) }

// AccountOverhead is the per-slot byte overhead charged on top of the data.
const AccountOverhead = 128

// LinearRent charges (AccountOverhead + size) * PerByteYear * ExemptYears.
type LinearRent struct {
	PerByteYear uint64
	ExemptYears uint64
}

// DefaultRent matches the hosting economy's default parameters.
var DefaultRent = LinearRent{PerByteYear: 3480, ExemptYears: 2}

func (r LinearRent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (AccountOverhead + uint64(size)) * r.PerByteYear * r.ExemptYears
}

package domain

import (
	"strconv"
	"time"
)

// Event represents a ticketed event with a fixed pool of seats.
type Event struct {
	ID       string
	Name     string
	StartsAt time.Time
	PoolSize int
}

// SeatIDs returns the seat ids provisioned for a pool of the given size.
func SeatIDs(poolSize int) []string {
	ids := make([]string, 0, poolSize)
	for i := 1; i <= poolSize; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	return ids
}

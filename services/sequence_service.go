package services

import (
	"context"
	"log"

	"github.com/HSouheill/evently_backend/models"
)

const withdrawalCounter = "withdrawalId"

// Counter is an atomic named sequence
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
	Seed(ctx context.Context, name string, value int64) error
}

// LatestWithdrawalFinder reports the id of the newest withdrawal ("" if none)
type LatestWithdrawalFinder interface {
	LatestWithdrawalID(ctx context.Context) (string, error)
}

// SequenceAllocator assigns "#WITH0001"-style withdrawal ids from a database counter
type SequenceAllocator struct {
	counter Counter
	latest  LatestWithdrawalFinder
}

func NewSequenceAllocator(counter Counter, latest LatestWithdrawalFinder) *SequenceAllocator {
	return &SequenceAllocator{counter: counter, latest: latest}
}

// Seed moves the counter past the newest existing withdrawal. Records written
// before the counter existed would otherwise collide with new ids.
func (a *SequenceAllocator) Seed(ctx context.Context) error {
	id, err := a.latest.LatestWithdrawalID(ctx)
	if err != nil {
		return err
	}
	n, ok := models.ParseWithdrawalNumber(id)
	if !ok {
		n = 0
	}
	if err := a.counter.Seed(ctx, withdrawalCounter, n); err != nil {
		return err
	}
	log.Printf("Withdrawal sequence seeded at %d", n)
	return nil
}

// NextID returns the next withdrawal id
func (a *SequenceAllocator) NextID(ctx context.Context) (string, error) {
	n, err := a.counter.Next(ctx, withdrawalCounter)
	if err != nil {
		return "", err
	}
	return models.FormatWithdrawalID(n), nil
}

package transe

import "time"

// BatchStats describes one committed batch
type BatchStats struct {
	Epoch       int
	Batch       int
	Pairs       int     // positive/negative pairs in the batch
	Updates     int     // pairs with a positive hinge loss
	BatchLoss   float64 // sum of positive hinge losses in this batch
	RunningLoss float64 // epoch accumulator / (Batch + 1)
}

// EpochStats describes one finished epoch
type EpochStats struct {
	Epoch    int
	Loss     float64
	Duration time.Duration
}

// Observer receives training progress. Calls happen on the training
// goroutine after the batch is committed.
type Observer interface {
	OnBatch(BatchStats)
	OnEpoch(EpochStats)
}

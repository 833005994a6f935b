package ooo

// PredictorConfig holds configuration for the bimodal branch predictor.
type PredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 1024.
	BHTSize uint32
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 256.
	BTBSize uint32
}

// DefaultPredictorConfig returns a default configuration.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		BHTSize: 1024,
		BTBSize: 256,
	}
}

// PredictorStats holds statistics for a branch predictor.
type PredictorStats struct {
	// Predictions is the number of fetch-time predictions, including those
	// on paths later flushed.
	Predictions uint64
	// Correct is the number of committed branches predicted correctly.
	Correct uint64
	// Mispredictions is the number of committed branches predicted wrongly.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s PredictorStats) Accuracy() float64 {
	total := s.Correct + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s PredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint32
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// Predictor decides at fetch whether a direct branch is taken and learns
// from committed outcomes.
type Predictor interface {
	Predict(pc uint32) Prediction
	Update(pc uint32, taken bool, target uint32)
	Stats() PredictorStats
	Reset()
}

// NewPredictor returns the predictor implementing policy.
func NewPredictor(policy Policy, config PredictorConfig) Predictor {
	switch policy {
	case PolicyAlwaysTaken:
		return &StaticPredictor{taken: true}
	case PolicyBimodal:
		return NewBimodalPredictor(config)
	default:
		return &StaticPredictor{}
	}
}

// StaticPredictor predicts every branch the same way.
type StaticPredictor struct {
	taken bool
	stats PredictorStats
}

// Predict returns the fixed prediction.
func (p *StaticPredictor) Predict(pc uint32) Prediction {
	p.stats.Predictions++
	return Prediction{Taken: p.taken}
}

// Update records whether the fixed prediction was right.
func (p *StaticPredictor) Update(pc uint32, taken bool, target uint32) {
	if taken == p.taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}
}

// Stats returns the predictor statistics.
func (p *StaticPredictor) Stats() PredictorStats { return p.stats }

// Reset clears the statistics.
func (p *StaticPredictor) Reset() { p.stats = PredictorStats{} }

// BimodalPredictor implements a 2-bit saturating counter (bimodal)
// predictor with a Branch Target Buffer (BTB).
type BimodalPredictor struct {
	// Branch History Table (BHT) - 2-bit saturating counters
	// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//         2=Weakly Taken, 3=Strongly Taken
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats PredictorStats
}

type btbEntry struct {
	pc     uint32
	target uint32
}

// NewBimodalPredictor creates a new bimodal predictor.
func NewBimodalPredictor(config PredictorConfig) *BimodalPredictor {
	bhtSize := config.BHTSize
	btbSize := config.BTBSize

	if bhtSize == 0 {
		bhtSize = 1024
	}
	if btbSize == 0 {
		btbSize = 256
	}

	bp := &BimodalPredictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}
	bp.Reset()

	return bp
}

// Thumb instructions are halfword aligned, so bit 0 is dropped.
func (bp *BimodalPredictor) bhtIndex(pc uint32) uint32 {
	return (pc >> 1) & (bp.bhtSize - 1)
}

func (bp *BimodalPredictor) btbIndex(pc uint32) uint32 {
	return (pc >> 1) & (bp.btbSize - 1)
}

// Predict makes a branch prediction for the given PC.
func (bp *BimodalPredictor) Predict(pc uint32) Prediction {
	pred := Prediction{}

	counter := bp.bht[bp.bhtIndex(pc)]
	pred.Taken = counter >= 2

	btbIdx := bp.btbIndex(pc)
	if bp.btbValid[btbIdx] && bp.btb[btbIdx].pc == pc {
		pred.Target = bp.btb[btbIdx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update trains the predictor with the actual branch outcome.
func (bp *BimodalPredictor) Update(pc uint32, taken bool, target uint32) {
	bhtIdx := bp.bhtIndex(pc)
	counter := bp.bht[bhtIdx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			bp.bht[bhtIdx] = counter + 1
		}
	} else {
		if counter > 0 {
			bp.bht[bhtIdx] = counter - 1
		}
	}

	if taken {
		btbIdx := bp.btbIndex(pc)
		bp.btb[btbIdx] = btbEntry{pc: pc, target: target}
		bp.btbValid[btbIdx] = true
	}
}

// Stats returns the branch predictor statistics.
func (bp *BimodalPredictor) Stats() PredictorStats {
	return bp.stats
}

// Reset sets every counter to weakly taken and clears the BTB and statistics.
func (bp *BimodalPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	for i := range bp.btbValid {
		bp.btbValid[i] = false
	}
	bp.stats = PredictorStats{}
}

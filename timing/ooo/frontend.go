package ooo

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

// fetchStage reads up to FetchWidth instruction words at the speculative PC
// and steers the PC using the predictor for direct branches.
func (e *Engine) fetchStage() {
	if e.flushDelay > 0 {
		e.flushDelay--
		return
	}

	for n := 0; n < e.config.FetchWidth; n++ {
		switch e.fetch {
		case fetchSerialized:
			e.stall(StallFetchSerialized)
			return
		case fetchFaulted:
			return
		}
		if len(e.fetchBuffer) >= e.config.FetchBufferSize {
			e.stall(StallFetchBufferFull)
			return
		}

		pc := e.specPC
		word, err := emu.FetchWord(e.mem, pc)
		if err != nil {
			e.fetchBuffer = append(e.fetchBuffer, FetchEntry{PC: pc, Err: err})
			e.fetch = fetchFaulted
			return
		}

		entry := FetchEntry{PC: pc, Word: word}
		next := pc + insts.Length(word)

		hint := insts.PreDecode(word)
		switch {
		case hint.Serializing():
			e.fetch = fetchSerialized
		case hint.Direct():
			if e.predictor.Predict(pc).Taken {
				entry.PredictedTaken = true
				next = hint.Target(pc)
			}
		}

		e.fetchBuffer = append(e.fetchBuffer, entry)
		e.specPC = next

		if e.debug {
			e.log.WithFields(logrus.Fields{
				"cycle": e.stats.Cycles,
				"pc":    pc,
				"word":  word,
				"next":  next,
			}).Debug("fetch")
		}
	}
}

// decodeStage decodes fetched words into micro-ops. A word is only taken
// when its whole expansion fits in the instruction queue.
func (e *Engine) decodeStage() {
	for n := 0; n < e.config.FetchWidth && len(e.fetchBuffer) > 0; n++ {
		free := e.config.InstructionQueueSize - len(e.queue)
		if free < e.config.DecodeReserve {
			e.stall(StallDecodeQueueFull)
			return
		}

		uops := e.expand(e.fetchBuffer[0])
		if len(uops) > free {
			e.stall(StallDecodeQueueFull)
			return
		}

		e.queue = append(e.queue, uops...)
		e.fetchBuffer = append(e.fetchBuffer[:0], e.fetchBuffer[1:]...)
	}
}

func (e *Engine) expand(fe FetchEntry) []QueueEntry {
	if fe.Err != nil {
		return []QueueEntry{{PC: fe.PC, Word: fe.Word, Err: fe.Err}}
	}

	inst, err := e.decoder.Decode(fe.Word)
	if err != nil {
		return []QueueEntry{{PC: fe.PC, Word: fe.Word, Err: err}}
	}

	uops := insts.Expand(inst)
	out := make([]QueueEntry, len(uops))
	for i, uop := range uops {
		out[i] = QueueEntry{
			PC:             fe.PC,
			Word:           fe.Word,
			UOp:            uop,
			PredictedTaken: fe.PredictedTaken,
		}
	}
	return out
}
